package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	buf := EncodeRequest(nil, 1, "test_method", NewArray(nil))

	frame, n, err := DecodeMessage(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	req, ok := frame.(Request)
	require.True(t, ok)
	require.Equal(t, uint32(1), req.MsgID)
	require.Equal(t, "test_method", req.Method)
	require.Equal(t, KindArray, req.Params.Kind)
	require.Len(t, req.Params.Arr, 0)

	req.Release()
}

func TestResponseWithNullError(t *testing.T) {
	buf := EncodeResponse(nil, 1, Nil, NewInt(42))

	frame, _, err := DecodeMessage(buf)
	require.NoError(t, err)

	resp, ok := frame.(Response)
	require.True(t, ok)
	require.Equal(t, uint32(1), resp.MsgID)
	require.True(t, resp.Error.IsNil())
	require.Equal(t, int64(42), resp.Result.Int)
}

func TestNotificationRoundTrip(t *testing.T) {
	buf := EncodeNotification(nil, "event_name", NewMap(nil))

	frame, _, err := DecodeMessage(buf)
	require.NoError(t, err)

	notif, ok := frame.(Notification)
	require.True(t, ok)
	require.Equal(t, "event_name", notif.Method)
	require.Equal(t, KindMap, notif.Params.Kind)
}

func TestFrameShapeErrors(t *testing.T) {
	t.Run("length below 3", func(t *testing.T) {
		buf := newEncoder(nil)
		buf.writeArrayLen(2)
		buf.writeInt(tagRequest)
		buf.writeInt(1)
		_, _, err := DecodeMessage(buf.bytes())
		require.Error(t, err)
	})

	t.Run("length 3 with request tag", func(t *testing.T) {
		buf := newEncoder(nil)
		buf.writeArrayLen(3)
		buf.writeInt(tagRequest)
		buf.writeUint(1)
		buf.writeString("m")
		_, _, err := DecodeMessage(buf.bytes())
		require.Error(t, err)
		cerr, ok := err.(*CodecError)
		require.True(t, ok)
		require.Equal(t, ErrInvalidArrayLength, cerr.Kind)
	})

	t.Run("length 4 with notification tag", func(t *testing.T) {
		buf := newEncoder(nil)
		buf.writeArrayLen(4)
		buf.writeInt(tagNotification)
		buf.writeString("m")
		buf.encodeValue(Nil)
		_, _, err := DecodeMessage(buf.bytes())
		require.Error(t, err)
		cerr, ok := err.(*CodecError)
		require.True(t, ok)
		require.Equal(t, ErrInvalidArrayLength, cerr.Kind)
	})
}

func TestValueEqualAndRelease(t *testing.T) {
	v := NewArray([]Value{NewInt(1), NewString("x"), NewMap([]MapEntry{{Key: NewInt(1), Val: NewBool(true)}})})
	v2 := NewArray([]Value{NewInt(1), NewString("x"), NewMap([]MapEntry{{Key: NewInt(1), Val: NewBool(true)}})})
	require.True(t, v.Equal(v2))

	v.Release()
	require.Equal(t, KindNil, v.Kind)
	require.Nil(t, v.Arr)
}

func TestPartialFailureReturnsNoFrame(t *testing.T) {
	// A response whose error value decodes fine but whose result is
	// truncated: decode returns an error rather than a partially built
	// frame. Whether the decoded error value is released is not observable
	// from here.
	buf := newEncoder(nil)
	buf.writeArrayLen(4)
	buf.writeInt(tagResponse)
	buf.writeUint(1)
	buf.putByte(mpNil) // error: nil
	buf.putByte(mpStr8)
	buf.putByte(5) // claims 5 bytes of string but provides none

	frame, n, err := DecodeMessage(buf.bytes())
	require.Error(t, err)
	require.Nil(t, frame)
	require.Equal(t, 0, n)
}
