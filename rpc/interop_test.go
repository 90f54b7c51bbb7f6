package rpc

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-msgpack/codec"
	"github.com/stretchr/testify/require"
)

// msgpackHandle mirrors the wire settings other_examples' Serf RPC client
// configures its codec.Decoder/Encoder pair with.
func msgpackHandle() *codec.MsgpackHandle {
	return &codec.MsgpackHandle{RawToString: true}
}

// TestGoMsgpackDecodesOurEncoding checks that github.com/hashicorp/go-msgpack
// — the wire family this package's hand-rolled encoder targets — can decode
// a frame this package produces, confirming the two are wire-compatible
// without requiring byte-identical output (minimal-width integer/string
// encoding choices can legitimately differ between implementations).
func TestGoMsgpackDecodesOurEncoding(t *testing.T) {
	buf := EncodeRequest(nil, 42, "ping", NewArray([]Value{NewInt(1), NewString("x")}))

	var decoded []interface{}
	dec := codec.NewDecoder(bytes.NewReader(buf), msgpackHandle())
	require.NoError(t, dec.Decode(&decoded))

	require.Len(t, decoded, 4)
	require.EqualValues(t, tagRequest, decoded[0])
	require.EqualValues(t, 42, decoded[1])
	require.Equal(t, "ping", decoded[2])
	params, ok := decoded[3].([]interface{})
	require.True(t, ok)
	require.Len(t, params, 2)
	require.EqualValues(t, 1, params[0])
	require.Equal(t, "x", params[1])
}

// TestOurDecoderReadsGoMsgpackEncoding checks the converse: this package's
// stateful-cursor decoder can read a frame encoded by
// github.com/hashicorp/go-msgpack's codec.Encoder.
func TestOurDecoderReadsGoMsgpackEncoding(t *testing.T) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle())
	require.NoError(t, enc.Encode([]interface{}{
		int64(tagRequest), uint64(7), "test_method", []interface{}{},
	}))

	frame, n, err := DecodeMessage(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)

	req, ok := frame.(Request)
	require.True(t, ok)
	require.Equal(t, uint32(7), req.MsgID)
	require.Equal(t, "test_method", req.Method)
	require.Equal(t, KindArray, req.Params.Kind)
	require.Len(t, req.Params.Arr, 0)
}

// TestOurDecoderReadsGoMsgpackNotification exercises the notification
// shape (3-element array) through the same cross-implementation path.
func TestOurDecoderReadsGoMsgpackNotification(t *testing.T) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle())
	require.NoError(t, enc.Encode([]interface{}{
		int64(tagNotification), "event_name", map[string]interface{}{},
	}))

	frame, _, err := DecodeMessage(buf.Bytes())
	require.NoError(t, err)

	notif, ok := frame.(Notification)
	require.True(t, ok)
	require.Equal(t, "event_name", notif.Method)
	require.Equal(t, KindMap, notif.Params.Kind)
}
