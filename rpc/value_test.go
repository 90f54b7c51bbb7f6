package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	e := newEncoder(nil)
	e.encodeValue(v)
	d := newDecoder(e.bytes())
	got, err := d.decodeValue()
	require.NoError(t, err)
	require.Equal(t, len(e.bytes()), d.consumed())
	return got
}

func TestValuePrimitiveRoundTrip(t *testing.T) {
	cases := []Value{
		Nil,
		NewBool(true),
		NewBool(false),
		NewInt(0),
		NewInt(-1),
		NewInt(127),
		NewInt(-33),
		NewInt(1 << 20),
		NewInt(-(1 << 40)),
		NewUint(255),
		NewUint(1 << 40),
		NewFloat(3.5),
		NewString(""),
		NewString("hello"),
		NewBinary([]byte{1, 2, 3}),
		NewArray([]Value{NewInt(1), NewString("x")}),
		NewMap([]MapEntry{{Key: NewString("k"), Val: NewInt(9)}}),
	}

	for _, v := range cases {
		got := roundTrip(t, v)
		require.True(t, v.Equal(got), "round trip mismatch for %s", v.String())
	}
}

func TestValueLargeStringUsesStr16(t *testing.T) {
	s := make([]byte, 1000)
	for i := range s {
		s[i] = 'a'
	}
	v := NewString(string(s))
	e := newEncoder(nil)
	e.encodeValue(v)
	require.Equal(t, byte(mpStr16), e.bytes()[0])
	got := roundTrip(t, v)
	require.True(t, v.Equal(got))
}

func TestDecodeTruncatedBufferErrors(t *testing.T) {
	d := newDecoder([]byte{mpStr8, 10}) // claims 10 bytes, none present
	_, err := d.decodeValue()
	require.Error(t, err)
	_, ok := err.(*CodecError)
	require.True(t, ok)
}
