package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecEncodeDecodeRoundTrip(t *testing.T) {
	c := NewCodec()

	reqBuf := c.EncodeRequest(7, "echo", NewString("hi"))
	reqCopy := append([]byte(nil), reqBuf...)

	frame, n, err := c.Decode(reqCopy)
	require.NoError(t, err)
	require.Equal(t, len(reqCopy), n)

	req, ok := frame.(Request)
	require.True(t, ok)
	require.Equal(t, uint32(7), req.MsgID)
	require.Equal(t, "echo", req.Method)
	require.Equal(t, "hi", req.Params.Str)
}

func TestCodecReuseOfSendBufferDoesNotAliasPriorEncode(t *testing.T) {
	c := NewCodec()

	first := c.EncodeRequest(1, "a", Nil)
	firstCopy := append([]byte(nil), first...)

	c.EncodeRequest(2, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Nil)

	// first was captured before the second Encode call reused the buffer.
	frame, _, err := DecodeMessage(firstCopy)
	require.NoError(t, err)
	req := frame.(Request)
	require.Equal(t, "a", req.Method)
}
