package rpc

// Codec bundles the (stateless) frame decoder with a reusable encode
// scratch buffer for the outbound side, so a caller driving frames over a
// single fd doesn't hand-roll buffer bookkeeping itself. Grounded on the
// teacher's Connection struct, which paired a FrameReader with a writer
// side over one io.ReadWriter; here the reactor owns the actual recv/send
// buffers and Codec only owns the encode/decode logic above them.
type Codec struct {
	sendBuf []byte
}

// NewCodec returns a Codec with an empty reusable encode buffer.
func NewCodec() *Codec {
	return &Codec{}
}

// Decode reads one frame from the front of buf. It returns the frame, the
// number of bytes the frame occupied (so the caller can advance its recv
// cursor / compact its buffer), and an error if buf does not hold a
// complete, well-formed frame yet.
//
// On any error the returned byte count is 0. ErrInvalidMessageFormat is
// returned both when buf ends before the frame does and when the decoder
// meets a marker it does not recognise; the error does not distinguish the
// two. A caller typically loops: accumulate bytes from recv into a buffer,
// call Decode, and on ErrInvalidMessageFormat wait for more data rather
// than treating it as fatal. Any other CodecError is a genuine framing
// error and, per the error handling design, should terminate the
// connection.
func (c *Codec) Decode(buf []byte) (Frame, int, error) {
	return DecodeMessage(buf)
}

// EncodeRequest serializes a request into the codec's reusable send
// buffer, resets the buffer first, and returns the encoded bytes. The
// returned slice is only valid until the next Encode* call.
func (c *Codec) EncodeRequest(msgid uint32, method string, params Value) []byte {
	c.sendBuf = EncodeRequest(c.sendBuf[:0], msgid, method, params)
	return c.sendBuf
}

// EncodeResponse serializes a response into the codec's reusable send
// buffer.
func (c *Codec) EncodeResponse(msgid uint32, errVal Value, result Value) []byte {
	c.sendBuf = EncodeResponse(c.sendBuf[:0], msgid, errVal, result)
	return c.sendBuf
}

// EncodeNotification serializes a notification into the codec's reusable
// send buffer.
func (c *Codec) EncodeNotification(method string, params Value) []byte {
	c.sendBuf = EncodeNotification(c.sendBuf[:0], method, params)
	return c.sendBuf
}
