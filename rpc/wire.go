package rpc

// MessagePack format markers used by decoder/encoder. The wire format
// matches what github.com/hashicorp/go-msgpack/codec produces with a
// MsgpackHandle, so a Go peer using that package would interoperate with
// one built directly on this package.
const (
	mpNil   = 0xc0
	mpFalse = 0xc2
	mpTrue  = 0xc3

	mpFixintMax = 0x7f
	mpFixnegMin = 0xe0

	mpUint8  = 0xcc
	mpUint16 = 0xcd
	mpUint32 = 0xce
	mpUint64 = 0xcf

	mpInt8  = 0xd0
	mpInt16 = 0xd1
	mpInt32 = 0xd2
	mpInt64 = 0xd3

	mpFloat32 = 0xca
	mpFloat64 = 0xcb

	mpFixstrMin = 0xa0
	mpFixstrMax = 0xbf
	mpStr8      = 0xd9
	mpStr16     = 0xda
	mpStr32     = 0xdb

	mpBin8  = 0xc4
	mpBin16 = 0xc5
	mpBin32 = 0xc6

	mpFixarrayMin = 0x90
	mpFixarrayMax = 0x9f
	mpArray16     = 0xdc
	mpArray32     = 0xdd

	mpFixmapMin = 0x80
	mpFixmapMax = 0x8f
	mpMap16     = 0xde
	mpMap32     = 0xdf
)
