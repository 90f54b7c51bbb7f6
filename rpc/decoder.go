package rpc

import "math"

// decoder is a stateful cursor over a byte slice: a position advances as
// primitives are consumed, exactly as spec §4.2 describes. It is
// buffer-agnostic — it never allocates a copy of buf and never retains
// ownership of it past the decode call.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

// consumed reports how many bytes have been consumed; used by
// DecodeMessage to tell the caller how much of its recv buffer a frame
// occupied.
func (d *decoder) consumed() int { return d.pos }

func (d *decoder) peekByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, newCodecError(ErrInvalidMessageFormat)
	}
	return d.buf[d.pos], nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.peekByte()
	if err != nil {
		return 0, err
	}
	d.pos++
	return b, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, newCodecError(ErrInvalidMessageFormat)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func beUint16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// readArrayLen reads a msgpack array header and returns its declared
// length.
func (d *decoder) readArrayLen() (int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b >= mpFixarrayMin && b <= mpFixarrayMax:
		return int(b - mpFixarrayMin), nil
	case b == mpArray16:
		raw, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int(beUint16(raw)), nil
	case b == mpArray32:
		raw, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int(beUint32(raw)), nil
	default:
		return 0, newCodecError(ErrNotAnArray)
	}
}

// readInt reads any msgpack integer marker (fixint, int8/16/32/64,
// uint8/16/32/64) and coerces it to a signed int64.
func (d *decoder) readInt() (int64, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b <= mpFixintMax:
		return int64(b), nil
	case b >= mpFixnegMin:
		return int64(int8(b)), nil
	case b == mpInt8:
		raw, err := d.take(1)
		if err != nil {
			return 0, err
		}
		return int64(int8(raw[0])), nil
	case b == mpInt16:
		raw, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(beUint16(raw))), nil
	case b == mpInt32:
		raw, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(beUint32(raw))), nil
	case b == mpInt64:
		raw, err := d.take(8)
		if err != nil {
			return 0, err
		}
		return int64(beUint64(raw)), nil
	case b == mpUint8:
		raw, err := d.take(1)
		if err != nil {
			return 0, err
		}
		return int64(raw[0]), nil
	case b == mpUint16:
		raw, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int64(beUint16(raw)), nil
	case b == mpUint32:
		raw, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int64(beUint32(raw)), nil
	case b == mpUint64:
		raw, err := d.take(8)
		if err != nil {
			return 0, err
		}
		return int64(beUint64(raw)), nil
	default:
		return 0, newCodecError(ErrNotAnInteger)
	}
}

// readUint32 reads an integer marker and coerces it to unsigned 32-bit, as
// spec §4.2 requires for a Request/Response msgid.
func (d *decoder) readUint32() (uint32, error) {
	v, err := d.readInt()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// readString reads a msgpack string (fixstr, str8/16/32).
func (d *decoder) readString() (string, error) {
	b, err := d.readByte()
	if err != nil {
		return "", err
	}
	var n int
	switch {
	case b >= mpFixstrMin && b <= mpFixstrMax:
		n = int(b - mpFixstrMin)
	case b == mpStr8:
		raw, err := d.take(1)
		if err != nil {
			return "", err
		}
		n = int(raw[0])
	case b == mpStr16:
		raw, err := d.take(2)
		if err != nil {
			return "", err
		}
		n = int(beUint16(raw))
	case b == mpStr32:
		raw, err := d.take(4)
		if err != nil {
			return "", err
		}
		n = int(beUint32(raw))
	default:
		return "", newCodecError(ErrNotAString)
	}
	raw, err := d.take(n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *decoder) readBinary() ([]byte, error) {
	b, err := d.readByte()
	if err != nil {
		return nil, err
	}
	var n int
	switch b {
	case mpBin8:
		raw, err := d.take(1)
		if err != nil {
			return nil, err
		}
		n = int(raw[0])
	case mpBin16:
		raw, err := d.take(2)
		if err != nil {
			return nil, err
		}
		n = int(beUint16(raw))
	case mpBin32:
		raw, err := d.take(4)
		if err != nil {
			return nil, err
		}
		n = int(beUint32(raw))
	default:
		return nil, newCodecError(ErrInvalidMessageFormat)
	}
	raw, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, raw)
	return out, nil
}

// decodeValue recursively decodes the self-describing value universe of
// spec §3: nil, bool, signed/unsigned int, float, string, binary, array,
// map.
func (d *decoder) decodeValue() (Value, error) {
	b, err := d.peekByte()
	if err != nil {
		return Value{}, err
	}
	switch {
	case b == mpNil:
		d.pos++
		return Value{Kind: KindNil}, nil
	case b == mpFalse:
		d.pos++
		return Value{Kind: KindBool, Bool: false}, nil
	case b == mpTrue:
		d.pos++
		return Value{Kind: KindBool, Bool: true}, nil
	case b == mpFloat32:
		d.pos++
		raw, err := d.take(4)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindFloat, Float: float64(math.Float32frombits(beUint32(raw)))}, nil
	case b == mpFloat64:
		d.pos++
		raw, err := d.take(8)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindFloat, Float: math.Float64frombits(beUint64(raw))}, nil
	case b == mpUint8 || b == mpUint16 || b == mpUint32 || b == mpUint64:
		v, err := d.readInt()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindUint, Uint: uint64(v)}, nil
	case b <= mpFixintMax || b >= mpFixnegMin || b == mpInt8 || b == mpInt16 || b == mpInt32 || b == mpInt64:
		v, err := d.readInt()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: v}, nil
	case (b >= mpFixstrMin && b <= mpFixstrMax) || b == mpStr8 || b == mpStr16 || b == mpStr32:
		s, err := d.readString()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: s}, nil
	case b == mpBin8 || b == mpBin16 || b == mpBin32:
		bin, err := d.readBinary()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBinary, Bin: bin}, nil
	case (b >= mpFixarrayMin && b <= mpFixarrayMax) || b == mpArray16 || b == mpArray32:
		n, err := d.readArrayLen()
		if err != nil {
			return Value{}, err
		}
		arr := make([]Value, n)
		for i := 0; i < n; i++ {
			v, err := d.decodeValue()
			if err != nil {
				// release what we already decoded before propagating.
				for j := 0; j < i; j++ {
					arr[j].Release()
				}
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{Kind: KindArray, Arr: arr}, nil
	case (b >= mpFixmapMin && b <= mpFixmapMax) || b == mpMap16 || b == mpMap32:
		n, err := d.readMapLen()
		if err != nil {
			return Value{}, err
		}
		m := make([]MapEntry, n)
		for i := 0; i < n; i++ {
			k, err := d.decodeValue()
			if err != nil {
				for j := 0; j < i; j++ {
					m[j].Key.Release()
					m[j].Val.Release()
				}
				return Value{}, err
			}
			v, err := d.decodeValue()
			if err != nil {
				k.Release()
				for j := 0; j < i; j++ {
					m[j].Key.Release()
					m[j].Val.Release()
				}
				return Value{}, err
			}
			m[i] = MapEntry{Key: k, Val: v}
		}
		return Value{Kind: KindMap, Map: m}, nil
	default:
		return Value{}, newCodecError(ErrInvalidMessageFormat)
	}
}

func (d *decoder) readMapLen() (int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b >= mpFixmapMin && b <= mpFixmapMax:
		return int(b - mpFixmapMin), nil
	case b == mpMap16:
		raw, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int(beUint16(raw)), nil
	case b == mpMap32:
		raw, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int(beUint32(raw)), nil
	default:
		return 0, newCodecError(ErrInvalidMessageFormat)
	}
}
