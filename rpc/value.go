// Package rpc implements the framed, self-describing record codec that
// rides on top of the aio reactor's recv/send buffers: frames carry no
// length prefix (each is delimited by its own array encoding) and are
// self-describing at the value level, matching the
// wire family hashicorp/go-msgpack (github.com/hashicorp/go-msgpack/codec,
// as used by the Serf RPC client this package is grounded on) implements.
// Frames are decoded and encoded directly over a byte cursor rather than
// through a struct-tag codec, because the frame shape — an array whose
// first element is an integer tag, dispatched into one of three record
// kinds — needs the primitive-level control (peek_byte, read_array_len,
// decode_value) a generic encoder doesn't expose.
package rpc

import "fmt"

// ValueKind tags the self-describing value universe of spec §3: nil,
// bool, signed/unsigned int, float, string, binary, array, map.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBinary
	KindArray
	KindMap
)

// MapEntry is one key/value pair of a Value of KindMap. A plain Go map
// isn't used because Value itself is not comparable (it can hold a slice).
type MapEntry struct {
	Key Value
	Val Value
}

// Value is the recursive self-describing value universe of spec §3/§4.2.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Bin   []byte
	Arr   []Value
	Map   []MapEntry
}

// Nil is the shared nil Value, used both for absent params and for a
// Response's null error field.
var Nil = Value{Kind: KindNil}

func NewBool(b bool) Value    { return Value{Kind: KindBool, Bool: b} }
func NewInt(v int64) Value    { return Value{Kind: KindInt, Int: v} }
func NewUint(v uint64) Value  { return Value{Kind: KindUint, Uint: v} }
func NewFloat(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }
func NewBinary(b []byte) Value { return Value{Kind: KindBinary, Bin: b} }
func NewArray(v []Value) Value { return Value{Kind: KindArray, Arr: v} }
func NewMap(m []MapEntry) Value { return Value{Kind: KindMap, Map: m} }

// IsNil reports whether v is the self-describing nil marker.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// Equal does a deep structural comparison, used by codec round-trip tests.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindUint:
		return v.Uint == o.Uint
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindBinary:
		if len(v.Bin) != len(o.Bin) {
			return false
		}
		for i := range v.Bin {
			if v.Bin[i] != o.Bin[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.Arr) != len(o.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(o.Arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for i := range v.Map {
			if !v.Map[i].Key.Equal(o.Map[i].Key) || !v.Map[i].Val.Equal(o.Map[i].Val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Release frees nested strings/arrays/maps belonging to v, per spec §3's
// frame lifecycle ("its release hook, which recursively frees nested
// strings/arrays/maps"). Go's garbage collector already owns this memory,
// so Release exists to satisfy the external contract and to make reuse
// bugs (using v after Release) easy to grep for; it drops the backing
// slices so a use-after-release shows up as an empty value instead of
// stale data.
func (v *Value) Release() {
	switch v.Kind {
	case KindArray:
		for i := range v.Arr {
			v.Arr[i].Release()
		}
		v.Arr = nil
	case KindMap:
		for i := range v.Map {
			v.Map[i].Key.Release()
			v.Map[i].Val.Release()
		}
		v.Map = nil
	case KindBinary:
		v.Bin = nil
	case KindString:
		v.Str = ""
	}
	v.Kind = KindNil
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindBinary:
		return fmt.Sprintf("bin(%d)", len(v.Bin))
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.Arr))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.Map))
	default:
		return "?"
	}
}
