package rpc

// CodecErrKind is the codec error taxonomy of spec §7.
type CodecErrKind uint8

const (
	ErrInvalidMessageFormat CodecErrKind = iota
	ErrInvalidMessageType
	ErrInvalidArrayLength
	ErrNotAnArray
	ErrNotAnInteger
	ErrNotAString
)

func (k CodecErrKind) String() string {
	switch k {
	case ErrInvalidMessageFormat:
		return "invalid_message_format"
	case ErrInvalidMessageType:
		return "invalid_message_type"
	case ErrInvalidArrayLength:
		return "invalid_array_length"
	case ErrNotAnArray:
		return "not_an_array"
	case ErrNotAnInteger:
		return "not_an_integer"
	case ErrNotAString:
		return "not_a_string"
	default:
		return "invalid_message_format"
	}
}

// CodecError is returned by every decode operation that fails; the
// higher-level dispatcher is expected to close the connection on any
// CodecError (spec §7: "Codec errors terminate the connection").
type CodecError struct {
	Kind CodecErrKind
}

func (e *CodecError) Error() string { return e.Kind.String() }

func newCodecError(kind CodecErrKind) *CodecError { return &CodecError{Kind: kind} }
