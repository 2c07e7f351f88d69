package duckdb

import "errors"

// ErrorKind classifies bridge-level failures. The engine's original
// diagnostic text is always carried verbatim in Error.Message.
type ErrorKind int32

const (
	OpenFailed ErrorKind = iota + 1
	NotOpen
	ConnectFailed
	PrepareFailed
	ExecutionFailed
	InvalidParameterIndex
	SerializationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case OpenFailed:
		return "open failed"
	case NotOpen:
		return "not open"
	case ConnectFailed:
		return "connect failed"
	case PrepareFailed:
		return "prepare failed"
	case ExecutionFailed:
		return "execution failed"
	case InvalidParameterIndex:
		return "invalid parameter index"
	case SerializationFailed:
		return "serialization failed"
	default:
		return "unknown"
	}
}

// Error is the bridge error type. Message is never rewritten on the way up;
// only the outermost bridge layer encodes it into the sentinel convention.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func bridgeErr(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf reports the taxonomy kind of err, or 0 if err is not a bridge error.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}
