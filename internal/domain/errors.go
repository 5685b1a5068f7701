package domain

import "errors"

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindDecode     ErrorKind = "decode"
	KindStorage    ErrorKind = "storage"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrDecode     = errors.New("decode failed")
	ErrStorage    = errors.New("storage failed")
)

// Error is a classified pipeline failure. Message is safe to show callers for
// validation errors only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrStorage:
		return e.Kind == KindStorage
	default:
		return false
	}
}

func ValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func DecodeError(message string, err error) error {
	return &Error{Kind: KindDecode, Message: message, Err: err}
}

func StorageError(message string, err error) error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}
