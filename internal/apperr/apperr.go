package apperr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes the pipeline reports.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Infrastructure wraps a store or provider failure. The message is what
// callers see; the wrapped error is for logs only.
func Infrastructure(err error, message string) *Error {
	return &Error{Kind: KindInfrastructure, Code: "INFRASTRUCTURE", Message: message, Err: err}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
