package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error leaving the ledger matches exactly one of these
// with errors.Is, so callers can map them without parsing messages.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrReferential = errors.New("invalid reference")
	ErrConflict    = errors.New("already exists")
	ErrInUse       = errors.New("still in use")
	ErrStorage     = errors.New("storage failure")
)

// Error is a classified ledger error.
type Error struct {
	Kind error
	Op   string
	// Detail is safe to show to end users.
	Detail string
	// Count is the number of referencing rows for ErrInUse.
	Count int64
	// Similar lists existing names close to a conflicting one.
	Similar   []string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName is a short machine-readable name for the kind.
func (e *Error) KindName() string {
	return KindName(e.Kind)
}

// KindName maps a kind sentinel to the name used in logs and API errors.
func KindName(kind error) string {
	switch kind {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrReferential:
		return "referential"
	case ErrConflict:
		return "conflict"
	case ErrInUse:
		return "in_use"
	default:
		return "storage"
	}
}

func Invalid(op, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Op: op, Detail: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Detail: fmt.Sprintf(format, args...)}
}

func BadReference(op, format string, args ...any) *Error {
	return &Error{Kind: ErrReferential, Op: op, Detail: fmt.Sprintf(format, args...)}
}

func Conflict(op, detail string, similar ...string) *Error {
	return &Error{Kind: ErrConflict, Op: op, Detail: detail, Similar: similar}
}

func InUse(op, detail string, count int64) *Error {
	return &Error{Kind: ErrInUse, Op: op, Detail: detail, Count: count}
}

// StorageFailure wraps a driver error. Retryable marks lock and
// serialization failures where the whole operation can be reissued.
func StorageFailure(op string, err error, retryable bool) *Error {
	return &Error{Kind: ErrStorage, Op: op, Err: err, Retryable: retryable}
}

// KindOf returns the sentinel kind of err. Unclassified errors are storage failures.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrReferential, ErrConflict, ErrInUse, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrStorage
}

// IsRetryable reports whether the failed operation may be retried as a whole.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// AsError extracts the classified error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
