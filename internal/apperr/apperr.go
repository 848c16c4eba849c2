// Package apperr defines the error-kind taxonomy shared across the
// assessment & diagnostics engine, following the teacher's small
// sentinel-error-struct style (telemetry.Error, alerts.Error)
// generalized into one place so every component reports errors the
// same way.
package apperr

import "fmt"

// Kind classifies an error for the caller's dispatch/logging policy.
type Kind int

const (
	// KindNotFound: unknown device/tag/rule/instance. Surfaced as a
	// 404-equivalent by the (out-of-scope) HTTP layer; never logged
	// as error.
	KindNotFound Kind = iota
	// KindValidation: bad enum, unsorted time range, duplicate id,
	// invalid pattern. Rejects the request without side effects.
	KindValidation
	// KindConflict: e.g. closing an already-closed alarm. The
	// operation is a no-op.
	KindConflict
	// KindInsufficientData: not enough samples/cycles to learn a
	// baseline or predict. Callers should treat this as a typed
	// "no result", not propagate it as a failure.
	KindInsufficientData
	// KindDependency: repository I/O, FFT overflow, regex compile.
	// Caught at the driver boundary; abandon the current iteration,
	// log at warning, proceed to the next.
	KindDependency
	// KindCancelled: propagates silently, never logged as error.
	KindCancelled
	// KindFatal: configuration invalid at startup, corrupt baseline
	// JSON/YAML. The service refuses to start, or the affected
	// feature is disabled with a single error log.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindConflict:
		return "ConflictState"
	case KindInsufficientData:
		return "InsufficientData"
	case KindDependency:
		return "Dependency"
	case KindCancelled:
		return "Cancelled"
	case KindFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error is the engine-wide error type. Code is a short machine-stable
// identifier (e.g. "RULE_NOT_FOUND"); Message is human-readable.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// NotFound builds a KindNotFound error.
func NotFound(code, message string) *Error { return New(KindNotFound, code, message) }

// Validation builds a KindValidation error.
func Validation(code, message string) *Error { return New(KindValidation, code, message) }

// Conflict builds a KindConflict error.
func Conflict(code, message string) *Error { return New(KindConflict, code, message) }

// InsufficientData builds a KindInsufficientData error.
func InsufficientData(code, message string) *Error { return New(KindInsufficientData, code, message) }

// Dependency builds a KindDependency error wrapping the cause.
func Dependency(code, message string, err error) *Error {
	return Wrap(KindDependency, code, message, err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
