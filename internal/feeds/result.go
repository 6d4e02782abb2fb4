package feeds

import "errors"

// Failure classes for a single external call. They are always scoped to one
// source, post or market and resolved by omission.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceMalformed   = errors.New("source malformed")
	ErrCredentialMissing = errors.New("credential missing")
)

// Status is the outcome class of one external call.
type Status int

const (
	// StatusOK means Data is usable as-is.
	StatusOK Status = iota
	// StatusDegraded means the call failed and the caller must take its
	// documented fallback path.
	StatusDegraded
	// StatusEmpty means the call succeeded and deliberately returned nothing.
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result carries the data of an external call together with its status and
// a short machine-readable reason tag.
type Result[T any] struct {
	Status Status
	Data   T
	Reason string
	Err    error
}

// OK wraps usable data.
func OK[T any](data T, reason string) Result[T] {
	return Result[T]{Status: StatusOK, Data: data, Reason: reason}
}

// Degraded records a failure that the caller recovers from by fallback.
func Degraded[T any](reason string, err error) Result[T] {
	return Result[T]{Status: StatusDegraded, Reason: reason, Err: err}
}

// Empty records a deliberate empty answer.
func Empty[T any](reason string) Result[T] {
	return Result[T]{Status: StatusEmpty, Reason: reason}
}
