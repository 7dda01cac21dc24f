package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the routing core. Callers match them with errors.Is.
var (
	// ErrNotFound indicates an unknown system, structure or anchor id.
	ErrNotFound = errors.New("graph: not found")

	// ErrInvalidArgument indicates a malformed argument: a non-positive bridge
	// range, a negative profile parameter, or inconsistent load records.
	ErrInvalidArgument = errors.New("graph: invalid argument")

	// ErrUnreachable indicates that the destination cannot be reached from the
	// origin under the given profile. This is an expected outcome, not a defect.
	ErrUnreachable = errors.New("graph: destination unreachable")
)

// NotFoundError reports which id was missing and in what role it was used
// ("origin", "destination", "system", "structure", "anchor").
type NotFoundError struct {
	Role string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("graph: %s %d not found", e.Role, e.ID)
}

// Unwrap makes errors.Is(err, ErrNotFound) hold for every NotFoundError.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(role string, id int64) error {
	return &NotFoundError{Role: role, ID: id}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
