package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for an event kind the accumulator does not
	// know how to handle.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrInvalidEvent is returned for an event whose fields are inconsistent
	// with its kind, such as a sale with a negative amount.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidEventOrder is returned when a committed batch is modified or
	// committed again, or when events are fed after the run has finished.
	ErrInvalidEventOrder = errors.New("invalid event order")

	// ErrNotCommitted is returned when a commit-time field is read from an
	// open batch.
	ErrNotCommitted = errors.New("batch not committed")

	// ErrEmptyBatch is returned when committing a batch without transactions.
	ErrEmptyBatch = errors.New("batch is empty")
)

// EventError ties an input error to the source line of the event.
type EventError struct {
	Line int
	Kind Kind
	Err  error
}

func (e *EventError) Error() string {
	switch {
	case e.Line > 0 && e.Kind.Valid():
		return fmt.Sprintf("line %d (%s): %v", e.Line, e.Kind, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	default:
		return fmt.Sprintf("event %s: %v", e.Kind, e.Err)
	}
}

func (e *EventError) Unwrap() error {
	return e.Err
}
