// Package apperr defines the domain error taxonomy shared by the job
// orchestrator, quotation handling and search. Handlers map these onto
// HTTP status codes in one place (the global error handler).
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("actor does not own this resource")

	// ErrConcurrencyConflict means a concurrent transaction changed the job
	// between our read and write. The caller should retry once with fresh
	// state.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// ValidationError reports malformed or out-of-range input, recoverable by
// the caller correcting the request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// InvalidTransitionError reports a job event applied from a state the
// transition table does not allow.
type InvalidTransitionError struct {
	From  string // current job status
	Event string // attempted event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot apply %q to a job in status %q", e.Event, e.From)
}

// InvalidQuotationStateError reports an action on a quotation that is not
// in the state the action requires.
type InvalidQuotationStateError struct {
	Status string // current quotation status
	Action string // attempted action
}

func (e *InvalidQuotationStateError) Error() string {
	return fmt.Sprintf("cannot %s a quotation in status %q", e.Action, e.Status)
}
