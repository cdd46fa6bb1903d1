package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionInitError means an attempt could not be created or resumed.
// Fatal to session start; callers surface it and do not retry.
type SessionInitError struct {
	Reason string
	Err    error
}

func (e *SessionInitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session init: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session init: %s", e.Reason)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// LoadError means test, passage or question data could not be fetched.
// Fatal to rendering the session; surfaced with a retry action.
type LoadError struct {
	Resource string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PersistTransientError means an answer or timer sync failed after its
// retry. The in-memory value stays authoritative; this is a warning,
// never a loss of data.
type PersistTransientError struct {
	QuestionID uuid.UUID
	Err        error
}

func (e *PersistTransientError) Error() string {
	return fmt.Sprintf("persist answer %s: %v", e.QuestionID, e.Err)
}

func (e *PersistTransientError) Unwrap() error { return e.Err }
