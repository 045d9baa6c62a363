package service

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to handlers.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")
)

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrScenarioNotFound     = fmt.Errorf("scenario %w", ErrNotFound)
	ErrAssignmentNotFound   = fmt.Errorf("assignment %w", ErrNotFound)
	ErrPipelineRunNotFound  = fmt.Errorf("pipeline run %w", ErrNotFound)
	ErrRosterEntryNotFound  = fmt.Errorf("roster entry %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)

	ErrAlreadySubmitted  = fmt.Errorf("%w: assignment already submitted", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: assignment status cannot move that way", ErrConflict)
	ErrRoleImmutable     = fmt.Errorf("%w: role cannot be changed", ErrConflict)
	ErrProfileExists     = fmt.Errorf("%w: profile already exists", ErrConflict)
)

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// PipelineError reports the stage that stopped the next-assignment pipeline.
// Writes made by earlier stages are kept; re-running resumes after LastCompleted.
type PipelineError struct {
	Stage         string
	LastCompleted string
	Err           error
}

func (e *PipelineError) Error() string {
	last := e.LastCompleted
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("pipeline stage %s failed (last completed: %s): %v", e.Stage, last, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
