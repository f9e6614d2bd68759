package task

import "errors"

var (
	// ErrNotFound indicates the task does not exist. Absence is a normal
	// outcome and is never conflated with a malformed query.
	ErrNotFound = errors.New("task not found")
	// ErrSelfAcceptance indicates a creator tried to accept their own task.
	ErrSelfAcceptance = errors.New("cannot accept own task")
	// ErrAlreadyAccepted indicates another caller won the acceptance race.
	ErrAlreadyAccepted = errors.New("task already accepted")
	// ErrForbidden indicates the caller is not authorized for the transition.
	ErrForbidden = errors.New("caller not permitted")
	// ErrInvalidTransition indicates a status change that violates the
	// lifecycle graph. State is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidation indicates malformed input from the caller.
	ErrValidation = errors.New("invalid task input")
)
