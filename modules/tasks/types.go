package tasks

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/example/campus-errands/domain/task"
)

// Validation bounds for task creation.
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
	MinEstimatedMinutes  = 5
	MaxEstimatedMinutes  = 480
	MinRewardCents       = 50
	MaxRewardCents       = 100000
	OpenPageSize         = 20
)

// Outcome codes for expected business results. Races and rule violations
// are routine in a multi-user marketplace, so they travel in the reply
// payload as data rather than as transport errors.
const (
	CodeNotFound          = "not_found"
	CodeSelfAcceptance    = "self_acceptance"
	CodeAlreadyAccepted   = "already_accepted"
	CodeForbidden         = "forbidden"
	CodeInvalidTransition = "invalid_transition"
	CodeValidation        = "validation_error"
)

// Outcome describes an expected, non-exceptional failure. A nil Outcome
// on a response means the operation succeeded.
type Outcome struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// outcomeFor maps domain sentinel errors to wire outcomes. Unknown
// errors return nil so they propagate as real errors.
func outcomeFor(err error) *Outcome {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return &Outcome{Code: CodeNotFound, Message: "task not found"}
	case errors.Is(err, task.ErrSelfAcceptance):
		return &Outcome{Code: CodeSelfAcceptance, Message: "you cannot accept your own task"}
	case errors.Is(err, task.ErrAlreadyAccepted):
		return &Outcome{Code: CodeAlreadyAccepted, Message: "this task was just accepted by someone else"}
	case errors.Is(err, task.ErrForbidden):
		return &Outcome{Code: CodeForbidden, Message: "you are not a participant of this task"}
	case errors.Is(err, task.ErrInvalidTransition):
		return &Outcome{Code: CodeInvalidTransition, Message: "status change not allowed from the task's current state"}
	case errors.Is(err, task.ErrValidation):
		return &Outcome{Code: CodeValidation, Message: err.Error()}
	}
	return nil
}

// TaskView is the wire representation of a task.
type TaskView struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	Description         string        `json:"description,omitempty"`
	Category            task.Category `json:"category"`
	Store               string        `json:"store,omitempty"`
	DropoffAddress      string        `json:"dropoff_address"`
	DropoffInstructions string        `json:"dropoff_instructions,omitempty"`
	Urgency             task.Urgency  `json:"urgency"`
	EstimatedMinutes    int           `json:"estimated_minutes"`
	RewardCents         int64         `json:"reward_cents"`
	CreatorID           string        `json:"creator_id"`
	AcceptorID          string        `json:"acceptor_id,omitempty"`
	Status              task.Status   `json:"status"`
	CurrentStatus       task.Status   `json:"current_status"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// HistoryEntryView is the wire representation of one status transition.
type HistoryEntryView struct {
	Status    task.Status `json:"status"`
	ActorID   string      `json:"actor_id"`
	Note      string      `json:"note,omitempty"`
	PhotoRef  string      `json:"photo_ref,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateTaskRequest is the payload for the create service.
type CreateTaskRequest struct {
	CallerID            string        `json:"caller_id"`
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	Category            task.Category `json:"category"`
	Store               string        `json:"store"`
	DropoffAddress      string        `json:"dropoff_address"`
	DropoffInstructions string        `json:"dropoff_instructions"`
	Urgency             task.Urgency  `json:"urgency"`
	EstimatedMinutes    int           `json:"estimated_minutes"`
	RewardCents         int64         `json:"reward_cents"`
}

// CreateTaskResponse carries the created task or a validation outcome.
type CreateTaskResponse struct {
	Task    *TaskView `json:"task,omitempty"`
	Outcome *Outcome  `json:"outcome,omitempty"`
}

// GetTaskRequest is the payload for the get service.
type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

// GetTaskResponse carries the task or a not-found outcome.
type GetTaskResponse struct {
	Task    *TaskView `json:"task,omitempty"`
	Outcome *Outcome  `json:"outcome,omitempty"`
}

// HistoryRequest is the payload for the history service.
type HistoryRequest struct {
	TaskID string `json:"task_id"`
}

// HistoryResponse carries the append-only status timeline of a task.
type HistoryResponse struct {
	Entries []HistoryEntryView `json:"entries"`
	Outcome *Outcome           `json:"outcome,omitempty"`
}

// ListOpenRequest asks for a page of open tasks, excluding the caller's
// own postings.
type ListOpenRequest struct {
	CallerID string `json:"caller_id"`
	Page     int    `json:"page"`
}

// ListByUserRequest asks for tasks created by or accepted by a user.
type ListByUserRequest struct {
	UserID string `json:"user_id"`
}

// ListTasksResponse carries a task listing projection.
type ListTasksResponse struct {
	Tasks []TaskView `json:"tasks"`
	Total int        `json:"total"`
}

// AcceptTaskRequest is the payload for the accept service.
type AcceptTaskRequest struct {
	TaskID   string `json:"task_id"`
	CallerID string `json:"caller_id"`
}

// AcceptTaskResponse carries the accepted task; losing the race is an
// outcome, not an error.
type AcceptTaskResponse struct {
	Task    *TaskView `json:"task,omitempty"`
	Outcome *Outcome  `json:"outcome,omitempty"`
}

// AdvanceStatusRequest is the payload for the advance service.
type AdvanceStatusRequest struct {
	TaskID   string      `json:"task_id"`
	CallerID string      `json:"caller_id"`
	Target   task.Status `json:"target"`
	Note     string      `json:"note,omitempty"`
	PhotoRef string      `json:"photo_ref,omitempty"`
}

// AdvanceStatusResponse carries the updated task or a typed outcome.
type AdvanceStatusResponse struct {
	Task    *TaskView `json:"task,omitempty"`
	Outcome *Outcome  `json:"outcome,omitempty"`
}

// CancelTaskRequest is the payload for the cancel service.
type CancelTaskRequest struct {
	TaskID   string `json:"task_id"`
	CallerID string `json:"caller_id"`
	Note     string `json:"note,omitempty"`
}

// validateCreate checks a creation request against the input bounds.
func validateCreate(req CreateTaskRequest) error {
	switch {
	case req.Title == "" || !utf8.ValidString(req.Title):
		return validationErrorf("title is required")
	case utf8.RuneCountInString(req.Title) > MaxTitleLength:
		return validationErrorf("title exceeds %d characters", MaxTitleLength)
	case utf8.RuneCountInString(req.Description) > MaxDescriptionLength:
		return validationErrorf("description exceeds %d characters", MaxDescriptionLength)
	case !req.Category.Valid():
		return validationErrorf("unknown category %q", req.Category)
	case !req.Urgency.Valid():
		return validationErrorf("unknown urgency %q", req.Urgency)
	case req.DropoffAddress == "":
		return validationErrorf("dropoff address is required")
	case req.EstimatedMinutes < MinEstimatedMinutes || req.EstimatedMinutes > MaxEstimatedMinutes:
		return validationErrorf("estimated minutes must be between %d and %d", MinEstimatedMinutes, MaxEstimatedMinutes)
	case req.RewardCents < MinRewardCents || req.RewardCents > MaxRewardCents:
		return validationErrorf("reward must be between %d and %d cents", MinRewardCents, MaxRewardCents)
	}
	return nil
}

// toTaskView converts a task entity to its wire representation.
func toTaskView(t *task.Task) *TaskView {
	return &TaskView{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		Category:            t.Category,
		Store:               t.Store,
		DropoffAddress:      t.DropoffAddress,
		DropoffInstructions: t.DropoffInstructions,
		Urgency:             t.Urgency,
		EstimatedMinutes:    t.EstimatedMinutes,
		RewardCents:         t.RewardCents,
		CreatorID:           t.CreatorID,
		AcceptorID:          t.AcceptorID,
		Status:              t.Status,
		CurrentStatus:       t.CurrentStatus,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}
