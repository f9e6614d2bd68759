package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/campus-errands/domain/task"
)

// TaskCreatedEvent is emitted after a task is committed with status open.
type TaskCreatedEvent struct {
	TaskID      string        `json:"task_id"`
	CreatorID   string        `json:"creator_id"`
	Title       string        `json:"title"`
	Category    task.Category `json:"category"`
	Urgency     task.Urgency  `json:"urgency"`
	RewardCents int64         `json:"reward_cents"`
	Timestamp   time.Time     `json:"timestamp"`
}

// TaskAcceptedEvent is emitted after the acceptance arbiter commits the
// open to accepted transition for exactly one acceptor.
type TaskAcceptedEvent struct {
	TaskID     string    `json:"task_id"`
	CreatorID  string    `json:"creator_id"`
	AcceptorID string    `json:"acceptor_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// TaskStatusChangedEvent is emitted after every committed status
// transition, including acceptance, completion and cancellation. It
// carries enough state for subscribers to merge idempotently without a
// read back.
type TaskStatusChangedEvent struct {
	TaskID        string      `json:"task_id"`
	Status        task.Status `json:"status"`
	CurrentStatus task.Status `json:"current_status"`
	ActorID       string      `json:"actor_id"`
	CreatorID     string      `json:"creator_id"`
	AcceptorID    string      `json:"acceptor_id,omitempty"`
	Note          string      `json:"note,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Event definitions for the tasks domain.
var (
	TaskCreatedV1 = helper.EventDefinition[TaskCreatedEvent](
		"tasks",
		"TaskCreated",
		"v1",
	)

	TaskAcceptedV1 = helper.EventDefinition[TaskAcceptedEvent](
		"tasks",
		"TaskAccepted",
		"v1",
	)

	TaskStatusChangedV1 = helper.EventDefinition[TaskStatusChangedEvent](
		"tasks",
		"TaskStatusChanged",
		"v1",
	)
)
