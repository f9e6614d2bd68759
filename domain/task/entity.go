package task

import (
	"time"
)

// Task is a postable errand moving through a fixed lifecycle. Tasks are
// never deleted; terminal states are kept for history and review
// eligibility.
type Task struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title               string   `gorm:"size:120;not null" json:"title"`
	Description         string   `gorm:"size:2000" json:"description"`
	Category            Category `gorm:"size:32;not null" json:"category"`
	Store               string   `gorm:"size:120" json:"store"`
	DropoffAddress      string   `gorm:"size:200;not null" json:"dropoff_address"`
	DropoffInstructions string   `gorm:"size:500" json:"dropoff_instructions"`
	Urgency             Urgency  `gorm:"size:16;not null" json:"urgency"`
	EstimatedMinutes    int      `gorm:"not null" json:"estimated_minutes"`

	// RewardCents is in minor currency units and immutable after creation.
	RewardCents int64 `gorm:"not null" json:"reward_cents"`

	CreatorID string `gorm:"size:36;not null;index" json:"creator_id"`

	// AcceptorID is empty exactly while the task is open. Once set by the
	// acceptance arbiter it never changes for the life of the task.
	AcceptorID string `gorm:"size:36;index" json:"acceptor_id,omitempty"`

	// Status is the coarse lifecycle state; CurrentStatus tracks the
	// in-progress sub-phase while the task is accepted.
	Status        Status `gorm:"size:16;not null;index" json:"status"`
	CurrentStatus Status `gorm:"size:16;not null;index" json:"current_status"`
}

// TableName returns the table name for the Task model.
func (Task) TableName() string {
	return "tasks"
}

// IsParticipant reports whether userID is the task's creator or acceptor.
func (t *Task) IsParticipant(userID string) bool {
	return userID == t.CreatorID || (t.AcceptorID != "" && userID == t.AcceptorID)
}

// StatusHistoryEntry records one accepted status transition. Entries are
// append-only and written in the same transaction as the status change,
// so history and current state never diverge.
type StatusHistoryEntry struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	TaskID    string    `gorm:"size:36;not null;index" json:"task_id"`
	Status    Status    `gorm:"size:16;not null" json:"status"`
	ActorID   string    `gorm:"size:36;not null" json:"actor_id"`
	Note      string    `gorm:"size:500" json:"note,omitempty"`
	PhotoRef  string    `gorm:"size:200" json:"photo_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the StatusHistoryEntry model.
func (StatusHistoryEntry) TableName() string {
	return "task_status_history"
}
