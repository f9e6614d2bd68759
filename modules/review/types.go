package review

import "time"

// Outcome codes for expected business failures.
const (
	OutcomeNotEligible = "not_eligible"
)

// Outcome describes an expected business failure.
type Outcome struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// eligibility records one completed task whose participants may review
// each other.
type eligibility struct {
	TaskID      string
	CreatorID   string
	AcceptorID  string
	CompletedAt time.Time
}

// EligibleRequest asks whether the caller may review their counterparty
// for a task.
type EligibleRequest struct {
	TaskID   string `json:"task_id"`
	CallerID string `json:"caller_id"`
}

// EligibleResponse names the counterparty when the caller is eligible.
type EligibleResponse struct {
	Eligible       bool      `json:"eligible"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
	Outcome        *Outcome  `json:"outcome,omitempty"`
}
