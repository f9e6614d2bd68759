package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted once when a task's chat room is created.
// Concurrent ensure-room callers converge on one room, so subscribers
// see this at most once per task (plus bus-level redelivery).
type RoomCreatedEvent struct {
	RoomID     string    `json:"room_id"`
	TaskID     string    `json:"task_id"`
	CreatorID  string    `json:"creator_id"`
	AcceptorID string    `json:"acceptor_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted after a chat message is committed.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)

	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)
)
