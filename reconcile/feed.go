// Package reconcile keeps a client-side projection of tasks and chat
// rooms consistent with the server. Pushed events are merged
// idempotently; staleness is decided by status rank, never by wall
// clock; a reconnect re-fetches every tracked entity.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/campus-errands/domain/task"
)

// Event is one frame delivered by a feed. Subject names the stream,
// Kind the event inside it; Payload is the event body.
type Event struct {
	Subject string          `json:"subject"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Handler consumes events for one subscription.
type Handler func(Event)

// Feed is the transport the reconciler listens on, usually a WebSocket
// wrapper. Subscribe returns a cancel function that releases the
// subscription.
type Feed interface {
	Subscribe(subject string, h Handler) (cancel func(), err error)
}

// Fetcher reads authoritative state from the server, usually over
// HTTP. Used for initial snapshots and reconnect re-fetches.
type Fetcher interface {
	FetchTask(ctx context.Context, taskID string) (*TaskState, error)
	FetchMessages(ctx context.Context, roomID string) ([]Message, error)
}

// TaskState is the client-side projection of one task.
type TaskState struct {
	ID            string      `json:"id"`
	Status        task.Status `json:"status"`
	CurrentStatus task.Status `json:"current_status"`
	CreatorID     string      `json:"creator_id"`
	AcceptorID    string      `json:"acceptor_id,omitempty"`
}

// Message is the client-side projection of one chat message.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
