package chat

import (
	"errors"
	"time"

	"github.com/example/campus-errands/domain/chat"
	"github.com/example/campus-errands/domain/task"
)

// MaxMessageLength bounds chat message content.
const MaxMessageLength = 2000

// DefaultMessagePageSize caps a message listing when the caller does
// not ask for a limit.
const DefaultMessagePageSize = 100

// Outcome codes for expected business failures. These travel in
// response payloads so they survive serialization across the bus.
const (
	OutcomeTaskNotFound    = "task_not_found"
	OutcomeRoomNotFound    = "room_not_found"
	OutcomeNoAcceptor      = "no_acceptor"
	OutcomeNotAMember      = "not_a_member"
	OutcomeRoomUnavailable = "room_unavailable"
	OutcomeInvalidMessage  = "invalid_message"
)

// Outcome describes an expected business failure.
type Outcome struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// outcomeFor maps domain sentinel errors to outcomes. Unknown errors
// return nil and propagate as real errors.
func outcomeFor(err error) *Outcome {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return &Outcome{Code: OutcomeTaskNotFound, Message: "task not found"}
	case errors.Is(err, chat.ErrRoomNotFound):
		return &Outcome{Code: OutcomeRoomNotFound, Message: "room not found"}
	case errors.Is(err, chat.ErrNoAcceptor):
		return &Outcome{Code: OutcomeNoAcceptor, Message: "task has no acceptor yet"}
	case errors.Is(err, chat.ErrNotAMember):
		return &Outcome{Code: OutcomeNotAMember, Message: "caller is not a room member"}
	case errors.Is(err, chat.ErrRoomCreationFailed):
		return &Outcome{Code: OutcomeRoomUnavailable, Message: "room is temporarily unavailable, retry"}
	case errors.Is(err, chat.ErrMessageInvalid):
		return &Outcome{Code: OutcomeInvalidMessage, Message: err.Error()}
	default:
		return nil
	}
}

// RoomView is the room projection returned to callers.
type RoomView struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	CreatorID  string    `json:"creator_id"`
	AcceptorID string    `json:"acceptor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageView is the message projection returned to callers.
type MessageView struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EnsureRoomRequest asks for the room of a task, creating it if the
// task is accepted and no room exists yet.
type EnsureRoomRequest struct {
	TaskID   string `json:"task_id"`
	CallerID string `json:"caller_id"`
}

// RoomResponse carries a room or a typed outcome.
type RoomResponse struct {
	Room    *RoomView `json:"room,omitempty"`
	Outcome *Outcome  `json:"outcome,omitempty"`
}

// GetRoomRequest asks for the existing room of a task without creating
// one.
type GetRoomRequest struct {
	TaskID   string `json:"task_id"`
	CallerID string `json:"caller_id"`
}

// RoomByIDRequest asks for a room by its own ID, membership checked.
type RoomByIDRequest struct {
	RoomID   string `json:"room_id"`
	CallerID string `json:"caller_id"`
}

// SendMessageRequest is the payload for the send-message service.
type SendMessageRequest struct {
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// SendMessageResponse carries the stored message or a typed outcome.
type SendMessageResponse struct {
	Message *MessageView `json:"message,omitempty"`
	Outcome *Outcome     `json:"outcome,omitempty"`
}

// MessagesRequest is the payload for the messages service.
type MessagesRequest struct {
	RoomID   string `json:"room_id"`
	CallerID string `json:"caller_id"`
	Limit    int    `json:"limit,omitempty"`
}

// MessagesResponse carries a room's messages in send order.
type MessagesResponse struct {
	Messages []MessageView `json:"messages"`
	Outcome  *Outcome      `json:"outcome,omitempty"`
}

func toRoomView(r *chat.Room) *RoomView {
	return &RoomView{
		ID:         r.ID,
		TaskID:     r.TaskID,
		CreatorID:  r.CreatorID,
		AcceptorID: r.AcceptorID,
		CreatedAt:  r.CreatedAt,
	}
}

func toMessageView(m *chat.Message) *MessageView {
	return &MessageView{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
