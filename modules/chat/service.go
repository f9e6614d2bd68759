package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/google/uuid"

	"github.com/example/campus-errands/domain/chat"
	"github.com/example/campus-errands/events"
)

// ensureRoom handles the chat.ensure-room service request. It resolves
// the task through the tasks module, verifies that the caller is a
// participant and the task has an acceptor, then finds or creates the
// task's single room.
func (m *Module) ensureRoom(ctx context.Context, req EnsureRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	taskResp, err := m.taskPort.GetTask(ctx, req.TaskID)
	if err != nil {
		return RoomResponse{}, err
	}
	if taskResp.Outcome != nil {
		return RoomResponse{Outcome: &Outcome{Code: OutcomeTaskNotFound, Message: "task not found"}}, nil
	}

	t := taskResp.Task
	if t.AcceptorID == "" {
		return RoomResponse{Outcome: outcomeFor(chat.ErrNoAcceptor)}, nil
	}
	if req.CallerID != t.CreatorID && req.CallerID != t.AcceptorID {
		return RoomResponse{Outcome: outcomeFor(chat.ErrNotAMember)}, nil
	}

	room, created, err := m.repo.EnsureRoom(ctx, t.ID, t.CreatorID, t.AcceptorID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return RoomResponse{Outcome: o}, nil
		}
		return RoomResponse{}, err
	}
	if created {
		m.publishRoomCreated(room)
	}

	return RoomResponse{Room: toRoomView(room)}, nil
}

// getRoom handles the chat.room service request. Read-only lookup, no
// room is created.
func (m *Module) getRoom(_ context.Context, req GetRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.repo.FindByTaskID(req.TaskID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return RoomResponse{Outcome: o}, nil
		}
		return RoomResponse{}, err
	}
	if !room.IsMember(req.CallerID) {
		return RoomResponse{Outcome: outcomeFor(chat.ErrNotAMember)}, nil
	}
	return RoomResponse{Room: toRoomView(room)}, nil
}

// roomByID handles the chat.room-by-id service request. Used by the
// websocket layer to authorize room subscriptions.
func (m *Module) roomByID(_ context.Context, req RoomByIDRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.repo.FindByID(req.RoomID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return RoomResponse{Outcome: o}, nil
		}
		return RoomResponse{}, err
	}
	if !room.IsMember(req.CallerID) {
		return RoomResponse{Outcome: outcomeFor(chat.ErrNotAMember)}, nil
	}
	return RoomResponse{Room: toRoomView(room)}, nil
}

// sendMessage handles the chat.send-message service request.
func (m *Module) sendMessage(_ context.Context, req SendMessageRequest, _ *mono.Msg) (SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > MaxMessageLength {
		return SendMessageResponse{Outcome: outcomeFor(chat.ErrMessageInvalid)}, nil
	}

	room, err := m.repo.FindByID(req.RoomID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return SendMessageResponse{Outcome: o}, nil
		}
		return SendMessageResponse{}, err
	}
	if !room.IsMember(req.SenderID) {
		return SendMessageResponse{Outcome: outcomeFor(chat.ErrNotAMember)}, nil
	}

	msg := &chat.Message{
		ID:        uuid.New().String(),
		RoomID:    room.ID,
		SenderID:  req.SenderID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := m.repo.AppendMessage(msg); err != nil {
		return SendMessageResponse{}, err
	}

	m.publishMessageSent(msg)
	return SendMessageResponse{Message: toMessageView(msg)}, nil
}

// messages handles the chat.messages service request.
func (m *Module) messages(_ context.Context, req MessagesRequest, _ *mono.Msg) (MessagesResponse, error) {
	room, err := m.repo.FindByID(req.RoomID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return MessagesResponse{Outcome: o}, nil
		}
		return MessagesResponse{}, err
	}
	if !room.IsMember(req.CallerID) {
		return MessagesResponse{Outcome: outcomeFor(chat.ErrNotAMember)}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultMessagePageSize
	}
	msgs, err := m.repo.Messages(room.ID, limit)
	if err != nil {
		return MessagesResponse{}, err
	}

	views := make([]MessageView, len(msgs))
	for i := range msgs {
		views[i] = *toMessageView(&msgs[i])
	}
	return MessagesResponse{Messages: views}, nil
}

// publishRoomCreated emits RoomCreated. Publishing is best effort; the
// room is already committed.
func (m *Module) publishRoomCreated(room *chat.Room) {
	if m.eventBus == nil {
		return
	}
	event := events.RoomCreatedEvent{
		RoomID:     room.ID,
		TaskID:     room.TaskID,
		CreatorID:  room.CreatorID,
		AcceptorID: room.AcceptorID,
		Timestamp:  time.Now(),
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[chat] Warning: failed to publish RoomCreated event: %v", err)
	}
}

func (m *Module) publishMessageSent(msg *chat.Message) {
	if m.eventBus == nil {
		return
	}
	event := events.MessageSentEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	}
	if err := events.MessageSentV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[chat] Warning: failed to publish MessageSent event: %v", err)
	}
}
