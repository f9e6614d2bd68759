package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort is the interface other modules use to reach chat services.
type ChatPort interface {
	EnsureRoom(ctx context.Context, taskID, callerID string) (*RoomResponse, error)
	GetRoom(ctx context.Context, taskID, callerID string) (*RoomResponse, error)
	GetRoomByID(ctx context.Context, roomID, callerID string) (*RoomResponse, error)
	SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error)
	Messages(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error)
}

type chatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates an adapter over the chat service container.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat adapter requires non-nil ServiceContainer")
	}
	return &chatAdapter{container: container}
}

func (a *chatAdapter) EnsureRoom(ctx context.Context, taskID, callerID string) (*RoomResponse, error) {
	req := EnsureRoomRequest{TaskID: taskID, CallerID: callerID}
	var resp RoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "ensure-room", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("ensure-room service call failed: %w", err)
	}
	return &resp, nil
}

func (a *chatAdapter) GetRoom(ctx context.Context, taskID, callerID string) (*RoomResponse, error) {
	req := GetRoomRequest{TaskID: taskID, CallerID: callerID}
	var resp RoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "room", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("room service call failed: %w", err)
	}
	return &resp, nil
}

func (a *chatAdapter) GetRoomByID(ctx context.Context, roomID, callerID string) (*RoomResponse, error) {
	req := RoomByIDRequest{RoomID: roomID, CallerID: callerID}
	var resp RoomResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "room-by-id", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("room-by-id service call failed: %w", err)
	}
	return &resp, nil
}

func (a *chatAdapter) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	var resp SendMessageResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "send-message", json.Marshal, json.Unmarshal, req, &resp,
	); err != nil {
		return nil, fmt.Errorf("send-message service call failed: %w", err)
	}
	return &resp, nil
}

func (a *chatAdapter) Messages(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	var resp MessagesResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "messages", json.Marshal, json.Unmarshal, req, &resp,
	); err != nil {
		return nil, fmt.Errorf("messages service call failed: %w", err)
	}
	return &resp, nil
}
