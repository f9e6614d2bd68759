package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort is the interface other modules use to reach task services.
// Dependent modules receive the tasks service container and wrap it in
// an adapter, so they depend on this interface rather than on the
// module internals.
type TaskPort interface {
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*CreateTaskResponse, error)
	GetTask(ctx context.Context, taskID string) (*GetTaskResponse, error)
	TaskHistory(ctx context.Context, taskID string) (*HistoryResponse, error)
	ListOpen(ctx context.Context, callerID string, page int) (*ListTasksResponse, error)
	ListByCreator(ctx context.Context, userID string) (*ListTasksResponse, error)
	ListByAcceptor(ctx context.Context, userID string) (*ListTasksResponse, error)
	AcceptTask(ctx context.Context, taskID, callerID string) (*AcceptTaskResponse, error)
	AdvanceStatus(ctx context.Context, req *AdvanceStatusRequest) (*AdvanceStatusResponse, error)
	CancelTask(ctx context.Context, req *CancelTaskRequest) (*AdvanceStatusResponse, error)
}

// taskAdapter wraps the tasks ServiceContainer for type-safe
// cross-module communication.
type taskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates an adapter over the tasks service container,
// as received via SetDependencyServiceContainer.
func NewTaskAdapter(container mono.ServiceContainer) TaskPort {
	if container == nil {
		panic("task adapter requires non-nil ServiceContainer")
	}
	return &taskAdapter{container: container}
}

func (a *taskAdapter) CreateTask(ctx context.Context, req *CreateTaskRequest) (*CreateTaskResponse, error) {
	var resp CreateTaskResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "create", json.Marshal, json.Unmarshal, req, &resp,
	); err != nil {
		return nil, fmt.Errorf("create service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) GetTask(ctx context.Context, taskID string) (*GetTaskResponse, error) {
	req := GetTaskRequest{TaskID: taskID}
	var resp GetTaskResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "get", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("get service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) TaskHistory(ctx context.Context, taskID string) (*HistoryResponse, error) {
	req := HistoryRequest{TaskID: taskID}
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "history", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("history service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) ListOpen(ctx context.Context, callerID string, page int) (*ListTasksResponse, error) {
	req := ListOpenRequest{CallerID: callerID, Page: page}
	var resp ListTasksResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "list-open", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("list-open service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) ListByCreator(ctx context.Context, userID string) (*ListTasksResponse, error) {
	req := ListByUserRequest{UserID: userID}
	var resp ListTasksResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "list-by-creator", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("list-by-creator service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) ListByAcceptor(ctx context.Context, userID string) (*ListTasksResponse, error) {
	req := ListByUserRequest{UserID: userID}
	var resp ListTasksResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "list-by-acceptor", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("list-by-acceptor service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) AcceptTask(ctx context.Context, taskID, callerID string) (*AcceptTaskResponse, error) {
	req := AcceptTaskRequest{TaskID: taskID, CallerID: callerID}
	var resp AcceptTaskResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "accept", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("accept service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) AdvanceStatus(ctx context.Context, req *AdvanceStatusRequest) (*AdvanceStatusResponse, error) {
	var resp AdvanceStatusResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "advance", json.Marshal, json.Unmarshal, req, &resp,
	); err != nil {
		return nil, fmt.Errorf("advance service call failed: %w", err)
	}
	return &resp, nil
}

func (a *taskAdapter) CancelTask(ctx context.Context, req *CancelTaskRequest) (*AdvanceStatusResponse, error) {
	var resp AdvanceStatusResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "cancel", json.Marshal, json.Unmarshal, req, &resp,
	); err != nil {
		return nil, fmt.Errorf("cancel service call failed: %w", err)
	}
	return &resp, nil
}
