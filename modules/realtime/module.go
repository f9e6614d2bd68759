package realtime

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/campus-errands/events"
)

// Subject names for the streams clients can subscribe to.
const (
	SubjectOpenTasks = "tasks.open"
)

// TaskSubject is the per-task stream carrying status changes and the
// room binding.
func TaskSubject(taskID string) string {
	return "task." + taskID
}

// RoomSubject is the per-room stream carrying chat messages.
func RoomSubject(roomID string) string {
	return "room." + roomID
}

// Module consumes task and chat events and pushes them to WebSocket
// subscribers through the hub.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new realtime module.
func NewModule() *Module {
	return &Module{hub: NewHub()}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "realtime"
}

// Start launches the hub loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[realtime] Module started, hub running")
	return nil
}

// Stop shuts down the hub and closes all client connections.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[realtime] Module stopped, %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// GetHub returns the hub for the API module's WebSocket endpoint.
func (m *Module) GetHub() *Hub {
	return m.hub
}

// RegisterEventConsumers subscribes to every event the engine emits.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.TaskCreatedV1, m.handleTaskCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.TaskAcceptedV1, m.handleTaskAccepted, m,
	); err != nil {
		return fmt.Errorf("failed to register TaskAccepted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.TaskStatusChangedV1, m.handleTaskStatusChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register TaskStatusChanged consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	log.Println("[realtime] Registered event consumers: TaskCreated, TaskAccepted, TaskStatusChanged, RoomCreated, MessageSent")
	return nil
}

func (m *Module) handleTaskCreated(_ context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	m.hub.Publish(SubjectOpenTasks, "task_created", event)
	return nil
}

func (m *Module) handleTaskAccepted(_ context.Context, event events.TaskAcceptedEvent, _ *mono.Msg) error {
	// The accepted task leaves the open feed and its watchers learn the
	// acceptor.
	m.hub.Publish(SubjectOpenTasks, "task_accepted", event)
	m.hub.Publish(TaskSubject(event.TaskID), "task_accepted", event)
	return nil
}

func (m *Module) handleTaskStatusChanged(_ context.Context, event events.TaskStatusChangedEvent, _ *mono.Msg) error {
	m.hub.Publish(TaskSubject(event.TaskID), "task_status_changed", event)
	m.hub.Publish(SubjectOpenTasks, "task_status_changed", event)
	return nil
}

func (m *Module) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	// Watchers of the task learn the room ID to subscribe to.
	m.hub.Publish(TaskSubject(event.TaskID), "room_created", event)
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.hub.Publish(RoomSubject(event.RoomID), "message_sent", event)
	return nil
}
