package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/campus-errands/domain/chat"
	"github.com/example/campus-errands/events"
	"github.com/example/campus-errands/modules/tasks"
)

// Module binds chat rooms to tasks. Rooms are created lazily on the
// first ensure-room call after acceptance, and eagerly when the module
// observes a TaskAccepted event. Both paths converge on one room per
// task.
type Module struct {
	db       *gorm.DB
	repo     *Repository
	eventBus mono.EventBus
	taskPort tasks.TaskPort
	dbPath   string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new chat module.
func NewModule() *Module {
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "errands-chat.db"
	}
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Dependencies declares the modules this module calls into.
func (m *Module) Dependencies() []string {
	return []string{"tasks"}
}

// SetDependencyServiceContainer receives service containers from
// dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "tasks":
		m.taskPort = tasks.NewTaskAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.MessageSentV1.ToBase(),
	}
}

// RegisterServices registers the chat request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "ensure-room", json.Unmarshal, json.Marshal, m.ensureRoom,
	); err != nil {
		return fmt.Errorf("failed to register ensure-room service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "room", json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register room service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "room-by-id", json.Unmarshal, json.Marshal, m.roomByID,
	); err != nil {
		return fmt.Errorf("failed to register room-by-id service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "send-message", json.Unmarshal, json.Marshal, m.sendMessage,
	); err != nil {
		return fmt.Errorf("failed to register send-message service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "messages", json.Unmarshal, json.Marshal, m.messages,
	); err != nil {
		return fmt.Errorf("failed to register messages service: %w", err)
	}

	log.Printf("[chat] Registered services: ensure-room, room, room-by-id, send-message, messages")
	return nil
}

// RegisterEventConsumers subscribes to task acceptance so rooms exist
// before either participant opens the chat.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskAcceptedV1, m.handleTaskAccepted, m); err != nil {
		return fmt.Errorf("failed to register TaskAccepted consumer: %w", err)
	}

	log.Printf("[chat] Registered event consumers: TaskAccepted")
	return nil
}

// handleTaskAccepted eagerly creates the task's room. EnsureRoom is
// idempotent, so racing with an ensure-room service call is harmless.
func (m *Module) handleTaskAccepted(ctx context.Context, event events.TaskAcceptedEvent, _ *mono.Msg) error {
	room, created, err := m.repo.EnsureRoom(ctx, event.TaskID, event.CreatorID, event.AcceptorID)
	if err != nil {
		// The next ensure-room call retries; do not fail the consumer.
		log.Printf("[chat] Warning: failed to ensure room for task %s: %v", event.TaskID, err)
		return nil
	}
	if created {
		m.publishRoomCreated(room)
		log.Printf("[chat] Room %s created for task %s", room.ID, room.TaskID)
	}
	return nil
}

// Start opens the database, runs migrations and initializes the
// repository.
func (m *Module) Start(_ context.Context) error {
	if m.taskPort == nil {
		return fmt.Errorf("tasks dependency not set")
	}

	log.Printf("[chat] Connecting to SQLite database: %s", m.dbPath)

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&chat.Room{}, &chat.Message{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := NewRepository(m.db)
	if err != nil {
		return err
	}
	m.repo = repo

	log.Println("[chat] Module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("[chat] Database connection closed")
	return nil
}

// Health performs a database health check.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}
