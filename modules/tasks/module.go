package tasks

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

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/events"
	"github.com/example/campus-errands/modules/cache"
)

// Module owns task storage and arbitration: the task store, the
// acceptance arbiter and the status transition validator, exposed as
// request-reply services.
type Module struct {
	db       *gorm.DB
	repo     *Repository
	eventBus mono.EventBus
	cache    *cache.Cache
	dbPath   string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new tasks module.
func NewModule() *Module {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "errands.db"
	}
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "tasks"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// SetCache wires the optional open-task listing cache. Wired manually
// from main because the cache is injected, not a service dependency.
func (m *Module) SetCache(c *cache.Cache) {
	m.cache = c
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskAcceptedV1.ToBase(),
		events.TaskStatusChangedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service
// container. The framework prefixes names with "services.tasks.".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create", json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register create service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get", json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register get service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "history", json.Unmarshal, json.Marshal, m.taskHistory,
	); err != nil {
		return fmt.Errorf("failed to register history service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-open", json.Unmarshal, json.Marshal, m.listOpen,
	); err != nil {
		return fmt.Errorf("failed to register list-open service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-by-creator", json.Unmarshal, json.Marshal, m.listByCreator,
	); err != nil {
		return fmt.Errorf("failed to register list-by-creator service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-by-acceptor", json.Unmarshal, json.Marshal, m.listByAcceptor,
	); err != nil {
		return fmt.Errorf("failed to register list-by-acceptor service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "accept", json.Unmarshal, json.Marshal, m.acceptTask,
	); err != nil {
		return fmt.Errorf("failed to register accept service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "advance", json.Unmarshal, json.Marshal, m.advanceStatus,
	); err != nil {
		return fmt.Errorf("failed to register advance service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "cancel", json.Unmarshal, json.Marshal, m.cancelTask,
	); err != nil {
		return fmt.Errorf("failed to register cancel service: %w", err)
	}

	log.Printf("[tasks] Registered services: create, get, history, list-open, list-by-creator, list-by-acceptor, accept, advance, cancel")
	return nil
}

// Start opens the database, runs migrations and initializes the repository.
func (m *Module) Start(_ context.Context) error {
	log.Printf("[tasks] Connecting to SQLite database: %s", m.dbPath)

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

	if err := m.db.AutoMigrate(&task.Task{}, &task.StatusHistoryEntry{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(m.db)

	log.Println("[tasks] Module started")
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
	log.Println("[tasks] Database connection closed")
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
