package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/redis/go-redis/v9"

	"github.com/example/campus-errands/events"
)

// DefaultTTL bounds staleness of cached open-task pages. Invalidation
// by lifecycle events is the primary mechanism; the TTL is the backstop
// for missed events.
const DefaultTTL = 30 * time.Second

// Module provides the Redis caching layer as a mono module. It listens
// to task lifecycle events and drops cached open-task listings whenever
// the open set may have changed.
type Module struct {
	cache     *Cache
	client    *redis.Client
	redisAddr string
	prefix    string
	ttl       time.Duration
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new cache module.
func NewModule(redisAddr string) *Module {
	return &Module{
		redisAddr: redisAddr,
		prefix:    "errands:",
		ttl:       DefaultTTL,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// RegisterEventConsumers subscribes to the task events that can change
// the set of open tasks.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskAcceptedV1, m.handleTaskAccepted, m); err != nil {
		return fmt.Errorf("failed to register TaskAccepted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskStatusChangedV1, m.handleTaskStatusChanged, m); err != nil {
		return fmt.Errorf("failed to register TaskStatusChanged consumer: %w", err)
	}

	log.Printf("[cache] Registered event consumers: TaskCreated, TaskAccepted, TaskStatusChanged")
	return nil
}

// Start connects to Redis and initializes the cache.
func (m *Module) Start(ctx context.Context) error {
	m.client = redis.NewClient(&redis.Options{
		Addr:         m.redisAddr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.cache = New(m.client, m.prefix, m.ttl)
	log.Printf("[cache] Connected to Redis at %s (prefix: %s, TTL: %s)", m.redisAddr, m.prefix, m.ttl)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Health verifies the Redis connection.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.cache == nil {
		return mono.HealthStatus{Healthy: false, Message: "cache not initialized"}
	}
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":  m.redisAddr,
			"stats": m.cache.GetStats(),
		},
	}
}

// GetCache returns the cache instance for injection into other modules.
func (m *Module) GetCache() *Cache {
	return m.cache
}

func (m *Module) handleTaskCreated(ctx context.Context, _ events.TaskCreatedEvent, _ *mono.Msg) error {
	return m.invalidateOpenListings(ctx)
}

func (m *Module) handleTaskAccepted(ctx context.Context, _ events.TaskAcceptedEvent, _ *mono.Msg) error {
	return m.invalidateOpenListings(ctx)
}

func (m *Module) handleTaskStatusChanged(ctx context.Context, _ events.TaskStatusChangedEvent, _ *mono.Msg) error {
	// Only transitions out of open change the open set, but the keyspace
	// is small, so invalidate on every change.
	return m.invalidateOpenListings(ctx)
}

func (m *Module) invalidateOpenListings(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	if err := m.cache.DeletePattern(ctx, "open:*"); err != nil {
		log.Printf("[cache] Warning: failed to invalidate open listings: %v", err)
	}
	return nil
}
