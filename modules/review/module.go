// Package review tracks which completed tasks unlock a mutual review
// between creator and acceptor. Eligibility is derived from the task
// event stream and kept in memory; it can always be rebuilt by
// replaying completions.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/events"
)

// Module answers review-eligibility queries.
type Module struct {
	mu       sync.RWMutex
	eligible map[string]eligibility // taskID -> eligibility
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new review module.
func NewModule() *Module {
	return &Module{eligible: make(map[string]eligibility)}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "review"
}

// RegisterServices registers the eligibility query service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "eligible", json.Unmarshal, json.Marshal, m.checkEligible,
	); err != nil {
		return fmt.Errorf("failed to register eligible service: %w", err)
	}

	log.Printf("[review] Registered services: eligible")
	return nil
}

// RegisterEventConsumers subscribes to status changes to observe
// completions.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.TaskStatusChangedV1, m.handleTaskStatusChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register TaskStatusChanged consumer: %w", err)
	}

	log.Printf("[review] Registered event consumers: TaskStatusChanged")
	return nil
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[review] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[review] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	count := len(m.eligible)
	m.mu.RUnlock()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"eligible_tasks": count,
		},
	}
}

// handleTaskStatusChanged records an eligibility entry when a task
// completes. Redelivered events overwrite with identical data, so the
// handler is idempotent.
func (m *Module) handleTaskStatusChanged(_ context.Context, event events.TaskStatusChangedEvent, _ *mono.Msg) error {
	if event.CurrentStatus != task.StatusCompleted {
		return nil
	}
	if event.AcceptorID == "" {
		return nil
	}

	m.mu.Lock()
	m.eligible[event.TaskID] = eligibility{
		TaskID:      event.TaskID,
		CreatorID:   event.CreatorID,
		AcceptorID:  event.AcceptorID,
		CompletedAt: event.Timestamp,
	}
	m.mu.Unlock()

	log.Printf("[review] Task %s completed, participants may review each other", event.TaskID)
	return nil
}

// checkEligible handles the review.eligible service request.
func (m *Module) checkEligible(_ context.Context, req EligibleRequest, _ *mono.Msg) (EligibleResponse, error) {
	m.mu.RLock()
	e, ok := m.eligible[req.TaskID]
	m.mu.RUnlock()

	if !ok {
		return EligibleResponse{Outcome: &Outcome{Code: OutcomeNotEligible, Message: "task is not completed"}}, nil
	}

	var counterparty string
	switch req.CallerID {
	case e.CreatorID:
		counterparty = e.AcceptorID
	case e.AcceptorID:
		counterparty = e.CreatorID
	default:
		return EligibleResponse{Outcome: &Outcome{Code: OutcomeNotEligible, Message: "caller was not a participant"}}, nil
	}

	return EligibleResponse{
		Eligible:       true,
		CounterpartyID: counterparty,
		CompletedAt:    e.CompletedAt,
	}, nil
}
