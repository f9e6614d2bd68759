package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/google/uuid"

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/events"
)

// validationErrorf builds an ErrValidation-wrapped error with detail.
func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{task.ErrValidation}, args...)...)
}

// createTask handles the tasks.create service request. Tasks always
// start open; the reward is fixed at creation.
func (m *Module) createTask(_ context.Context, req CreateTaskRequest, _ *mono.Msg) (CreateTaskResponse, error) {
	if req.CallerID == "" {
		return CreateTaskResponse{Outcome: outcomeFor(validationErrorf("caller id is required"))}, nil
	}
	if err := validateCreate(req); err != nil {
		return CreateTaskResponse{Outcome: outcomeFor(err)}, nil
	}

	t := &task.Task{
		ID:                  uuid.New().String(),
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		Store:               req.Store,
		DropoffAddress:      req.DropoffAddress,
		DropoffInstructions: req.DropoffInstructions,
		Urgency:             req.Urgency,
		EstimatedMinutes:    req.EstimatedMinutes,
		RewardCents:         req.RewardCents,
		CreatorID:           req.CallerID,
	}
	if err := m.repo.Create(t); err != nil {
		return CreateTaskResponse{}, err
	}

	m.publishCreated(t)
	return CreateTaskResponse{Task: toTaskView(t)}, nil
}

// getTask handles the tasks.get service request.
func (m *Module) getTask(_ context.Context, req GetTaskRequest, _ *mono.Msg) (GetTaskResponse, error) {
	t, err := m.repo.FindByID(req.TaskID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return GetTaskResponse{Outcome: o}, nil
		}
		return GetTaskResponse{}, err
	}
	return GetTaskResponse{Task: toTaskView(t)}, nil
}

// taskHistory handles the tasks.history service request.
func (m *Module) taskHistory(_ context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	if _, err := m.repo.FindByID(req.TaskID); err != nil {
		if o := outcomeFor(err); o != nil {
			return HistoryResponse{Outcome: o}, nil
		}
		return HistoryResponse{}, err
	}

	entries, err := m.repo.History(req.TaskID)
	if err != nil {
		return HistoryResponse{}, err
	}

	resp := HistoryResponse{Entries: make([]HistoryEntryView, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, HistoryEntryView{
			Status:    e.Status,
			ActorID:   e.ActorID,
			Note:      e.Note,
			PhotoRef:  e.PhotoRef,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp, nil
}

// listOpen handles the tasks.list-open service request. When a cache is
// wired the page is served read-through with event-driven invalidation.
func (m *Module) listOpen(ctx context.Context, req ListOpenRequest, _ *mono.Msg) (ListTasksResponse, error) {
	page := req.Page
	if page < 0 {
		page = 0
	}

	cacheKey := fmt.Sprintf("open:%s:%d", req.CallerID, page)
	if m.cache != nil {
		var cached ListTasksResponse
		hit, err := m.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			log.Printf("[tasks] Warning: open-task cache read failed: %v", err)
		}
		if hit {
			return cached, nil
		}
	}

	list, err := m.repo.ListOpen(req.CallerID, page*OpenPageSize, OpenPageSize)
	if err != nil {
		return ListTasksResponse{}, err
	}
	resp := toListResponse(list)

	if m.cache != nil {
		if err := m.cache.Set(ctx, cacheKey, resp); err != nil {
			log.Printf("[tasks] Warning: open-task cache write failed: %v", err)
		}
	}
	return resp, nil
}

// listByCreator handles the tasks.list-by-creator service request.
func (m *Module) listByCreator(_ context.Context, req ListByUserRequest, _ *mono.Msg) (ListTasksResponse, error) {
	list, err := m.repo.ListByCreator(req.UserID)
	if err != nil {
		return ListTasksResponse{}, err
	}
	return toListResponse(list), nil
}

// listByAcceptor handles the tasks.list-by-acceptor service request.
func (m *Module) listByAcceptor(_ context.Context, req ListByUserRequest, _ *mono.Msg) (ListTasksResponse, error) {
	list, err := m.repo.ListByAcceptor(req.UserID)
	if err != nil {
		return ListTasksResponse{}, err
	}
	return toListResponse(list), nil
}

// acceptTask handles the tasks.accept service request. Self-acceptance
// is a business rule checked before the conditional write; losing the
// write race yields an already-accepted outcome, detected rather than
// assumed.
func (m *Module) acceptTask(_ context.Context, req AcceptTaskRequest, _ *mono.Msg) (AcceptTaskResponse, error) {
	t, err := m.repo.FindByID(req.TaskID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return AcceptTaskResponse{Outcome: o}, nil
		}
		return AcceptTaskResponse{}, err
	}
	if t.CreatorID == req.CallerID {
		return AcceptTaskResponse{Outcome: outcomeFor(task.ErrSelfAcceptance)}, nil
	}

	accepted, err := m.repo.Accept(req.TaskID, req.CallerID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return AcceptTaskResponse{Outcome: o}, nil
		}
		return AcceptTaskResponse{}, err
	}

	m.publishAccepted(accepted)
	m.publishStatusChanged(accepted, req.CallerID, "")
	return AcceptTaskResponse{Task: toTaskView(accepted)}, nil
}

// advanceStatus handles the tasks.advance service request, enforcing the
// transition graph and actor authorization before the conditional write.
func (m *Module) advanceStatus(_ context.Context, req AdvanceStatusRequest, _ *mono.Msg) (AdvanceStatusResponse, error) {
	if req.Target == task.StatusCancelled {
		// Cancellation has its own entry point and rules.
		return AdvanceStatusResponse{Outcome: outcomeFor(task.ErrInvalidTransition)}, nil
	}
	return m.transition(req.TaskID, req.CallerID, req.Target, req.Note, req.PhotoRef)
}

// cancelTask handles the tasks.cancel service request. Cancellation is
// reachable from any non-terminal state, by the creator only.
func (m *Module) cancelTask(_ context.Context, req CancelTaskRequest, _ *mono.Msg) (AdvanceStatusResponse, error) {
	return m.transition(req.TaskID, req.CallerID, task.StatusCancelled, req.Note, "")
}

// transition validates, authorizes and applies one status change.
func (m *Module) transition(taskID, callerID string, target task.Status, note, photoRef string) (AdvanceStatusResponse, error) {
	t, err := m.repo.FindByID(taskID)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return AdvanceStatusResponse{Outcome: o}, nil
		}
		return AdvanceStatusResponse{}, err
	}

	if err := authorizeTransition(t, callerID, target); err != nil {
		return AdvanceStatusResponse{Outcome: outcomeFor(err)}, nil
	}
	if !task.CanTransition(t.CurrentStatus, target) {
		return AdvanceStatusResponse{Outcome: outcomeFor(task.ErrInvalidTransition)}, nil
	}

	updated, err := m.repo.Transition(taskID, t.CurrentStatus, target, callerID, note, photoRef)
	if err != nil {
		if o := outcomeFor(err); o != nil {
			return AdvanceStatusResponse{Outcome: o}, nil
		}
		return AdvanceStatusResponse{}, err
	}

	m.publishStatusChanged(updated, callerID, note)
	return AdvanceStatusResponse{Task: toTaskView(updated)}, nil
}

// authorizeTransition enforces who may request which transition: the
// acceptor drives the in-progress sub-phases, the creator confirms
// completion and cancels. Non-participants are rejected outright.
func authorizeTransition(t *task.Task, callerID string, target task.Status) error {
	if !t.IsParticipant(callerID) {
		return task.ErrForbidden
	}
	switch target {
	case task.StatusStarted, task.StatusOnTheWay, task.StatusDelivered:
		if callerID != t.AcceptorID {
			return task.ErrForbidden
		}
	case task.StatusCompleted, task.StatusCancelled:
		if callerID != t.CreatorID {
			return task.ErrForbidden
		}
	default:
		return task.ErrInvalidTransition
	}
	return nil
}

// Event publication. Events go out only after a successful commit and
// are best effort: a failed publish is logged, never unwound.

func (m *Module) publishCreated(t *task.Task) {
	if m.eventBus == nil {
		return
	}
	ev := events.TaskCreatedEvent{
		TaskID:      t.ID,
		CreatorID:   t.CreatorID,
		Title:       t.Title,
		Category:    t.Category,
		Urgency:     t.Urgency,
		RewardCents: t.RewardCents,
		Timestamp:   time.Now(),
	}
	if err := events.TaskCreatedV1.Publish(m.eventBus, ev, nil); err != nil {
		log.Printf("[tasks] Warning: failed to publish TaskCreated for %s: %v", t.ID, err)
	}
}

func (m *Module) publishAccepted(t *task.Task) {
	if m.eventBus == nil {
		return
	}
	ev := events.TaskAcceptedEvent{
		TaskID:     t.ID,
		CreatorID:  t.CreatorID,
		AcceptorID: t.AcceptorID,
		Timestamp:  time.Now(),
	}
	if err := events.TaskAcceptedV1.Publish(m.eventBus, ev, nil); err != nil {
		log.Printf("[tasks] Warning: failed to publish TaskAccepted for %s: %v", t.ID, err)
	}
}

func (m *Module) publishStatusChanged(t *task.Task, actorID, note string) {
	if m.eventBus == nil {
		return
	}
	ev := events.TaskStatusChangedEvent{
		TaskID:        t.ID,
		Status:        t.Status,
		CurrentStatus: t.CurrentStatus,
		ActorID:       actorID,
		CreatorID:     t.CreatorID,
		AcceptorID:    t.AcceptorID,
		Note:          note,
		Timestamp:     time.Now(),
	}
	if err := events.TaskStatusChangedV1.Publish(m.eventBus, ev, nil); err != nil {
		log.Printf("[tasks] Warning: failed to publish TaskStatusChanged for %s: %v", t.ID, err)
	}
}

// toListResponse converts task entities to a listing response.
func toListResponse(list []*task.Task) ListTasksResponse {
	resp := ListTasksResponse{
		Tasks: make([]TaskView, 0, len(list)),
		Total: len(list),
	}
	for _, t := range list {
		resp.Tasks = append(resp.Tasks, *toTaskView(t))
	}
	return resp
}
