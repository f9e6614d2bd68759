package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/events"
)

// Tracker holds the client's view of tasks and room messages and
// applies updates idempotently. Safe for concurrent use.
type Tracker struct {
	mu          sync.RWMutex
	tasks       map[string]*TaskState
	messages    map[string][]Message       // roomID -> ordered messages
	seen        map[string]map[string]bool // roomID -> message IDs
	roomsByTask map[string]string          // taskID -> roomID
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		tasks:       make(map[string]*TaskState),
		messages:    make(map[string][]Message),
		seen:        make(map[string]map[string]bool),
		roomsByTask: make(map[string]string),
	}
}

// MergeTask applies a task update and reports whether it changed the
// view. Unknown tasks are added. A known task only moves forward:
// updates whose status rank does not exceed the stored rank are
// discarded, which makes redelivery and reordering harmless. An
// acceptor, once recorded, is never overwritten.
func (t *Tracker) MergeTask(s TaskState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.tasks[s.ID]
	if !ok {
		cp := s
		t.tasks[s.ID] = &cp
		return true
	}

	newRank := s.CurrentStatus.Rank()
	if newRank < 0 || newRank <= existing.CurrentStatus.Rank() {
		return false
	}

	if existing.AcceptorID != "" {
		s.AcceptorID = existing.AcceptorID
	}
	cp := s
	t.tasks[s.ID] = &cp
	return true
}

// ReplaceTask overwrites the stored state with server truth,
// bypassing the rank check. Used by resync, where the fetched state is
// authoritative by definition.
func (t *Tracker) ReplaceTask(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := s
	t.tasks[s.ID] = &cp
}

// Task returns the tracked state of a task.
func (t *Tracker) Task(taskID string) (TaskState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.tasks[taskID]
	if !ok {
		return TaskState{}, false
	}
	return *s, true
}

// MergeMessage adds a message to its room unless it was seen before.
// Messages stay ordered by creation time with ID as tiebreaker.
func (t *Tracker) MergeMessage(msg Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[msg.RoomID] == nil {
		t.seen[msg.RoomID] = make(map[string]bool)
	}
	if t.seen[msg.RoomID][msg.ID] {
		return false
	}
	t.seen[msg.RoomID][msg.ID] = true

	msgs := append(t.messages[msg.RoomID], msg)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	t.messages[msg.RoomID] = msgs
	return true
}

// ReplaceMessages overwrites a room's message list with server truth.
func (t *Tracker) ReplaceMessages(roomID string, msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		seen[m.ID] = true
	}
	t.messages[roomID] = append([]Message(nil), msgs...)
	t.seen[roomID] = seen
}

// Messages returns a copy of a room's tracked messages.
func (t *Tracker) Messages(roomID string) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message(nil), t.messages[roomID]...)
}

// SetRoomBinding records which room belongs to a task.
func (t *Tracker) SetRoomBinding(taskID, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roomsByTask[taskID] = roomID
}

// RoomFor returns the room bound to a task, if known.
func (t *Tracker) RoomFor(taskID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roomID, ok := t.roomsByTask[taskID]
	return roomID, ok
}

// Reconciler ties a feed and a fetcher to a tracker. Track* methods
// subscribe before fetching so no event falls between snapshot and
// stream; the rank check absorbs the overlap.
type Reconciler struct {
	feed    Feed
	fetcher Fetcher
	tracker *Tracker

	mu      sync.Mutex
	cancels map[string]func()
}

// NewReconciler creates a reconciler over the given transport.
func NewReconciler(feed Feed, fetcher Fetcher) *Reconciler {
	return &Reconciler{
		feed:    feed,
		fetcher: fetcher,
		tracker: NewTracker(),
		cancels: make(map[string]func()),
	}
}

// Tracker exposes the underlying view.
func (r *Reconciler) Tracker() *Tracker {
	return r.tracker
}

// TrackTask subscribes to a task's stream and loads its snapshot.
func (r *Reconciler) TrackTask(ctx context.Context, taskID string) error {
	if err := r.subscribe("task." + taskID); err != nil {
		return err
	}

	state, err := r.fetcher.FetchTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch task %s: %w", taskID, err)
	}
	r.tracker.MergeTask(*state)
	return nil
}

// TrackRoom subscribes to a room's stream and loads its messages.
func (r *Reconciler) TrackRoom(ctx context.Context, roomID string) error {
	if err := r.subscribe("room." + roomID); err != nil {
		return err
	}

	msgs, err := r.fetcher.FetchMessages(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to fetch messages for room %s: %w", roomID, err)
	}
	for _, m := range msgs {
		r.tracker.MergeMessage(m)
	}
	return nil
}

// TrackOpenFeed subscribes to the open-task listing stream.
func (r *Reconciler) TrackOpenFeed() error {
	return r.subscribe("tasks.open")
}

// Untrack releases the subscription for a subject.
func (r *Reconciler) Untrack(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[subject]; ok {
		cancel()
		delete(r.cancels, subject)
	}
}

// Close releases every subscription.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = make(map[string]func())
}

// Resync re-fetches every tracked entity after a reconnect. Pushes may
// have been lost while disconnected, so fetched state replaces the
// local view outright.
func (r *Reconciler) Resync(ctx context.Context) error {
	r.mu.Lock()
	var taskIDs, roomIDs []string
	for subject := range r.cancels {
		switch {
		case len(subject) > 5 && subject[:5] == "task.":
			taskIDs = append(taskIDs, subject[5:])
		case len(subject) > 5 && subject[:5] == "room.":
			roomIDs = append(roomIDs, subject[5:])
		}
	}
	r.mu.Unlock()

	for _, taskID := range taskIDs {
		state, err := r.fetcher.FetchTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("resync of task %s failed: %w", taskID, err)
		}
		r.tracker.ReplaceTask(*state)
	}
	for _, roomID := range roomIDs {
		msgs, err := r.fetcher.FetchMessages(ctx, roomID)
		if err != nil {
			return fmt.Errorf("resync of room %s failed: %w", roomID, err)
		}
		r.tracker.ReplaceMessages(roomID, msgs)
	}
	return nil
}

func (r *Reconciler) subscribe(subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cancels[subject]; ok {
		return nil
	}
	cancel, err := r.feed.Subscribe(subject, r.handleEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	r.cancels[subject] = cancel
	return nil
}

// handleEvent translates pushed envelopes into tracker merges. Payloads
// that fail to decode are dropped; the next resync repairs any gap.
func (r *Reconciler) handleEvent(e Event) {
	switch e.Kind {
	case "task_created":
		var ev events.TaskCreatedEvent
		if json.Unmarshal(e.Payload, &ev) != nil {
			return
		}
		r.tracker.MergeTask(TaskState{
			ID:            ev.TaskID,
			Status:        task.StatusOpen,
			CurrentStatus: task.StatusOpen,
			CreatorID:     ev.CreatorID,
		})
	case "task_accepted":
		var ev events.TaskAcceptedEvent
		if json.Unmarshal(e.Payload, &ev) != nil {
			return
		}
		r.tracker.MergeTask(TaskState{
			ID:            ev.TaskID,
			Status:        task.StatusAccepted,
			CurrentStatus: task.StatusAccepted,
			CreatorID:     ev.CreatorID,
			AcceptorID:    ev.AcceptorID,
		})
	case "task_status_changed":
		var ev events.TaskStatusChangedEvent
		if json.Unmarshal(e.Payload, &ev) != nil {
			return
		}
		r.tracker.MergeTask(TaskState{
			ID:            ev.TaskID,
			Status:        ev.Status,
			CurrentStatus: ev.CurrentStatus,
			CreatorID:     ev.CreatorID,
			AcceptorID:    ev.AcceptorID,
		})
	case "room_created":
		var ev events.RoomCreatedEvent
		if json.Unmarshal(e.Payload, &ev) != nil {
			return
		}
		r.tracker.SetRoomBinding(ev.TaskID, ev.RoomID)
	case "message_sent":
		var ev events.MessageSentEvent
		if json.Unmarshal(e.Payload, &ev) != nil {
			return
		}
		r.tracker.MergeMessage(Message{
			ID:        ev.MessageID,
			RoomID:    ev.RoomID,
			SenderID:  ev.SenderID,
			Content:   ev.Content,
			CreatedAt: ev.Timestamp,
		})
	}
}
