package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/events"
)

func TestTracker_MergeTask(t *testing.T) {
	tr := NewTracker()

	t.Run("unknown task is adopted", func(t *testing.T) {
		merged := tr.MergeTask(TaskState{ID: "t1", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "alice"})
		if !merged {
			t.Fatal("merge of unknown task rejected")
		}
	})

	t.Run("forward transition wins", func(t *testing.T) {
		merged := tr.MergeTask(TaskState{ID: "t1", Status: task.StatusAccepted, CurrentStatus: task.StatusAccepted, CreatorID: "alice", AcceptorID: "bob"})
		if !merged {
			t.Fatal("forward merge rejected")
		}
		got, _ := tr.Task("t1")
		if got.CurrentStatus != task.StatusAccepted || got.AcceptorID != "bob" {
			t.Errorf("state = %+v", got)
		}
	})

	t.Run("stale push is ignored", func(t *testing.T) {
		merged := tr.MergeTask(TaskState{ID: "t1", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "alice"})
		if merged {
			t.Error("stale merge accepted")
		}
		got, _ := tr.Task("t1")
		if got.CurrentStatus != task.StatusAccepted {
			t.Errorf("current status = %q, want accepted", got.CurrentStatus)
		}
	})

	t.Run("same rank is ignored", func(t *testing.T) {
		if tr.MergeTask(TaskState{ID: "t1", Status: task.StatusAccepted, CurrentStatus: task.StatusAccepted, CreatorID: "alice", AcceptorID: "bob"}) {
			t.Error("replay of current state accepted")
		}
	})

	t.Run("unknown status never wins", func(t *testing.T) {
		if tr.MergeTask(TaskState{ID: "t1", Status: "confused", CurrentStatus: "confused"}) {
			t.Error("unknown status accepted")
		}
	})

	t.Run("acceptor is frozen once set", func(t *testing.T) {
		tr.MergeTask(TaskState{ID: "t1", Status: task.StatusStarted, CurrentStatus: task.StatusStarted, CreatorID: "alice", AcceptorID: ""})
		got, _ := tr.Task("t1")
		if got.AcceptorID != "bob" {
			t.Errorf("acceptor = %q, want bob preserved", got.AcceptorID)
		}
	})

	t.Run("cancellation outranks delivery", func(t *testing.T) {
		tr.MergeTask(TaskState{ID: "t1", Status: task.StatusDelivered, CurrentStatus: task.StatusDelivered, CreatorID: "alice", AcceptorID: "bob"})
		if !tr.MergeTask(TaskState{ID: "t1", Status: task.StatusCancelled, CurrentStatus: task.StatusCancelled, CreatorID: "alice", AcceptorID: "bob"}) {
			t.Fatal("cancellation rejected")
		}
		got, _ := tr.Task("t1")
		if got.CurrentStatus != task.StatusCancelled {
			t.Errorf("current status = %q, want cancelled", got.CurrentStatus)
		}
	})
}

func TestTracker_ReplaceTask(t *testing.T) {
	tr := NewTracker()
	tr.MergeTask(TaskState{ID: "t1", Status: task.StatusDelivered, CurrentStatus: task.StatusDelivered, CreatorID: "alice", AcceptorID: "bob"})

	// A fetched snapshot is authoritative even when it looks older
	// than the local view.
	tr.ReplaceTask(TaskState{ID: "t1", Status: task.StatusAccepted, CurrentStatus: task.StatusAccepted, CreatorID: "alice", AcceptorID: "bob"})
	got, ok := tr.Task("t1")
	if !ok || got.CurrentStatus != task.StatusAccepted {
		t.Errorf("state = %+v, ok = %v", got, ok)
	}
}

func TestTracker_Messages(t *testing.T) {
	tr := NewTracker()

	second := Message{ID: "m2", RoomID: "r1", SenderID: "bob", Content: "b", CreatedAt: time.Unix(200, 0)}
	first := Message{ID: "m1", RoomID: "r1", SenderID: "alice", Content: "a", CreatedAt: time.Unix(100, 0)}

	if !tr.MergeMessage(second) || !tr.MergeMessage(first) {
		t.Fatal("merge of new messages rejected")
	}
	if tr.MergeMessage(first) {
		t.Error("duplicate message accepted")
	}

	msgs := tr.Messages("r1")
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("order = %s, %s; want m1, m2", msgs[0].ID, msgs[1].ID)
	}
}

// fakeFeed records subscriptions and lets the test push events.
type fakeFeed struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	cancelled []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[string]Handler)}
}

func (f *fakeFeed) Subscribe(subject string, h Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[subject] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, subject)
		f.cancelled = append(f.cancelled, subject)
	}, nil
}

func (f *fakeFeed) push(t *testing.T, subject, kind string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f.mu.Lock()
	h := f.handlers[subject]
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("no handler for %s", subject)
	}
	h(Event{Subject: subject, Kind: kind, Payload: data})
}

func (f *fakeFeed) subscribed(subject string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[subject]
	return ok
}

// fakeFetcher serves snapshots and counts fetches.
type fakeFetcher struct {
	mu       sync.Mutex
	tasks    map[string]TaskState
	messages map[string][]Message
	fetches  int
}

func (f *fakeFetcher) FetchTask(_ context.Context, taskID string) (*TaskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	s, ok := f.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("unknown task %s", taskID)
	}
	return &s, nil
}

func (f *fakeFetcher) FetchMessages(_ context.Context, roomID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.messages[roomID], nil
}

func TestReconciler_TrackTask(t *testing.T) {
	feed := newFakeFeed()
	fetcher := &fakeFetcher{tasks: map[string]TaskState{
		"t1": {ID: "t1", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "alice"},
	}}
	r := NewReconciler(feed, fetcher)
	defer r.Close()

	if err := r.TrackTask(context.Background(), "t1"); err != nil {
		t.Fatalf("TrackTask error = %v", err)
	}
	if !feed.subscribed("task.t1") {
		t.Fatal("not subscribed to task.t1")
	}
	got, ok := r.Tracker().Task("t1")
	if !ok || got.CurrentStatus != task.StatusOpen {
		t.Errorf("state = %+v, ok = %v", got, ok)
	}

	// An acceptance pushed on the stream advances the local view.
	feed.push(t, "task.t1", "task_accepted", events.TaskAcceptedEvent{
		TaskID: "t1", CreatorID: "alice", AcceptorID: "bob",
	})
	got, _ = r.Tracker().Task("t1")
	if got.CurrentStatus != task.StatusAccepted || got.AcceptorID != "bob" {
		t.Errorf("state after push = %+v", got)
	}
}

func TestReconciler_PushBeforeFetchDoesNotRegress(t *testing.T) {
	feed := newFakeFeed()
	fetcher := &fakeFetcher{tasks: map[string]TaskState{
		"t1": {ID: "t1", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "alice"},
	}}
	r := NewReconciler(feed, fetcher)
	defer r.Close()

	// Subscribe happens before the snapshot fetch, so a push can land
	// first. The later, staler snapshot must not undo it.
	if err := r.TrackTask(context.Background(), "t1"); err != nil {
		t.Fatalf("TrackTask error = %v", err)
	}
	feed.push(t, "task.t1", "task_accepted", events.TaskAcceptedEvent{
		TaskID: "t1", CreatorID: "alice", AcceptorID: "bob",
	})

	got, _ := r.Tracker().Task("t1")
	if got.CurrentStatus != task.StatusAccepted {
		t.Fatalf("current status = %q, want accepted", got.CurrentStatus)
	}
}

func TestReconciler_RoomEvents(t *testing.T) {
	feed := newFakeFeed()
	fetcher := &fakeFetcher{
		tasks: map[string]TaskState{
			"t1": {ID: "t1", Status: task.StatusAccepted, CurrentStatus: task.StatusAccepted, CreatorID: "alice", AcceptorID: "bob"},
		},
		messages: map[string][]Message{
			"r1": {{ID: "m1", RoomID: "r1", SenderID: "alice", Content: "hi", CreatedAt: time.Unix(100, 0)}},
		},
	}
	r := NewReconciler(feed, fetcher)
	defer r.Close()

	if err := r.TrackTask(context.Background(), "t1"); err != nil {
		t.Fatalf("TrackTask error = %v", err)
	}
	feed.push(t, "task.t1", "room_created", events.RoomCreatedEvent{
		RoomID: "r1", TaskID: "t1", CreatorID: "alice", AcceptorID: "bob",
	})

	roomID, ok := r.Tracker().RoomFor("t1")
	if !ok || roomID != "r1" {
		t.Fatalf("RoomFor = %q, %v", roomID, ok)
	}

	if err := r.TrackRoom(context.Background(), roomID); err != nil {
		t.Fatalf("TrackRoom error = %v", err)
	}
	feed.push(t, "room.r1", "message_sent", events.MessageSentEvent{
		MessageID: "m2", RoomID: "r1", SenderID: "bob", Content: "omw", Timestamp: time.Unix(200, 0),
	})

	msgs := r.Tracker().Messages("r1")
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("order = %s, %s", msgs[0].ID, msgs[1].ID)
	}
}

func TestReconciler_Resync(t *testing.T) {
	feed := newFakeFeed()
	fetcher := &fakeFetcher{
		tasks: map[string]TaskState{
			"t1": {ID: "t1", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "alice"},
		},
		messages: map[string][]Message{"r1": nil},
	}
	r := NewReconciler(feed, fetcher)
	defer r.Close()

	if err := r.TrackTask(context.Background(), "t1"); err != nil {
		t.Fatalf("TrackTask error = %v", err)
	}
	if err := r.TrackRoom(context.Background(), "r1"); err != nil {
		t.Fatalf("TrackRoom error = %v", err)
	}

	// Local view drifted ahead on pushes the server later rolled back
	// (or the connection dropped mid-stream). The snapshot wins.
	r.Tracker().MergeTask(TaskState{ID: "t1", Status: task.StatusDelivered, CurrentStatus: task.StatusDelivered, CreatorID: "alice", AcceptorID: "bob"})
	r.Tracker().MergeMessage(Message{ID: "ghost", RoomID: "r1", SenderID: "bob", Content: "lost", CreatedAt: time.Unix(300, 0)})

	fetcher.mu.Lock()
	fetcher.tasks["t1"] = TaskState{ID: "t1", Status: task.StatusAccepted, CurrentStatus: task.StatusAccepted, CreatorID: "alice", AcceptorID: "bob"}
	fetcher.messages["r1"] = []Message{{ID: "m1", RoomID: "r1", SenderID: "alice", Content: "hi", CreatedAt: time.Unix(100, 0)}}
	fetcher.mu.Unlock()

	if err := r.Resync(context.Background()); err != nil {
		t.Fatalf("Resync error = %v", err)
	}

	got, _ := r.Tracker().Task("t1")
	if got.CurrentStatus != task.StatusAccepted {
		t.Errorf("current status = %q, want accepted", got.CurrentStatus)
	}
	msgs := r.Tracker().Messages("r1")
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("messages = %+v, want only m1", msgs)
	}
}

func TestReconciler_UntrackAndClose(t *testing.T) {
	feed := newFakeFeed()
	fetcher := &fakeFetcher{tasks: map[string]TaskState{
		"t1": {ID: "t1", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "alice"},
		"t2": {ID: "t2", Status: task.StatusOpen, CurrentStatus: task.StatusOpen, CreatorID: "bob"},
	}}
	r := NewReconciler(feed, fetcher)

	if err := r.TrackTask(context.Background(), "t1"); err != nil {
		t.Fatalf("TrackTask error = %v", err)
	}
	if err := r.TrackTask(context.Background(), "t2"); err != nil {
		t.Fatalf("TrackTask error = %v", err)
	}
	if err := r.TrackOpenFeed(); err != nil {
		t.Fatalf("TrackOpenFeed error = %v", err)
	}

	r.Untrack("task.t1")
	if feed.subscribed("task.t1") {
		t.Error("task.t1 still subscribed after Untrack")
	}
	if !feed.subscribed("task.t2") {
		t.Error("task.t2 dropped by Untrack of another subject")
	}

	r.Close()
	if feed.subscribed("task.t2") || feed.subscribed("tasks.open") {
		t.Error("subscriptions remain after Close")
	}
}
