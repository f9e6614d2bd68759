package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/example/campus-errands/modules/tasks"
)

// fakeTaskPort serves canned task lookups. Only GetTask is exercised by
// this module; the rest of the port exists to satisfy the interface.
type fakeTaskPort struct {
	tasksByID map[string]*tasks.TaskView
}

var _ tasks.TaskPort = (*fakeTaskPort)(nil)

func (f *fakeTaskPort) GetTask(_ context.Context, taskID string) (*tasks.GetTaskResponse, error) {
	t, ok := f.tasksByID[taskID]
	if !ok {
		return &tasks.GetTaskResponse{Outcome: &tasks.Outcome{Code: tasks.CodeNotFound}}, nil
	}
	return &tasks.GetTaskResponse{Task: t}, nil
}

func (f *fakeTaskPort) CreateTask(context.Context, *tasks.CreateTaskRequest) (*tasks.CreateTaskResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) TaskHistory(context.Context, string) (*tasks.HistoryResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) ListOpen(context.Context, string, int) (*tasks.ListTasksResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) ListByCreator(context.Context, string) (*tasks.ListTasksResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) ListByAcceptor(context.Context, string) (*tasks.ListTasksResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) AcceptTask(context.Context, string, string) (*tasks.AcceptTaskResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) AdvanceStatus(context.Context, *tasks.AdvanceStatusRequest) (*tasks.AdvanceStatusResponse, error) {
	panic("not used")
}

func (f *fakeTaskPort) CancelTask(context.Context, *tasks.CancelTaskRequest) (*tasks.AdvanceStatusResponse, error) {
	panic("not used")
}

func newTestChatModule(t *testing.T) *Module {
	t.Helper()
	return &Module{
		repo: newTestRepository(t),
		taskPort: &fakeTaskPort{tasksByID: map[string]*tasks.TaskView{
			"task-accepted": {ID: "task-accepted", CreatorID: "alice", AcceptorID: "bob"},
			"task-open":     {ID: "task-open", CreatorID: "alice"},
		}},
	}
}

func TestEnsureRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown task", func(t *testing.T) {
		m := newTestChatModule(t)
		resp, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "missing", CallerID: "alice"}, nil)
		if err != nil {
			t.Fatalf("ensureRoom error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeTaskNotFound {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeTaskNotFound)
		}
	})

	t.Run("task without acceptor", func(t *testing.T) {
		m := newTestChatModule(t)
		resp, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "task-open", CallerID: "alice"}, nil)
		if err != nil {
			t.Fatalf("ensureRoom error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeNoAcceptor {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeNoAcceptor)
		}
	})

	t.Run("non-participant", func(t *testing.T) {
		m := newTestChatModule(t)
		resp, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "task-accepted", CallerID: "mallory"}, nil)
		if err != nil {
			t.Fatalf("ensureRoom error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeNotAMember {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeNotAMember)
		}
	})

	t.Run("creates once for both participants", func(t *testing.T) {
		m := newTestChatModule(t)

		first, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "task-accepted", CallerID: "alice"}, nil)
		if err != nil {
			t.Fatalf("ensureRoom error = %v", err)
		}
		if first.Outcome != nil {
			t.Fatalf("outcome = %+v", first.Outcome)
		}
		if first.Room.TaskID != "task-accepted" {
			t.Errorf("room task = %q", first.Room.TaskID)
		}

		second, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "task-accepted", CallerID: "bob"}, nil)
		if err != nil {
			t.Fatalf("ensureRoom error = %v", err)
		}
		if second.Room == nil || second.Room.ID != first.Room.ID {
			t.Errorf("second room = %+v, want ID %q", second.Room, first.Room.ID)
		}
	})
}

func TestSendMessageAndList(t *testing.T) {
	ctx := context.Background()
	m := newTestChatModule(t)

	roomResp, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "task-accepted", CallerID: "alice"}, nil)
	if err != nil || roomResp.Room == nil {
		t.Fatalf("ensureRoom = %+v, %v", roomResp, err)
	}
	roomID := roomResp.Room.ID

	t.Run("empty content rejected", func(t *testing.T) {
		resp, err := m.sendMessage(ctx, SendMessageRequest{RoomID: roomID, SenderID: "alice", Content: "   "}, nil)
		if err != nil {
			t.Fatalf("sendMessage error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeInvalidMessage {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeInvalidMessage)
		}
	})

	t.Run("oversized content rejected", func(t *testing.T) {
		resp, err := m.sendMessage(ctx, SendMessageRequest{
			RoomID:   roomID,
			SenderID: "alice",
			Content:  strings.Repeat("x", MaxMessageLength+1),
		}, nil)
		if err != nil {
			t.Fatalf("sendMessage error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeInvalidMessage {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeInvalidMessage)
		}
	})

	t.Run("non-member rejected", func(t *testing.T) {
		resp, err := m.sendMessage(ctx, SendMessageRequest{RoomID: roomID, SenderID: "mallory", Content: "hi"}, nil)
		if err != nil {
			t.Fatalf("sendMessage error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeNotAMember {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeNotAMember)
		}
	})

	t.Run("members exchange messages in order", func(t *testing.T) {
		for _, msg := range []struct{ sender, content string }{
			{"alice", "where are you?"},
			{"bob", "at the store, 5 min"},
			{"alice", "  thanks!  "},
		} {
			resp, err := m.sendMessage(ctx, SendMessageRequest{RoomID: roomID, SenderID: msg.sender, Content: msg.content}, nil)
			if err != nil {
				t.Fatalf("sendMessage error = %v", err)
			}
			if resp.Outcome != nil {
				t.Fatalf("outcome = %+v", resp.Outcome)
			}
		}

		listResp, err := m.messages(ctx, MessagesRequest{RoomID: roomID, CallerID: "bob"}, nil)
		if err != nil {
			t.Fatalf("messages error = %v", err)
		}
		if listResp.Outcome != nil {
			t.Fatalf("outcome = %+v", listResp.Outcome)
		}
		if len(listResp.Messages) != 3 {
			t.Fatalf("messages = %d, want 3", len(listResp.Messages))
		}
		if listResp.Messages[1].SenderID != "bob" {
			t.Errorf("messages[1].SenderID = %q, want bob", listResp.Messages[1].SenderID)
		}
		if listResp.Messages[2].Content != "thanks!" {
			t.Errorf("content = %q, want trimmed %q", listResp.Messages[2].Content, "thanks!")
		}
	})

	t.Run("non-member cannot list", func(t *testing.T) {
		resp, err := m.messages(ctx, MessagesRequest{RoomID: roomID, CallerID: "mallory"}, nil)
		if err != nil {
			t.Fatalf("messages error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeNotAMember {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeNotAMember)
		}
	})
}

func TestGetRoomAndRoomByID(t *testing.T) {
	ctx := context.Background()
	m := newTestChatModule(t)

	t.Run("get before creation", func(t *testing.T) {
		resp, err := m.getRoom(ctx, GetRoomRequest{TaskID: "task-accepted", CallerID: "alice"}, nil)
		if err != nil {
			t.Fatalf("getRoom error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeRoomNotFound {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeRoomNotFound)
		}
	})

	created, err := m.ensureRoom(ctx, EnsureRoomRequest{TaskID: "task-accepted", CallerID: "alice"}, nil)
	if err != nil || created.Room == nil {
		t.Fatalf("ensureRoom = %+v, %v", created, err)
	}

	t.Run("member reads by task", func(t *testing.T) {
		resp, err := m.getRoom(ctx, GetRoomRequest{TaskID: "task-accepted", CallerID: "bob"}, nil)
		if err != nil {
			t.Fatalf("getRoom error = %v", err)
		}
		if resp.Room == nil || resp.Room.ID != created.Room.ID {
			t.Errorf("room = %+v, want ID %q", resp.Room, created.Room.ID)
		}
	})

	t.Run("member reads by room ID", func(t *testing.T) {
		resp, err := m.roomByID(ctx, RoomByIDRequest{RoomID: created.Room.ID, CallerID: "alice"}, nil)
		if err != nil {
			t.Fatalf("roomByID error = %v", err)
		}
		if resp.Room == nil || resp.Room.TaskID != "task-accepted" {
			t.Errorf("room = %+v", resp.Room)
		}
	})

	t.Run("non-member rejected by room ID", func(t *testing.T) {
		resp, err := m.roomByID(ctx, RoomByIDRequest{RoomID: created.Room.ID, CallerID: "mallory"}, nil)
		if err != nil {
			t.Fatalf("roomByID error = %v", err)
		}
		if resp.Outcome == nil || resp.Outcome.Code != OutcomeNotAMember {
			t.Errorf("outcome = %+v, want %s", resp.Outcome, OutcomeNotAMember)
		}
	})
}
