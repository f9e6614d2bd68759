package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/events"
)

func completionEvent(taskID string) events.TaskStatusChangedEvent {
	return events.TaskStatusChangedEvent{
		TaskID:        taskID,
		Status:        task.StatusCompleted,
		CurrentStatus: task.StatusCompleted,
		ActorID:       "alice",
		CreatorID:     "alice",
		AcceptorID:    "bob",
		Timestamp:     time.Unix(1000, 0),
	}
}

func TestCheckEligible(t *testing.T) {
	ctx := context.Background()
	m := NewModule()

	require.NoError(t, m.handleTaskStatusChanged(ctx, completionEvent("t1"), nil))

	t.Run("creator may review acceptor", func(t *testing.T) {
		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "t1", CallerID: "alice"}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Eligible)
		assert.Equal(t, "bob", resp.CounterpartyID)
	})

	t.Run("acceptor may review creator", func(t *testing.T) {
		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "t1", CallerID: "bob"}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Eligible)
		assert.Equal(t, "alice", resp.CounterpartyID)
	})

	t.Run("non-participant is not eligible", func(t *testing.T) {
		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "t1", CallerID: "mallory"}, nil)
		require.NoError(t, err)
		assert.False(t, resp.Eligible)
		require.NotNil(t, resp.Outcome)
		assert.Equal(t, OutcomeNotEligible, resp.Outcome.Code)
	})

	t.Run("unknown task is not eligible", func(t *testing.T) {
		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "missing", CallerID: "alice"}, nil)
		require.NoError(t, err)
		assert.False(t, resp.Eligible)
		require.NotNil(t, resp.Outcome)
		assert.Equal(t, OutcomeNotEligible, resp.Outcome.Code)
	})
}

func TestHandleTaskStatusChanged_Filters(t *testing.T) {
	ctx := context.Background()

	t.Run("only completions are recorded", func(t *testing.T) {
		m := NewModule()
		event := completionEvent("t1")
		event.Status = task.StatusDelivered
		event.CurrentStatus = task.StatusDelivered

		require.NoError(t, m.handleTaskStatusChanged(ctx, event, nil))

		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "t1", CallerID: "alice"}, nil)
		require.NoError(t, err)
		assert.False(t, resp.Eligible)
	})

	t.Run("completion without acceptor is ignored", func(t *testing.T) {
		m := NewModule()
		event := completionEvent("t1")
		event.AcceptorID = ""

		require.NoError(t, m.handleTaskStatusChanged(ctx, event, nil))

		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "t1", CallerID: "alice"}, nil)
		require.NoError(t, err)
		assert.False(t, resp.Eligible)
	})

	t.Run("redelivery is idempotent", func(t *testing.T) {
		m := NewModule()
		for i := 0; i < 3; i++ {
			require.NoError(t, m.handleTaskStatusChanged(ctx, completionEvent("t1"), nil))
		}

		resp, err := m.checkEligible(ctx, EligibleRequest{TaskID: "t1", CallerID: "bob"}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Eligible)
		assert.True(t, resp.CompletedAt.Equal(time.Unix(1000, 0)))
	})
}
