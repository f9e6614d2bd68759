package tasks

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/campus-errands/domain/task"
)

// Repository provides access to task storage. All state transitions are
// expressed as atomic conditional writes so that concurrent callers are
// arbitrated by the database, not by in-process locks.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new task repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new task. The caller is responsible for validation; the
// task always starts open with no acceptor.
func (r *Repository) Create(t *task.Task) error {
	t.Status = task.StatusOpen
	t.CurrentStatus = task.StatusOpen
	t.AcceptorID = ""
	if err := r.db.Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindByID retrieves a task by its ID. Absence yields ErrNotFound and
// nothing else; it is a normal outcome, not a query failure.
func (r *Repository) FindByID(id string) (*task.Task, error) {
	var t task.Task
	if err := r.db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &t, nil
}

// ListOpen returns open tasks excluding those posted by excludeCreator,
// newest first. The projection is eventually consistent with respect to
// the most recent committed write.
func (r *Repository) ListOpen(excludeCreator string, offset, limit int) ([]*task.Task, error) {
	var out []*task.Task
	err := r.db.
		Where("current_status = ? AND creator_id <> ?", task.StatusOpen, excludeCreator).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}
	return out, nil
}

// ListByCreator returns all tasks posted by userID, newest first.
func (r *Repository) ListByCreator(userID string) ([]*task.Task, error) {
	var out []*task.Task
	err := r.db.
		Where("creator_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by creator: %w", err)
	}
	return out, nil
}

// ListByAcceptor returns all tasks claimed by userID, newest first.
func (r *Repository) ListByAcceptor(userID string) ([]*task.Task, error) {
	var out []*task.Task
	err := r.db.
		Where("acceptor_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by acceptor: %w", err)
	}
	return out, nil
}

// History returns the status history of a task in commit order.
func (r *Repository) History(taskID string) ([]*task.StatusHistoryEntry, error) {
	var out []*task.StatusHistoryEntry
	err := r.db.
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load task history: %w", err)
	}
	return out, nil
}

// Accept arbitrates concurrent acceptance attempts. The open to accepted
// transition is a single conditional write: among simultaneous callers
// only the first observes a changed row; everyone else gets
// ErrAlreadyAccepted, distinguished from ErrNotFound by re-reading the
// row inside the same transaction.
func (r *Repository) Accept(taskID, callerID string) (*task.Task, error) {
	var accepted task.Task
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&task.Task{}).
			Where("id = ? AND current_status = ?", taskID, task.StatusOpen).
			Updates(map[string]any{
				"status":         task.StatusAccepted,
				"current_status": task.StatusAccepted,
				"acceptor_id":    callerID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to accept task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Zero rows means either the task never existed or another
			// caller won the race. Only a read can tell the two apart.
			var count int64
			if err := tx.Model(&task.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check task existence: %w", err)
			}
			if count == 0 {
				return task.ErrNotFound
			}
			return task.ErrAlreadyAccepted
		}

		entry := &task.StatusHistoryEntry{
			ID:      uuid.New().String(),
			TaskID:  taskID,
			Status:  task.StatusAccepted,
			ActorID: callerID,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append history entry: %w", err)
		}

		if err := tx.First(&accepted, "id = ?", taskID).Error; err != nil {
			return fmt.Errorf("failed to reload accepted task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &accepted, nil
}

// Transition applies one validated status change conditioned on the
// expected predecessor, appending the history entry in the same
// transaction. A zero-row update means the task's state moved under the
// caller; nothing is applied and ErrInvalidTransition is returned.
func (r *Repository) Transition(taskID string, from, to task.Status, actorID, note, photoRef string) (*task.Task, error) {
	var updated task.Task
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&task.Task{}).
			Where("id = ? AND current_status = ?", taskID, from).
			Updates(map[string]any{
				"status":         to.Coarse(),
				"current_status": to,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to transition task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&task.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check task existence: %w", err)
			}
			if count == 0 {
				return task.ErrNotFound
			}
			return task.ErrInvalidTransition
		}

		entry := &task.StatusHistoryEntry{
			ID:       uuid.New().String(),
			TaskID:   taskID,
			Status:   to,
			ActorID:  actorID,
			Note:     note,
			PhotoRef: photoRef,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append history entry: %w", err)
		}

		if err := tx.First(&updated, "id = ?", taskID).Error; err != nil {
			return fmt.Errorf("failed to reload task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
