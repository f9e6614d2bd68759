package chat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gonanoid "github.com/jaevor/go-nanoid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/example/campus-errands/domain/chat"
)

const (
	roomIDLength = 21

	// ensureRoomAttempts bounds the find-or-create loop. Each retry
	// waits attempt*ensureRoomBackoff before trying again.
	ensureRoomAttempts = 3
	ensureRoomBackoff  = 300 * time.Millisecond
)

// Repository handles database operations for rooms and messages.
type Repository struct {
	db     *gorm.DB
	newID  func() string
	ensure singleflight.Group
}

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	newID, err := gonanoid.Standard(roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create room id generator: %w", err)
	}
	return &Repository{db: db, newID: newID}, nil
}

// EnsureRoom returns the room bound to taskID, creating it if missing.
// Concurrent callers for the same task are collapsed into one
// find-or-create; losers of a create race converge on the winner's row
// through the unique index on task_id. Returns whether this call
// created the room.
func (r *Repository) EnsureRoom(ctx context.Context, taskID, creatorID, acceptorID string) (*chat.Room, bool, error) {
	// The created flag must not be shared between collapsed callers,
	// or every caller in the flight would publish RoomCreated. The
	// first caller to claim it reports created.
	type result struct {
		room  *chat.Room
		claim atomic.Bool
	}

	v, err, _ := r.ensure.Do(taskID, func() (interface{}, error) {
		var lastErr error
		for attempt := 1; attempt <= ensureRoomAttempts; attempt++ {
			room, created, err := r.findOrCreate(taskID, creatorID, acceptorID)
			if err == nil {
				res := &result{room: room}
				res.claim.Store(created)
				return res, nil
			}
			lastErr = err

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * ensureRoomBackoff):
			}
		}
		return nil, fmt.Errorf("%w: %v", chat.ErrRoomCreationFailed, lastErr)
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(*result)
	return res.room, res.claim.CompareAndSwap(true, false), nil
}

func (r *Repository) findOrCreate(taskID, creatorID, acceptorID string) (*chat.Room, bool, error) {
	var existing chat.Room
	err := r.db.Where("task_id = ?", taskID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to find room: %w", err)
	}

	room := chat.Room{
		ID:         r.newID(),
		TaskID:     taskID,
		CreatorID:  creatorID,
		AcceptorID: acceptorID,
		CreatedAt:  time.Now(),
	}
	if err := r.db.Create(&room).Error; err != nil {
		// A concurrent creator may have won the unique index on
		// task_id. Re-read before treating this as a failure.
		var winner chat.Room
		if ferr := r.db.Where("task_id = ?", taskID).First(&winner).Error; ferr == nil {
			return &winner, false, nil
		}
		return nil, false, fmt.Errorf("failed to create room: %w", err)
	}

	return &room, true, nil
}

// FindByID retrieves a room by its ID.
func (r *Repository) FindByID(roomID string) (*chat.Room, error) {
	var room chat.Room
	if err := r.db.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// FindByTaskID retrieves the room bound to a task, if any.
func (r *Repository) FindByTaskID(taskID string) (*chat.Room, error) {
	var room chat.Room
	if err := r.db.Where("task_id = ?", taskID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// AppendMessage stores a new message.
func (r *Repository) AppendMessage(msg *chat.Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// Messages returns the messages of a room in send order, capped at
// limit. A non-positive limit returns everything.
func (r *Repository) Messages(roomID string, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	q := r.db.Where("room_id = ?", roomID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
