package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/campus-errands/domain/chat"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// SQLite allows a single writer. Serializing connections keeps
	// concurrent tests from tripping over "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&chat.Room{}, &chat.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(setupTestDB(t))
	if err != nil {
		t.Fatalf("NewRepository error = %v", err)
	}
	return repo
}

func TestRepository_EnsureRoom(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	room, created, err := repo.EnsureRoom(ctx, "task-1", "alice", "bob")
	if err != nil {
		t.Fatalf("EnsureRoom error = %v", err)
	}
	if !created {
		t.Error("created = false on first call, want true")
	}
	if room.TaskID != "task-1" || room.CreatorID != "alice" || room.AcceptorID != "bob" {
		t.Errorf("room = %+v", room)
	}
	if len(room.ID) != roomIDLength {
		t.Errorf("room ID length = %d, want %d", len(room.ID), roomIDLength)
	}

	again, created, err := repo.EnsureRoom(ctx, "task-1", "alice", "bob")
	if err != nil {
		t.Fatalf("EnsureRoom error = %v", err)
	}
	if created {
		t.Error("created = true on second call, want false")
	}
	if again.ID != room.ID {
		t.Errorf("second call returned room %q, want %q", again.ID, room.ID)
	}

	var count int64
	if err := repo.db.Model(&chat.Room{}).Count(&count).Error; err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 1 {
		t.Errorf("room rows = %d, want 1", count)
	}
}

func TestRepository_EnsureRoom_Concurrent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var createdCount atomic.Int64
	ids := make([]string, 10)

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		i := i
		g.Go(func() error {
			room, created, err := repo.EnsureRoom(ctx, "task-race", "alice", "bob")
			if err != nil {
				return err
			}
			if created {
				createdCount.Add(1)
			}
			ids[i] = room.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("EnsureRoom error = %v", err)
	}

	if got := createdCount.Load(); got != 1 {
		t.Errorf("created count = %d, want 1", got)
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Errorf("caller %d got room %q, want %q", i, id, ids[0])
		}
	}

	var count int64
	if err := repo.db.Model(&chat.Room{}).Count(&count).Error; err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 1 {
		t.Errorf("room rows = %d, want 1", count)
	}
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.FindByID("missing"); err != chat.ErrRoomNotFound {
		t.Errorf("FindByID error = %v, want ErrRoomNotFound", err)
	}
	if _, err := repo.FindByTaskID("missing"); err != chat.ErrRoomNotFound {
		t.Errorf("FindByTaskID error = %v, want ErrRoomNotFound", err)
	}
}

func TestRepository_Messages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	room, _, err := repo.EnsureRoom(ctx, "task-1", "alice", "bob")
	if err != nil {
		t.Fatalf("EnsureRoom error = %v", err)
	}

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		msg := &chat.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			RoomID:    room.ID,
			SenderID:  "alice",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.AppendMessage(msg); err != nil {
			t.Fatalf("AppendMessage error = %v", err)
		}
	}

	msgs, err := repo.Messages(room.ID, 0)
	if err != nil {
		t.Fatalf("Messages error = %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("messages = %d, want 5", len(msgs))
	}
	for i, msg := range msgs {
		if want := fmt.Sprintf("msg-%d", i); msg.ID != want {
			t.Errorf("messages[%d].ID = %q, want %q", i, msg.ID, want)
		}
	}

	limited, err := repo.Messages(room.ID, 2)
	if err != nil {
		t.Fatalf("Messages error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited messages = %d, want 2", len(limited))
	}
}
