package chat

import "time"

// Room is the single chat channel bound to a task. At most one room
// exists per task (unique index on TaskID); its two members are the
// task's creator and acceptor, fixed at creation. Rooms outlive tasks
// and are never deleted.
type Room struct {
	ID         string    `gorm:"primarykey;size:21" json:"id"`
	TaskID     string    `gorm:"size:36;not null;uniqueIndex" json:"task_id"`
	CreatorID  string    `gorm:"size:36;not null" json:"creator_id"`
	AcceptorID string    `gorm:"size:36;not null" json:"acceptor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for the Room model.
func (Room) TableName() string {
	return "chat_rooms"
}

// IsMember reports whether userID is one of the room's two members.
func (r *Room) IsMember(userID string) bool {
	return userID == r.CreatorID || userID == r.AcceptorID
}

// Message is one chat message in a room. Messages are append-only and
// ordered by commit time.
type Message struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	RoomID    string    `gorm:"size:21;not null;index" json:"room_id"`
	SenderID  string    `gorm:"size:36;not null" json:"sender_id"`
	Content   string    `gorm:"size:2000;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for the Message model.
func (Message) TableName() string {
	return "chat_messages"
}
