package chat

import "errors"

var (
	// ErrRoomNotFound indicates the room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotAMember indicates the sender is not one of the room's members.
	ErrNotAMember = errors.New("sender is not a room member")
	// ErrNoAcceptor indicates a room was requested for a task that has no
	// acceptor yet. Rooms only exist for accepted tasks.
	ErrNoAcceptor = errors.New("task has no acceptor")
	// ErrRoomCreationFailed indicates room creation kept failing after
	// bounded retries. Callers should treat this as retryable.
	ErrRoomCreationFailed = errors.New("room creation failed")
	// ErrMessageInvalid indicates malformed message content.
	ErrMessageInvalid = errors.New("invalid message content")
)
