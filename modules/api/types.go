package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/campus-errands/modules/chat"
	"github.com/example/campus-errands/modules/tasks"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TokenRequest asks for a development bearer token.
type TokenRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// AcceptResult pairs the accepted task with its chat room so the
// winner's client can open the conversation immediately.
type AcceptResult struct {
	Task *tasks.TaskView `json:"task"`
	Room *chat.RoomView  `json:"room,omitempty"`
}

// statusForOutcome maps business outcome codes to HTTP status codes.
func statusForOutcome(code string) int {
	switch code {
	case tasks.CodeNotFound, chat.OutcomeTaskNotFound, chat.OutcomeRoomNotFound:
		return fiber.StatusNotFound
	case tasks.CodeAlreadyAccepted, tasks.CodeInvalidTransition:
		return fiber.StatusConflict
	case tasks.CodeForbidden, tasks.CodeSelfAcceptance, chat.OutcomeNotAMember:
		return fiber.StatusForbidden
	case chat.OutcomeRoomUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadRequest
	}
}
