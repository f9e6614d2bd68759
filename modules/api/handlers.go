package api

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/campus-errands/domain/task"
	"github.com/example/campus-errands/modules/chat"
	"github.com/example/campus-errands/modules/tasks"
)

// issueToken handles POST /api/v1/auth/token. Development identity
// endpoint; production deployments sit behind the campus SSO.
func (m *Module) issueToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	token, err := m.tokens.Issue(req.UserID, req.DisplayName)
	if err != nil {
		log.Printf("[api] Failed to issue token: %v", err)
		return internalError(c)
	}

	return c.JSON(TokenResponse{Token: token, ExpiresIn: m.tokens.TokenDuration()})
}

// createTask handles POST /api/v1/tasks.
func (m *Module) createTask(c *fiber.Ctx) error {
	var req tasks.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.CallerID = callerID(c)

	resp, err := m.taskPort.CreateTask(c.UserContext(), &req)
	if err != nil {
		log.Printf("[api] create task failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.Status(fiber.StatusCreated).JSON(resp.Task)
}

// listOpen handles GET /api/v1/tasks/open.
func (m *Module) listOpen(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)

	resp, err := m.taskPort.ListOpen(c.UserContext(), callerID(c), page)
	if err != nil {
		log.Printf("[api] list open failed: %v", err)
		return internalError(c)
	}
	return c.JSON(resp)
}

// listMine handles GET /api/v1/tasks/mine.
func (m *Module) listMine(c *fiber.Ctx) error {
	resp, err := m.taskPort.ListByCreator(c.UserContext(), callerID(c))
	if err != nil {
		log.Printf("[api] list by creator failed: %v", err)
		return internalError(c)
	}
	return c.JSON(resp)
}

// listAccepted handles GET /api/v1/tasks/accepted.
func (m *Module) listAccepted(c *fiber.Ctx) error {
	resp, err := m.taskPort.ListByAcceptor(c.UserContext(), callerID(c))
	if err != nil {
		log.Printf("[api] list by acceptor failed: %v", err)
		return internalError(c)
	}
	return c.JSON(resp)
}

// getTask handles GET /api/v1/tasks/:id.
func (m *Module) getTask(c *fiber.Ctx) error {
	resp, err := m.taskPort.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		log.Printf("[api] get task failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.JSON(resp.Task)
}

// getHistory handles GET /api/v1/tasks/:id/history.
func (m *Module) getHistory(c *fiber.Ctx) error {
	resp, err := m.taskPort.TaskHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		log.Printf("[api] task history failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.JSON(fiber.Map{"entries": resp.Entries, "total": len(resp.Entries)})
}

// acceptTask handles POST /api/v1/tasks/:id/accept. On success the
// response pairs the task with its chat room; the room is ensured right
// after the accept commits so the winner can start the conversation.
func (m *Module) acceptTask(c *fiber.Ctx) error {
	caller := callerID(c)
	taskID := c.Params("id")

	resp, err := m.taskPort.AcceptTask(c.UserContext(), taskID, caller)
	if err != nil {
		log.Printf("[api] accept task failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}

	result := AcceptResult{Task: resp.Task}
	roomResp, err := m.chatPort.EnsureRoom(c.UserContext(), taskID, caller)
	if err != nil || roomResp.Outcome != nil {
		// The room also gets ensured on the TaskAccepted event; the
		// client retries via GET /tasks/:id/room.
		log.Printf("[api] room not ready for task %s yet", taskID)
	} else {
		result.Room = roomResp.Room
	}

	return c.JSON(result)
}

// statusRequest is the body for status transitions.
type statusRequest struct {
	Target   task.Status `json:"target"`
	Note     string      `json:"note,omitempty"`
	PhotoRef string      `json:"photo_ref,omitempty"`
}

// advanceStatus handles POST /api/v1/tasks/:id/status.
func (m *Module) advanceStatus(c *fiber.Ctx) error {
	var body statusRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := m.taskPort.AdvanceStatus(c.UserContext(), &tasks.AdvanceStatusRequest{
		TaskID:   c.Params("id"),
		CallerID: callerID(c),
		Target:   body.Target,
		Note:     body.Note,
		PhotoRef: body.PhotoRef,
	})
	if err != nil {
		log.Printf("[api] advance status failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.JSON(resp.Task)
}

// cancelTask handles POST /api/v1/tasks/:id/cancel.
func (m *Module) cancelTask(c *fiber.Ctx) error {
	var body statusRequest
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return badRequest(c, "Invalid request body")
	}

	resp, err := m.taskPort.CancelTask(c.UserContext(), &tasks.CancelTaskRequest{
		TaskID:   c.Params("id"),
		CallerID: callerID(c),
		Note:     body.Note,
	})
	if err != nil {
		log.Printf("[api] cancel task failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.JSON(resp.Task)
}

// getRoom handles GET /api/v1/tasks/:id/room. Ensure semantics: the
// room is created on first access once the task is accepted.
func (m *Module) getRoom(c *fiber.Ctx) error {
	resp, err := m.chatPort.EnsureRoom(c.UserContext(), c.Params("id"), callerID(c))
	if err != nil {
		log.Printf("[api] ensure room failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.JSON(resp.Room)
}

// sendMessage handles POST /api/v1/rooms/:id/messages.
func (m *Module) sendMessage(c *fiber.Ctx) error {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := m.chatPort.SendMessage(c.UserContext(), &chat.SendMessageRequest{
		RoomID:   c.Params("id"),
		SenderID: callerID(c),
		Content:  body.Content,
	})
	if err != nil {
		log.Printf("[api] send message failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.Status(fiber.StatusCreated).JSON(resp.Message)
}

// listMessages handles GET /api/v1/rooms/:id/messages.
func (m *Module) listMessages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	resp, err := m.chatPort.Messages(c.UserContext(), &chat.MessagesRequest{
		RoomID:   c.Params("id"),
		CallerID: callerID(c),
		Limit:    limit,
	})
	if err != nil {
		log.Printf("[api] list messages failed: %v", err)
		return internalError(c)
	}
	if resp.Outcome != nil {
		return outcomeError(c, resp.Outcome.Code, resp.Outcome.Message)
	}
	return c.JSON(fiber.Map{"messages": resp.Messages, "total": len(resp.Messages)})
}

// reviewEligibility handles GET /api/v1/tasks/:id/review.
func (m *Module) reviewEligibility(c *fiber.Ctx) error {
	resp, err := m.reviewPort.Eligible(c.UserContext(), c.Params("id"), callerID(c))
	if err != nil {
		log.Printf("[api] review eligibility failed: %v", err)
		return internalError(c)
	}
	return c.JSON(resp)
}

// healthCheck handles GET /health.
func (m *Module) healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "campus-errands",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong",
	})
}

func outcomeError(c *fiber.Ctx, code, message string) error {
	return c.Status(statusForOutcome(code)).JSON(ErrorResponse{
		Error:   code,
		Message: message,
	})
}
