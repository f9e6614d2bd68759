// Package api is the driving adapter: a Fiber HTTP server plus a
// WebSocket endpoint, translating requests into module service calls.
package api

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/campus-errands/modules/auth"
	"github.com/example/campus-errands/modules/chat"
	"github.com/example/campus-errands/modules/realtime"
	"github.com/example/campus-errands/modules/review"
	"github.com/example/campus-errands/modules/tasks"
)

// Module exposes the HTTP and WebSocket surface.
type Module struct {
	app        *fiber.App
	taskPort   tasks.TaskPort
	chatPort   chat.ChatPort
	reviewPort review.ReviewPort
	hub        *realtime.Hub
	tokens     *auth.TokenManager
	port       string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module.
func NewModule() *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &Module{
		tokens: auth.NewTokenManager(auth.ConfigFromEnv()),
		port:   port,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies declares the modules this module calls into.
func (m *Module) Dependencies() []string {
	return []string{"tasks", "chat", "review"}
}

// SetDependencyServiceContainer receives service containers from
// dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "tasks":
		m.taskPort = tasks.NewTaskAdapter(container)
	case "chat":
		m.chatPort = chat.NewChatAdapter(container)
	case "review":
		m.reviewPort = review.NewReviewAdapter(container)
	}
}

// SetHub wires the realtime hub for the WebSocket endpoint. Wired
// manually from main; the hub is shared state, not a service.
func (m *Module) SetHub(hub *realtime.Hub) {
	m.hub = hub
}

// Start initializes the Fiber server and its routes.
func (m *Module) Start(_ context.Context) error {
	if m.taskPort == nil || m.chatPort == nil || m.reviewPort == nil {
		return fmt.Errorf("module dependencies not set")
	}
	if m.hub == nil {
		return fmt.Errorf("realtime hub not set")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrorHandler,
	})
	m.app.Use(recover.New())

	m.setupRoutes()

	// Server availability is verified via Health().
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// Stop shuts down the HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.port,
		},
	}
}

func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthCheck)

	v1 := m.app.Group("/api/v1")
	v1.Post("/auth/token", m.issueToken)

	authed := v1.Group("", AuthMiddleware(m.tokens))
	authed.Post("/tasks", m.createTask)
	authed.Get("/tasks/open", m.listOpen)
	authed.Get("/tasks/mine", m.listMine)
	authed.Get("/tasks/accepted", m.listAccepted)
	authed.Get("/tasks/:id", m.getTask)
	authed.Get("/tasks/:id/history", m.getHistory)
	authed.Post("/tasks/:id/accept", m.acceptTask)
	authed.Post("/tasks/:id/status", m.advanceStatus)
	authed.Post("/tasks/:id/cancel", m.cancelTask)
	authed.Get("/tasks/:id/room", m.getRoom)
	authed.Get("/tasks/:id/review", m.reviewEligibility)
	authed.Post("/rooms/:id/messages", m.sendMessage)
	authed.Get("/rooms/:id/messages", m.listMessages)

	// The WebSocket upgrade authenticates via ?token= because browsers
	// cannot set headers on WebSocket requests.
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		claims, err := m.tokens.Validate(c.Query("token"))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(UserIDContextKey, claims.UserID)
		return c.Next()
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))
}

func fiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
