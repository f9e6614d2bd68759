package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/campus-errands/modules/auth"
)

const (
	// UserIDContextKey is the Locals key holding the authenticated
	// caller's user ID.
	UserIDContextKey = "user_id"
)

// AuthMiddleware validates the bearer token and stores the caller's
// user ID in the request context.
func AuthMiddleware(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(UserIDContextKey, claims.UserID)
		return c.Next()
	}
}

// callerID returns the authenticated user ID stored by AuthMiddleware.
func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDContextKey).(string)
	return id
}
