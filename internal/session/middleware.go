package session

import (
	"context"
	"errors"
	"strings"

	"attendance-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
)

func JWTMiddleware(iss *Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header missing")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		claims, err := iss.Verify(strings.TrimSpace(parts[1]))
		if errors.Is(err, ErrExpired) {
			return fiber.NewError(fiber.StatusUnauthorized, "Token expired")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)

		return c.Next()
	}
}

// ErrUnknownUser is returned by a RoleSource when the token's user no
// longer exists.
var ErrUnknownUser = errors.New("unknown user")

// RoleSource reports a user's role as currently stored.
type RoleSource interface {
	CurrentRole(ctx context.Context, userID uint) (models.UserRole, error)
}

// RequireRole checks the caller's stored role, not the one in the token, so
// a role change takes effect on the next request. The fresh role replaces
// the token's in c.Locals.
func RequireRole(roles RoleSource, allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return err
		}

		role, err := roles.CurrentRole(c.UserContext(), userID)
		if errors.Is(err, ErrUnknownUser) {
			return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
		}
		if err != nil {
			return err
		}
		c.Locals(CtxUserRoleKey, role)

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
	}
}

// UserID returns the authenticated user's id set by JWTMiddleware.
func UserID(c *fiber.Ctx) (uint, error) {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || id == 0 {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	return id, nil
}

func Role(c *fiber.Ctx) (models.UserRole, bool) {
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	return role, ok
}
