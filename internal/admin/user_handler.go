package admin

import (
	"strconv"
	"time"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type UserResponse struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Role       models.UserRole `json:"role"`
	Department string          `json:"department"`
	CreatedAt  string          `json:"createdAt"`
}

type SetRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
}

func parseUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	return uint(id), nil
}

// GET /api/admin/users
func ListUsersHandler(store *auth.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := store.List(c.UserContext())
		if err != nil {
			return err
		}

		res := make([]UserResponse, 0, len(users))
		for i := range users {
			res = append(res, toUserResponse(&users[i]))
		}
		return c.JSON(res)
	}
}

// PUT /api/admin/users/:id/role
func SetRoleHandler(store *auth.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUserID(c)
		if err != nil {
			return err
		}

		var body SetRoleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := store.SetRole(c.UserContext(), id, body.Role)
		if err != nil {
			return auth.HTTPError(err)
		}
		return c.JSON(toUserResponse(user))
	}
}

// GET /api/admin/users/:id/attendance
func UserAttendanceHandler(store *auth.Store, ledger *attendance.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUserID(c)
		if err != nil {
			return err
		}

		if _, err := store.Get(c.UserContext(), id); err != nil {
			return auth.HTTPError(err)
		}

		entries, err := ledger.History(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(entries)
	}
}
