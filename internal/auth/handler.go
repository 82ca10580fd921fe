package auth

import (
	"errors"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/session"

	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HTTPError maps store errors to the response the client sees. Unknown
// errors pass through to the app error handler as 500s.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, "Name, email and password are required")
	case errors.Is(err, ErrWeakPassword):
		return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 6 characters")
	case errors.Is(err, ErrEmailTaken):
		return fiber.NewError(fiber.StatusBadRequest, "User already exists")
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	case errors.Is(err, ErrWrongPassword):
		return fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
	case errors.Is(err, ErrSamePassword):
		return fiber.NewError(fiber.StatusBadRequest, "New password must differ from the current password")
	case errors.Is(err, ErrEmptyName):
		return fiber.NewError(fiber.StatusBadRequest, "Name must not be empty")
	case errors.Is(err, ErrAdminExists):
		return fiber.NewError(fiber.StatusForbidden, "An admin already exists")
	case errors.Is(err, ErrInvalidRole):
		return fiber.NewError(fiber.StatusBadRequest, "Unknown role")
	case errors.Is(err, ErrLastAdmin):
		return fiber.NewError(fiber.StatusBadRequest, "Cannot demote the last admin")
	}
	return err
}

func RegisterHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if _, err := store.Register(c.UserContext(), body.Name, body.Email, body.Password); err != nil {
			return HTTPError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "User registered successfully",
		})
	}
}

// POST /api/auth/register-admin. Only works until the first admin exists.
func RegisterAdminHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := store.RegisterFirstAdmin(c.UserContext(), body.Name, body.Email, body.Password)
		if err != nil {
			return HTTPError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Admin registered successfully",
			"id":      user.ID,
			"role":    user.Role,
		})
	}
}

func LoginHandler(store *Store, iss *session.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := store.Authenticate(c.UserContext(), body.Email, body.Password)
		if err != nil {
			return HTTPError(err)
		}

		token, err := iss.Issue(user)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	}
}

// MeHandler returns the caller's profile together with today's attendance
// state and this month's counts.
func MeHandler(store *Store, ledger *attendance.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.UserID(c)
		if err != nil {
			return err
		}

		user, err := store.Get(c.UserContext(), userID)
		if err != nil {
			return HTTPError(err)
		}

		ov, err := ledger.Overview(c.UserContext(), userID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"id":          user.ID,
			"employeeId":  user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"role":        user.Role,
			"department":  user.Department,
			"createdAt":   user.CreatedAt,
			"todayStatus": ov.TodayStatus,
			"present":     ov.Present,
			"incomplete":  ov.Incomplete,
		})
	}
}

func UpdateProfileHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.UserID(c)
		if err != nil {
			return err
		}

		var body UpdateProfileRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if _, err := store.UpdateProfile(c.UserContext(), userID, ProfileUpdate{
			Name:       body.Name,
			Department: body.Department,
		}); err != nil {
			return HTTPError(err)
		}

		return c.JSON(fiber.Map{"message": "Profile updated successfully"})
	}
}

func ChangePasswordHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.UserID(c)
		if err != nil {
			return err
		}

		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.CurrentPassword == "" || body.NewPassword == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Current and new password are required")
		}

		if err := store.ChangePassword(c.UserContext(), userID, body.CurrentPassword, body.NewPassword); err != nil {
			return HTTPError(err)
		}

		return c.JSON(fiber.Map{"message": "Password updated successfully"})
	}
}
