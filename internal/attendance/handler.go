package attendance

import (
	"bytes"
	"errors"
	"fmt"

	"attendance-backend/internal/session"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MarkRequest is the optional body of check-in and check-out. The user
// always comes from the token; userId, when sent, must match it.
type MarkRequest struct {
	UserID *uint `json:"userId"`
}

// HTTPError maps ledger errors to client responses; others pass through.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyCheckedIn):
		return fiber.NewError(fiber.StatusBadRequest, "Already checked in today")
	case errors.Is(err, ErrNotCheckedIn):
		return fiber.NewError(fiber.StatusBadRequest, "You have not checked in today")
	case errors.Is(err, ErrAlreadyCheckedOut):
		return fiber.NewError(fiber.StatusBadRequest, "Already checked out today")
	case errors.Is(err, ErrCheckOutNotAfterIn):
		return fiber.NewError(fiber.StatusBadRequest, "Check-out must be later than check-in")
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	return err
}

// resolveUser returns the token's user id, rejecting a body userId that
// names someone else.
func resolveUser(c *fiber.Ctx) (uint, error) {
	userID, err := session.UserID(c)
	if err != nil {
		return 0, err
	}
	if len(c.Body()) == 0 {
		return userID, nil
	}

	var body MarkRequest
	if err := c.BodyParser(&body); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if body.UserID != nil && *body.UserID != userID {
		return 0, fiber.NewError(fiber.StatusForbidden, "You can only record your own attendance")
	}
	return userID, nil
}

// POST /api/attendance/checkin
func CheckInHandler(ledger *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := resolveUser(c)
		if err != nil {
			return err
		}

		rec, err := ledger.CheckIn(c.UserContext(), userID)
		if err != nil {
			return HTTPError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":    "Checked in successfully",
			"attendance": rec,
		})
	}
}

// POST /api/attendance/checkout
func CheckOutHandler(ledger *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := resolveUser(c)
		if err != nil {
			return err
		}

		rec, err := ledger.CheckOut(c.UserContext(), userID)
		if err != nil {
			return HTTPError(err)
		}

		return c.JSON(fiber.Map{
			"message":    "Checked out successfully",
			"attendance": rec,
		})
	}
}

// GET /api/attendance/my-history
func HistoryHandler(ledger *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.UserID(c)
		if err != nil {
			return err
		}

		entries, err := ledger.History(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(entries)
	}
}

// GET /api/attendance/my-history/export
func ExportHandler(ledger *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.UserID(c)
		if err != nil {
			return err
		}

		entries, err := ledger.History(c.UserContext(), userID)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := WriteHistoryXLSX(&buf, entries); err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="attendance-%d.xlsx"`, userID))
		return c.Send(buf.Bytes())
	}
}
