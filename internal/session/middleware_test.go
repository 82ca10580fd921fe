package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"attendance-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type roleMap map[uint]models.UserRole

func (m roleMap) CurrentRole(_ context.Context, id uint) (models.UserRole, error) {
	role, ok := m[id]
	if !ok {
		return "", ErrUnknownUser
	}
	return role, nil
}

func newTestApp(iss *Issuer, roles RoleSource) *fiber.App {
	app := fiber.New()
	app.Use(JWTMiddleware(iss))
	app.Get("/me", func(c *fiber.Ctx) error {
		id, err := UserID(c)
		if err != nil {
			return err
		}
		role, _ := Role(c)
		return c.JSON(fiber.Map{"id": id, "role": role})
	})
	app.Get("/admin", RequireRole(roles, models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	iss := NewIssuer(testSecret, 0)
	roles := roleMap{3: models.RoleEmployee, 4: models.RoleAdmin, 5: models.RoleEmployee}
	app := newTestApp(iss, roles)

	employee, _ := iss.Issue(&models.User{ID: 3, Role: models.RoleEmployee})
	admin, _ := iss.Issue(&models.User{ID: 4, Role: models.RoleAdmin})
	// 5 was an admin when its token was issued and has since been demoted.
	demoted, _ := iss.Issue(&models.User{ID: 5, Role: models.RoleAdmin})
	deleted, _ := iss.Issue(&models.User{ID: 6, Role: models.RoleAdmin})

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic " + employee, http.StatusUnauthorized},
		{"empty token", "/me", "Bearer ", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "/me", "Bearer " + employee, http.StatusOK},
		{"lowercase scheme", "/me", "bearer " + employee, http.StatusOK},
		{"employee on admin route", "/admin", "Bearer " + employee, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + admin, http.StatusNoContent},
		{"demoted admin with old token", "/admin", "Bearer " + demoted, http.StatusForbidden},
		{"deleted user with admin token", "/admin", "Bearer " + deleted, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}
