package server

import (
	"strings"
	"time"

	"attendance-backend/internal/admin"
	"attendance-backend/internal/attendance"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/models"
	"attendance-backend/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Deps struct {
	Store          *auth.Store
	Issuer         *session.Issuer
	Ledger         *attendance.Ledger
	Logger         *zap.Logger
	CORSOrigins    []string
	LoginRateLimit int
}

// New builds the HTTP application with every route mounted.
func New(d Deps) *fiber.App {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "attendance-backend",
		ErrorHandler: errorHandler(log),
	})

	app.Use(requestID())
	app.Use(accessLog(log))
	app.Use(recover.New())

	origins := "*"
	if len(d.CORSOrigins) > 0 {
		origins = strings.Join(d.CORSOrigins, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Backend is working!")
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(d.Store))
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(d.Store))
	api.Post("/auth/login", loginLimiter(d.LoginRateLimit), auth.LoginHandler(d.Store, d.Issuer))

	// Protected
	protected := api.Group("")
	protected.Use(session.JWTMiddleware(d.Issuer))

	protected.Get("/auth/me", auth.MeHandler(d.Store, d.Ledger))
	protected.Put("/auth/update-profile", auth.UpdateProfileHandler(d.Store))
	protected.Put("/auth/change-password", auth.ChangePasswordHandler(d.Store))

	protected.Post("/attendance/checkin", attendance.CheckInHandler(d.Ledger))
	protected.Post("/attendance/checkout", attendance.CheckOutHandler(d.Ledger))
	protected.Get("/attendance/my-history", attendance.HistoryHandler(d.Ledger))
	protected.Get("/attendance/my-history/export", attendance.ExportHandler(d.Ledger))

	// Admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(session.RequireRole(d.Store, models.RoleAdmin))

	adminRoutes.Get("/users", admin.ListUsersHandler(d.Store))
	adminRoutes.Put("/users/:id/role", admin.SetRoleHandler(d.Store))
	adminRoutes.Get("/users/:id/attendance", admin.UserAttendanceHandler(d.Store, d.Ledger))

	return app
}

func loginLimiter(max int) fiber.Handler {
	if max <= 0 {
		max = 20
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many login attempts, try again later")
		},
	})
}
