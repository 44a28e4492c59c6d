package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/uni-records-api/internal/config"
	"github.com/noah-isme/uni-records-api/internal/handler"
	"github.com/noah-isme/uni-records-api/internal/middleware"
	"github.com/noah-isme/uni-records-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradeRecordHandler *handler.GradeRecordHandler
	TranscriptHandler  *handler.TranscriptHandler
	StatisticsHandler  *handler.StatisticsHandler
	GradeEventHandler  *handler.GradeEventHandler
	AuditHandler       *handler.AuditHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Grade records: writes and lifecycle transitions are staff operations,
	// reads are open to any authenticated user.
	if deps.GradeRecordHandler != nil {
		records := api.Group("/grade-records", jwtMiddleware)
		deps.GradeRecordHandler.Register(records)
	}

	// Student aggregations: GPA, transcript, graduation status. Students may
	// only read their own records; staff roles see everyone.
	if deps.TranscriptHandler != nil {
		students := api.Group("/students", jwtMiddleware,
			middleware.RequireSelfOrRole("id", "admin", "registrar", "instructor"))
		deps.TranscriptHandler.Register(students)
	}

	// Cohort statistics are restricted to staff roles.
	if deps.StatisticsHandler != nil {
		statistics := api.Group("/statistics", jwtMiddleware,
			middleware.RequireRole("admin", "registrar", "instructor"))
		deps.StatisticsHandler.Register(statistics)
	}

	// Live grade events for students.
	if deps.GradeEventHandler != nil {
		events := api.Group("/grade-events", jwtMiddleware)
		deps.GradeEventHandler.Register(events)
	}

	// Audit trail is admin-only.
	if deps.AuditHandler != nil {
		audit := api.Group("/audit", jwtMiddleware, middleware.RequireRole("admin", "registrar"))
		deps.AuditHandler.Register(audit)
	}
}
