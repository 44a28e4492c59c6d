package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/middleware"
)

func TestRequireSelfOrRoleAllowsOwner(t *testing.T) {
	app := selfGuardedApp(uint(10), "student")

	resp := perform(t, app, "/students/10/gpa")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestRequireSelfOrRoleDeniesOtherStudent(t *testing.T) {
	app := selfGuardedApp(uint(10), "student")

	resp := perform(t, app, "/students/11/gpa")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireSelfOrRoleAllowsStaff(t *testing.T) {
	app := selfGuardedApp(uint(1), "Registrar")

	resp := perform(t, app, "/students/11/gpa")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestRequireSelfOrRoleRequiresUser(t *testing.T) {
	app := fiber.New()
	app.Get("/students/:id/gpa",
		middleware.RequireSelfOrRole("id", "admin", "registrar", "instructor"),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp := perform(t, app, "/students/10/gpa")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func selfGuardedApp(userID uint, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		return c.Next()
	})
	app.Get("/students/:id/gpa",
		middleware.RequireSelfOrRole("id", "admin", "registrar", "instructor"),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	return app
}

func perform(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
