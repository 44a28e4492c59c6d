package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/uni-records-api/internal/utils"
)

// RequireSelfOrRole guards student-scoped routes: the authenticated user may
// access the resource when the route parameter matches their own user id, or
// when they hold one of the staff roles.
func RequireSelfOrRole(param string, staffRoles ...string) fiber.Handler {
	staff := make(map[string]struct{}, len(staffRoles))
	for _, role := range staffRoles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			staff[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		userID := localsUserID(c)
		if userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if _, ok := staff[normalizeRoleValue(c.Locals("user_role"))]; ok {
			return c.Next()
		}

		target, err := strconv.ParseUint(c.Params(param), 10, 64)
		if err != nil || uint(target) != userID {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		return c.Next()
	}
}

func localsUserID(c *fiber.Ctx) uint {
	switch v := c.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
