package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/algogenius-api/internal/utils"
)

// Auth roles accepted by WithAuth. AuthRoleMember admits any registered profile.
const (
	AuthRoleAny      = "any"
	AuthRoleMember   = "member"
	AuthRoleEducator = "educator"
	AuthRoleStudent  = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards. Any role other
// than AuthRoleAny implies RequireUser.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	want := strings.ToLower(strings.TrimSpace(opts.Role))
	if want == "" {
		want = AuthRoleAny
	}
	requireUser := opts.RequireUser || want != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if requireUser && UserID(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if want == AuthRoleAny {
			return handler(c)
		}

		role := UserRole(c)
		switch {
		case role == "":
			return utils.Fail(c, fiber.StatusForbidden, "profile required", nil)
		case want == AuthRoleMember, role == want:
			return handler(c)
		default:
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
	}
}

// UserRole returns the role loaded for the authenticated user, or "".
func UserRole(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalUserRole).(string)
	return strings.ToLower(strings.TrimSpace(role))
}
