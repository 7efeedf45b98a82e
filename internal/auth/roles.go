package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sessiongate/auth-gateway/internal/domain"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

// RequireRole admits only callers whose role equals required. There is no
// role hierarchy: an admin route does not admit users and vice versa.
func RequireRole(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if identity.Role != required {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
