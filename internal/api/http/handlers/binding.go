package handlers

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

// bindBody decodes the request body into out. An empty body leaves out at its
// zero value so that missing fields are reported by the service layer.
func bindBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
