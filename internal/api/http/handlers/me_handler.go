package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sessiongate/auth-gateway/internal/api/dto"
	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/service"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

// MeHandler serves the authenticated caller's own account.
type MeHandler struct {
	auth *service.AuthService
}

// NewMeHandler constructs handler.
func NewMeHandler(authService *service.AuthService) *MeHandler {
	return &MeHandler{auth: authService}
}

// Get handles GET /me.
func (h *MeHandler) Get(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.auth.Me(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateProfile handles PATCH /me.
func (h *MeHandler) UpdateProfile(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateProfileRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if req.Profile == nil {
		return apperrors.NewValidationError("profile required", nil)
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), identity.UserID, *req.Profile)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ChangePassword handles POST /me/password. Every session of the caller,
// including the current one, ends on success.
func (h *MeHandler) ChangePassword(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangePasswordRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
