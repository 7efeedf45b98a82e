package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// Gate validates bearer access tokens. Access tokens are self-certifying, so
// no store lookup happens here: a revoked session keeps its access token
// until that token expires.
type Gate struct {
	tokens *TokenManager
}

// NewGate constructs the authentication middleware.
func NewGate(tokens *TokenManager) *Gate {
	return &Gate{tokens: tokens}
}

// Authenticate enforces a valid access token and attaches the caller identity.
func (g *Gate) Authenticate(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.NewUnauthorized("missing bearer token")
	}

	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return apperrors.NewForbidden("invalid or expired token")
	}

	identity := claims.Identity()
	c.Locals(identityKey, &identity)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
