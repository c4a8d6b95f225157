package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notes-service/internal/domain"
	"github.com/spec-kit/notes-service/internal/observability"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// Identity is the caller resolved from a verified access token.
type Identity struct {
	ID       string
	Username string
	Role     domain.Role
}

// AuthMiddleware verifies access tokens and attaches the identity to the request.
// It never consults the user store: the role in the token is trusted until it expires.
type AuthMiddleware struct {
	tokens  *TokenService
	session *SessionTransport
	metrics *observability.Metrics
}

// NewAuthMiddleware constructs middleware. metrics may be nil.
func NewAuthMiddleware(tokens *TokenService, session *SessionTransport, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, session: session, metrics: metrics}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := m.session.Extract(c)
	if token == "" {
		m.metrics.RecordAuth("gate", "missing")
		return apperrors.NewUnauthorized("access denied, no token provided")
	}

	res := m.tokens.VerifyAccess(token)
	switch {
	case res.Expired:
		m.metrics.RecordAuth("gate", "expired")
		return apperrors.NewTokenExpired()
	case !res.Valid:
		m.metrics.RecordAuth("gate", "invalid")
		return apperrors.NewUnauthorized("invalid token")
	}

	m.metrics.RecordAuth("gate", "ok")
	c.Locals(identityKey, &Identity{
		ID:       res.Claims.UserID,
		Username: res.Claims.Username,
		Role:     res.Claims.Role,
	})
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	identity, ok := c.Locals(identityKey).(*Identity)
	return identity, ok && identity != nil
}
