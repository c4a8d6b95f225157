package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notes-service/internal/api/dto"
	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/service"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	session *auth.SessionTransport
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, session *auth.SessionTransport) *AuthHandler {
	return &AuthHandler{auth: authService, session: session}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	session, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	h.session.Attach(c, session.AccessToken, session.RefreshToken)
	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{
		Success: true,
		User:    dto.NewUserResponse(session.User),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	session, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	h.session.Attach(c, session.AccessToken, session.RefreshToken)
	return c.JSON(dto.AuthResponse{
		Success: true,
		User:    dto.NewUserResponse(session.User),
	})
}

// Logout handles POST /api/auth/logout. Cookies are cleared whether or not the caller is signed in.
// Cleared cookies carry an empty value and Expires=Tue, 10 Nov 2009 23:00:00 GMT rather than
// Max-Age=0; fasthttp does not emit non-positive Max-Age. Browsers drop them either way.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.auth.Logout(c.UserContext(), h.session.Extract(c))
	h.session.Clear(c)
	return c.JSON(dto.MessageResponse{Success: true, Message: "Logged out successfully"})
}

// RefreshToken handles POST /api/auth/refresh-token. On SESSION_EXPIRED both cookies are
// cleared the same way Logout clears them.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	session, err := h.auth.Refresh(c.UserContext(), h.session.RefreshToken(c))
	if apperrors.Is(err, apperrors.CodeSessionExpired) {
		h.session.Clear(c)
	}
	if err != nil {
		return err
	}
	h.session.Attach(c, session.AccessToken, session.RefreshToken)
	return c.JSON(dto.MessageResponse{Success: true, Message: "Token refreshed successfully"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.auth.Me(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{Success: true, User: dto.NewUserResponse(user)})
}

// Admin handles GET /api/auth/admin, reachable by admins only.
func (h *AuthHandler) Admin(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Admin access granted",
		"user": dto.UserResponse{
			ID:       identity.ID,
			Username: identity.Username,
			Role:     identity.Role,
		},
	})
}
