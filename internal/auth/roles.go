package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notes-service/internal/domain"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

// RoleSet is the set of roles allowed through a role gate. An empty set admits any authenticated caller.
type RoleSet map[domain.Role]struct{}

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...domain.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Allows reports whether role passes the gate.
func (s RoleSet) Allows(role domain.Role) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[role]
	return ok
}

// RequireRoles must run after AuthMiddleware.Handle.
func RequireRoles(allowed RoleSet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !allowed.Allows(identity.Role) {
			return apperrors.NewForbidden("forbidden: insufficient permissions")
		}
		return c.Next()
	}
}
