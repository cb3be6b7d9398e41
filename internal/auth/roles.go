package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-stream/internal/domain"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff ensures the principal holds an administrative role.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.StaffRoles()...)
}

// RequireMinLevel ensures the principal's role level is at least the given
// role's level.
func RequireMinLevel(min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.Role.Level() < min.Level() {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
