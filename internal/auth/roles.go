package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// RequireRole ensures the authenticated account holds one of the allowed
// roles. It must run after Handle; a missing principal or missing role is an
// authentication failure, not an authorization one.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		account, ok := AccountFromContext(c)
		if !ok || account.Role == "" {
			return apperrors.NewUnauthorized("User not authenticated or role missing")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[account.Role]; !exists {
			return apperrors.NewForbidden(fmt.Sprintf("User role '%s' is not authorized to access this route", account.Role))
		}
		return c.Next()
	}
}
