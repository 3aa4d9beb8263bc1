package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// UsersHandler exposes profile self-service and admin user management.
type UsersHandler struct {
	accounts *service.AccountService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(accountService *service.AccountService) *UsersHandler {
	return &UsersHandler{accounts: accountService}
}

// GetProfile handles GET /users/profile.
func (h *UsersHandler) GetProfile(c *fiber.Ctx) error {
	principal, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authorized to access this route. Please login.")
	}

	account, err := h.accounts.GetByID(c.Context(), principal.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", fiber.Map{"user": account.Public()})
}

// UpdateProfile handles PUT /users/profile.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authorized to access this route. Please login.")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	account, err := h.accounts.UpdateProfile(c.Context(), principal.ID, req.FullName, req.Email)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated successfully", fiber.Map{"user": account.Public()})
}

// ChangePassword handles PUT /users/change-password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authorized to access this route. Please login.")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	if err := h.accounts.ChangePassword(c.Context(), principal.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password changed successfully", fiber.Map{})
}

// List handles GET /users. Admin only.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 5)

	users, pagination, err := h.accounts.ListUsers(c.Context(), page, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", fiber.Map{
		"users":      users,
		"pagination": pagination,
	})
}

// Activate handles PUT /users/:id/activate. Admin only.
func (h *UsersHandler) Activate(c *fiber.Ctx) error {
	return h.setStatus(c, domain.StatusActive, "User activated successfully")
}

// Deactivate handles PUT /users/:id/deactivate. Admin only.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	return h.setStatus(c, domain.StatusInactive, "User deactivated successfully")
}

func (h *UsersHandler) setStatus(c *fiber.Ctx, status domain.Status, message string) error {
	principal, ok := auth.AccountFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authorized to access this route. Please login.")
	}

	targetID := c.Params("id")
	if _, err := uuid.Parse(targetID); err != nil {
		return apperrors.NewNotFound("User")
	}

	account, err := h.accounts.SetStatus(c.Context(), targetID, principal.ID, status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, message, fiber.Map{"user": account.Public()})
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
