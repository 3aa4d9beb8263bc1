package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	accounts *service.AccountService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accountService *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accountService}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	account, token, exp, err := h.accounts.Register(c.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "User registered successfully", fiber.Map{
		"user": account.Public(),
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	account, token, exp, err := h.accounts.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Login successful", fiber.Map{
		"user": account.Public(),
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
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

// Logout handles POST /auth/logout. Token removal happens client-side; this
// stays a placeholder in case a token blacklist is introduced later.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.accounts.Logout(c.Context(), ""); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logout successful", fiber.Map{})
}
