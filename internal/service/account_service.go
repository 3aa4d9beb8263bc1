package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// Pagination describes list metadata returned alongside account pages.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalUsers  int `json:"totalUsers"`
	Limit       int `json:"limit"`
}

// AccountService coordinates registration, login and account management.
type AccountService struct {
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	bcryptCost int
}

// AccountDependencies encapsulates requirements for the account service.
type AccountDependencies struct {
	AccountRepo repository.AccountRepository
	Dispatcher  events.Dispatcher
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	return &AccountService{
		accounts:   deps.AccountRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new active user-role account and issues its first token.
func (s *AccountService) Register(ctx context.Context, fullName, email, password string) (*domain.Account, string, time.Time, error) {
	email = NormalizeEmail(email)

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("User with this email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	account := &domain.Account{
		FullName:     strings.TrimSpace(fullName),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
	}
	// Concurrent signups race on the unique email index; the loser surfaces
	// as a conflict through the error mapping.
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(account.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventAccountRegistered, account.ID, events.AccountRegisteredPayload{
		Email:    account.Email,
		FullName: account.FullName,
		Role:     account.Role,
	})
	return account, token, exp, nil
}

// Login authenticates by email and password. Inactive accounts are rejected
// after lookup and before the password comparison; the last-login timestamp
// is written only on the success path.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("Invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	if account.Status == domain.StatusInactive {
		return nil, "", time.Time{}, apperrors.NewForbidden("Your account has been deactivated. Please contact administrator.")
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("Invalid credentials")
	}

	now := time.Now()
	account.LastLogin = &now
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(account.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return account, token, exp, nil
}

// Logout currently no-ops for the stateless JWT approach.
func (s *AccountService) Logout(_ context.Context, _ string) error {
	return nil
}

// GetByID returns the account for the authenticated caller.
func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("User")
		}
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// UpdateProfile applies a partial update of full name and email.
func (s *AccountService) UpdateProfile(ctx context.Context, id, fullName, email string) (*domain.Account, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if email != "" {
		email = NormalizeEmail(email)
		if email != account.Email {
			existing, err := s.accounts.GetByEmail(ctx, email)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.MapError(err)
			}
			if existing != nil && existing.ID != account.ID {
				return nil, apperrors.NewConflict("Email already in use")
			}
			account.Email = email
		}
	}
	if fullName != "" {
		account.FullName = strings.TrimSpace(fullName)
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// ChangePassword verifies the current password and rotates to a new hash.
// Reusing the current password is rejected.
func (s *AccountService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("Current password is incorrect")
	}
	if auth.ComparePassword(account.PasswordHash, newPassword) == nil {
		return apperrors.NewValidationError("New password must be different from current password", nil)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	account.PasswordHash = hash
	if err := s.accounts.Update(ctx, account); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventPasswordChanged, account.ID, events.PasswordChangedPayload{Email: account.Email})
	return nil
}

// ListUsers returns a page of user-role accounts, newest first, with
// pagination metadata. Admin accounts are never included.
func (s *AccountService) ListUsers(ctx context.Context, page, limit int) ([]domain.PublicAccount, Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 5
	}

	total, err := s.accounts.Count(ctx, domain.RoleUser)
	if err != nil {
		return nil, Pagination{}, apperrors.MapError(err)
	}

	role := domain.RoleUser
	accounts, err := s.accounts.List(ctx, repository.AccountFilter{
		Role:   &role,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, Pagination{}, apperrors.MapError(err)
	}

	items := make([]domain.PublicAccount, 0, len(accounts))
	for i := range accounts {
		items = append(items, accounts[i].Public())
	}

	meta := Pagination{
		CurrentPage: page,
		TotalPages:  (total + limit - 1) / limit,
		TotalUsers:  total,
		Limit:       limit,
	}
	return items, meta, nil
}

// SetStatus activates or deactivates a target account on behalf of an admin
// caller. Admins cannot toggle their own account and redundant transitions
// are rejected.
func (s *AccountService) SetStatus(ctx context.Context, targetID, callerID string, status domain.Status) (*domain.Account, error) {
	account, err := s.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if account.ID == callerID {
		return nil, apperrors.NewValidationError("You cannot modify your own account status", nil)
	}
	if account.Status == status {
		if status == domain.StatusActive {
			return nil, apperrors.NewConflict("User is already active")
		}
		return nil, apperrors.NewConflict("User is already inactive")
	}

	oldStatus := account.Status
	account.Status = status
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventAccountStatusChanged, account.ID, events.AccountStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: status,
		ChangedBy: callerID,
	})
	return account, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AccountService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AccountService) publish(ctx context.Context, eventType events.EventType, accountID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
