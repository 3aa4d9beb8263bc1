package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

type memoryRepo struct {
	accounts map[string]*domain.Account
}

func (m *memoryRepo) Create(_ context.Context, account *domain.Account) error {
	account.ID = uuid.NewString()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	clone := *account
	m.accounts[account.ID] = &clone
	return nil
}

func (m *memoryRepo) Update(_ context.Context, account *domain.Account) error {
	if _, ok := m.accounts[account.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *account
	m.accounts[account.ID] = &clone
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *account
	return &clone, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, account := range m.accounts {
		if strings.EqualFold(account.Email, email) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryRepo) List(_ context.Context, filter repository.AccountFilter) ([]domain.Account, error) {
	var result []domain.Account
	for _, account := range m.accounts {
		if filter.Role != nil && account.Role != *filter.Role {
			continue
		}
		result = append(result, *account)
	}
	return result, nil
}

func (m *memoryRepo) Count(_ context.Context, role domain.Role) (int, error) {
	total := 0
	for _, account := range m.accounts {
		if account.Role == role {
			total++
		}
	}
	return total, nil
}

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data"`
	Errors  []map[string]any `json:"errors"`
}

type testServer struct {
	app     *fiber.App
	repo    *memoryRepo
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 60
	cfg.Auth.BcryptCost = 4

	repo := &memoryRepo{accounts: map[string]*domain.Account{}}
	accountService := service.NewAccountService(cfg, service.AccountDependencies{AccountRepo: repo})
	authMiddleware := auth.NewAuthMiddleware(accountService.TokenManager(), repo)

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(accountService),
		Users:          handlers.NewUsersHandler(accountService),
		AuthMiddleware: authMiddleware,
	})
	return &testServer{app: app, repo: repo, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) seedAdmin(t *testing.T) (*domain.Account, string) {
	t.Helper()

	hash, err := auth.HashPassword("Adm1nPass", 4)
	require.NoError(t, err)
	admin := &domain.Account{
		FullName:     "Admin One",
		Email:        "admin@x.com",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
	}
	require.NoError(t, s.repo.Create(context.Background(), admin))

	status, env := s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{
		"email":    "admin@x.com",
		"password": "Adm1nPass",
	})
	require.Equal(t, http.StatusOK, status)
	return admin, tokenFrom(t, env)
}

func tokenFrom(t *testing.T, env envelope) string {
	t.Helper()
	authData, ok := env.Data["auth"].(map[string]any)
	require.True(t, ok)
	token, ok := authData["token"].(string)
	require.True(t, ok)
	return token
}

func userFrom(t *testing.T, env envelope) map[string]any {
	t.Helper()
	user, ok := env.Data["user"].(map[string]any)
	require.True(t, ok)
	return user
}

func TestEndToEndAccountLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/auth/signup", "", fiber.Map{
		"fullName": "Alice Doe",
		"email":    "alice@x.com",
		"password": "Passw0rd1",
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, env.Success)
	require.NotEmpty(t, tokenFrom(t, env))
	aliceID := userFrom(t, env)["id"].(string)
	require.Nil(t, userFrom(t, env)["lastLogin"])

	t.Run("duplicate signup", func(t *testing.T) {
		status, env := s.do(t, http.MethodPost, "/auth/signup", "", fiber.Map{
			"fullName": "Alice Clone",
			"email":    "ALICE@x.com",
			"password": "Passw0rd1",
		})
		require.Equal(t, http.StatusBadRequest, status)
		require.False(t, env.Success)
	})

	status, env = s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{
		"email":    "alice@x.com",
		"password": "Passw0rd1",
	})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, userFrom(t, env)["lastLogin"])
	aliceToken := tokenFrom(t, env)

	t.Run("me returns the authenticated account without the hash", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/auth/me", aliceToken, nil)
		require.Equal(t, http.StatusOK, status)
		user := userFrom(t, env)
		require.Equal(t, "alice@x.com", user["email"])
		require.NotContains(t, user, "passwordHash")
		require.NotContains(t, user, "PasswordHash")
	})

	t.Run("profile update", func(t *testing.T) {
		status, env := s.do(t, http.MethodPut, "/users/profile", aliceToken, fiber.Map{
			"fullName": "Alice Updated",
		})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "Alice Updated", userFrom(t, env)["fullName"])
	})

	t.Run("non-admin cannot list users", func(t *testing.T) {
		status, _ := s.do(t, http.MethodGet, "/users/", aliceToken, nil)
		require.Equal(t, http.StatusForbidden, status)
	})

	admin, adminToken := s.seedAdmin(t)

	t.Run("admin lists only user-role accounts", func(t *testing.T) {
		status, env := s.do(t, http.MethodGet, "/users/?page=1&limit=5", adminToken, nil)
		require.Equal(t, http.StatusOK, status)

		users := env.Data["users"].([]any)
		require.Len(t, users, 1)
		pagination := env.Data["pagination"].(map[string]any)
		require.Equal(t, float64(1), pagination["totalUsers"])
		require.Equal(t, float64(1), pagination["totalPages"])
	})

	t.Run("admin cannot toggle own status", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPut, "/users/"+admin.ID+"/deactivate", adminToken, nil)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("invalid target id yields not found", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPut, "/users/not-a-uuid/deactivate", adminToken, nil)
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("deactivation locks alice out", func(t *testing.T) {
		status, env := s.do(t, http.MethodPut, "/users/"+aliceID+"/deactivate", adminToken, nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "inactive", userFrom(t, env)["status"])

		status, _ = s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{
			"email":    "alice@x.com",
			"password": "Passw0rd1",
		})
		require.Equal(t, http.StatusForbidden, status)

		// Existing token is also dead while inactive.
		status, _ = s.do(t, http.MethodGet, "/auth/me", aliceToken, nil)
		require.Equal(t, http.StatusForbidden, status)

		status, _ = s.do(t, http.MethodPut, "/users/"+aliceID+"/deactivate", adminToken, nil)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("reactivation restores access", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPut, "/users/"+aliceID+"/activate", adminToken, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = s.do(t, http.MethodGet, "/auth/me", aliceToken, nil)
		require.Equal(t, http.StatusOK, status)
	})
}

func TestValidationEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/auth/signup", "", fiber.Map{
		"fullName": "Al",
		"email":    "nope",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, env.Success)
	require.Equal(t, "Validation failed", env.Message)
	require.Len(t, env.Errors, 3)
}

func TestChangePasswordFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/auth/signup", "", fiber.Map{
		"fullName": "Alice Doe",
		"email":    "alice@x.com",
		"password": "Passw0rd1",
	})
	require.Equal(t, http.StatusCreated, status)
	token := tokenFrom(t, env)

	t.Run("reusing the current password fails", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPut, "/users/change-password", token, fiber.Map{
			"currentPassword": "Passw0rd1",
			"newPassword":     "Passw0rd1",
			"confirmPassword": "Passw0rd1",
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("rotation succeeds and old password stops working", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPut, "/users/change-password", token, fiber.Map{
			"currentPassword": "Passw0rd1",
			"newPassword":     "NewPassw0rd1",
			"confirmPassword": "NewPassw0rd1",
		})
		require.Equal(t, http.StatusOK, status)

		status, _ = s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{
			"email":    "alice@x.com",
			"password": "Passw0rd1",
		})
		require.Equal(t, http.StatusUnauthorized, status)

		status, _ = s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{
			"email":    "alice@x.com",
			"password": "NewPassw0rd1",
		})
		require.Equal(t, http.StatusOK, status)
	})
}

func TestUnknownRouteEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.False(t, env.Success)
	require.Contains(t, env.Message, "/nope")
}

func TestLogoutIsANoOp(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
	require.Equal(t, "Logout successful", env.Message)
	require.Equal(t, int64(1), s.metrics.RequestCount("/auth/logout", http.MethodPost, http.StatusOK))
}
