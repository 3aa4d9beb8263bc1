package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
)

// Client is the subset of redis commands the account cache needs. It is
// satisfied by *redis.Client and by fakes in tests.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedAccountRepository decorates an AccountRepository with a Redis
// read-through cache for GetByID, the lookup the auth middleware performs on
// every protected request. Every write path invalidates the cached record so
// a status toggle is visible on the very next request.
type CachedAccountRepository struct {
	inner  repository.AccountRepository
	client Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedAccountRepository wraps inner with a Redis cache. A nil client
// makes the decorator a pass-through.
func NewCachedAccountRepository(inner repository.AccountRepository, client Client, ttl time.Duration, logger *zap.Logger) *CachedAccountRepository {
	return &CachedAccountRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func accountKey(id string) string {
	return "account:" + id
}

func (c *CachedAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if c.client == nil {
		return c.inner.GetByID(ctx, id)
	}

	if raw, err := c.client.Get(ctx, accountKey(id)).Bytes(); err == nil {
		var account domain.Account
		if err := json.Unmarshal(raw, &account); err == nil {
			return &account, nil
		}
		c.invalidate(ctx, id)
	} else if err != redis.Nil {
		c.logger.Warn("account cache read failed", zap.Error(err))
	}

	account, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(account); err == nil {
		if err := c.client.Set(ctx, accountKey(account.ID), raw, c.ttl).Err(); err != nil {
			c.logger.Warn("account cache write failed", zap.Error(err))
		}
	}
	return account, nil
}

func (c *CachedAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	return c.inner.Create(ctx, account)
}

func (c *CachedAccountRepository) Update(ctx context.Context, account *domain.Account) error {
	if err := c.inner.Update(ctx, account); err != nil {
		return err
	}
	c.invalidate(ctx, account.ID)
	return nil
}

func (c *CachedAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return c.inner.GetByEmail(ctx, email)
}

func (c *CachedAccountRepository) List(ctx context.Context, filter repository.AccountFilter) ([]domain.Account, error) {
	return c.inner.List(ctx, filter)
}

func (c *CachedAccountRepository) Count(ctx context.Context, role domain.Role) (int, error) {
	return c.inner.Count(ctx, role)
}

func (c *CachedAccountRepository) invalidate(ctx context.Context, id string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, accountKey(id)).Err(); err != nil {
		c.logger.Warn("account cache invalidation failed", zap.Error(err))
	}
}
