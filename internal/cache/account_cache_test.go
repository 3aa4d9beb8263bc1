package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
)

type countingRepo struct {
	account *domain.Account
	gets    int
	updates int
}

func (c *countingRepo) Create(_ context.Context, _ *domain.Account) error { return nil }

func (c *countingRepo) Update(_ context.Context, account *domain.Account) error {
	c.updates++
	c.account = account
	return nil
}

func (c *countingRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	c.gets++
	if c.account == nil || c.account.ID != id {
		return nil, pgx.ErrNoRows
	}
	return c.account, nil
}

func (c *countingRepo) GetByEmail(_ context.Context, _ string) (*domain.Account, error) {
	return c.account, nil
}

func (c *countingRepo) List(_ context.Context, _ repository.AccountFilter) ([]domain.Account, error) {
	return nil, nil
}

func (c *countingRepo) Count(_ context.Context, _ domain.Role) (int, error) { return 0, nil }

// fakeClient records cache traffic; unset hooks panic so tests notice
// unexpected commands.
type fakeClient struct {
	getFn func(ctx context.Context, key string) *redis.StringCmd
	setFn func(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	delFn func(ctx context.Context, keys ...string) *redis.IntCmd
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getFn != nil {
		return f.getFn(ctx, key)
	}
	panic("unexpected Get")
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.setFn != nil {
		return f.setFn(ctx, key, value, ttl)
	}
	panic("unexpected Set")
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.delFn != nil {
		return f.delFn(ctx, keys...)
	}
	panic("unexpected Del")
}

func TestCachedAccountRepository_NilClientPassThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{account: &domain.Account{ID: "id-1", Status: domain.StatusActive}}
	cached := NewCachedAccountRepository(inner, nil, 0, zap.NewNop())

	account, err := cached.GetByID(ctx, "id-1")
	require.NoError(t, err)
	require.Equal(t, "id-1", account.ID)
	require.Equal(t, 1, inner.gets)

	_, err = cached.GetByID(ctx, "missing")
	require.ErrorIs(t, err, pgx.ErrNoRows)

	require.NoError(t, cached.Update(ctx, account))
	require.Equal(t, 1, inner.updates)
}

func TestCachedAccountRepository_HitServesWithoutInnerCall(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{}

	stored := &domain.Account{ID: "id-1", Email: "alice@x.com", Status: domain.StatusActive}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)

	client := &fakeClient{
		getFn: func(_ context.Context, key string) *redis.StringCmd {
			require.Equal(t, "account:id-1", key)
			return redis.NewStringResult(string(raw), nil)
		},
	}
	cached := NewCachedAccountRepository(inner, client, time.Minute, zap.NewNop())

	account, err := cached.GetByID(ctx, "id-1")
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", account.Email)
	require.Equal(t, domain.StatusActive, account.Status)
	require.Zero(t, inner.gets)
}

func TestCachedAccountRepository_MissFillsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{account: &domain.Account{ID: "id-1", Email: "alice@x.com", Status: domain.StatusActive}}

	var setKey string
	var setTTL time.Duration
	client := &fakeClient{
		getFn: func(_ context.Context, _ string) *redis.StringCmd {
			return redis.NewStringResult("", redis.Nil)
		},
		setFn: func(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
			setKey = key
			setTTL = ttl

			var cachedAccount domain.Account
			require.NoError(t, json.Unmarshal(value.([]byte), &cachedAccount))
			require.Equal(t, "alice@x.com", cachedAccount.Email)
			return redis.NewStatusResult("OK", nil)
		},
	}
	cached := NewCachedAccountRepository(inner, client, time.Minute, zap.NewNop())

	account, err := cached.GetByID(ctx, "id-1")
	require.NoError(t, err)
	require.Equal(t, "id-1", account.ID)
	require.Equal(t, 1, inner.gets)
	require.Equal(t, "account:id-1", setKey)
	require.Equal(t, time.Minute, setTTL)
}

func TestCachedAccountRepository_UpdateInvalidates(t *testing.T) {
	ctx := context.Background()
	account := &domain.Account{ID: "id-1", Email: "alice@x.com", Status: domain.StatusActive}
	inner := &countingRepo{account: account}

	var deleted []string
	client := &fakeClient{
		delFn: func(_ context.Context, keys ...string) *redis.IntCmd {
			deleted = append(deleted, keys...)
			return redis.NewIntResult(int64(len(keys)), nil)
		},
	}
	cached := NewCachedAccountRepository(inner, client, time.Minute, zap.NewNop())

	// A status toggle must evict the cached record so the auth middleware's
	// next lookup sees the new status instead of a stale active account.
	account.Status = domain.StatusInactive
	require.NoError(t, cached.Update(ctx, account))
	require.Equal(t, 1, inner.updates)
	require.Equal(t, []string{"account:id-1"}, deleted)
}

func TestCachedAccountRepository_CorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{account: &domain.Account{ID: "id-1", Email: "alice@x.com", Status: domain.StatusActive}}

	var deleted []string
	client := &fakeClient{
		getFn: func(_ context.Context, _ string) *redis.StringCmd {
			return redis.NewStringResult("{not json", nil)
		},
		setFn: func(_ context.Context, _ string, _ interface{}, _ time.Duration) *redis.StatusCmd {
			return redis.NewStatusResult("OK", nil)
		},
		delFn: func(_ context.Context, keys ...string) *redis.IntCmd {
			deleted = append(deleted, keys...)
			return redis.NewIntResult(int64(len(keys)), nil)
		},
	}
	cached := NewCachedAccountRepository(inner, client, time.Minute, zap.NewNop())

	account, err := cached.GetByID(ctx, "id-1")
	require.NoError(t, err)
	require.Equal(t, "id-1", account.ID)
	require.Equal(t, 1, inner.gets)
	require.Equal(t, []string{"account:id-1"}, deleted)
}
