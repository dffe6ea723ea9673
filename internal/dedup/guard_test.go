package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/logger"
)

type fakeRepository struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	err     error
	lastKey string
	lastTTL time.Duration
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{keys: make(map[string]struct{})}
}

func (f *fakeRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKey = key
	f.lastTTL = ttl
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func guardConfig(fallback string) config.DedupConfig {
	return config.DedupConfig{TTLSeconds: 86400, OnRedisError: fallback}
}

func TestClaimFirstWinsSecondLoses(t *testing.T) {
	repo := newFakeRepository()
	g := NewGuard(repo, guardConfig(constants.FallbackAllow), logger.NopLogger())

	first, err := g.Claim(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := g.Claim(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestClaimKeysAreSessionScoped(t *testing.T) {
	repo := newFakeRepository()
	g := NewGuard(repo, guardConfig(constants.FallbackAllow), logger.NopLogger())

	first, err := g.Claim(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, constants.CacheKeyPrefixConversion+"cs_test_123", repo.lastKey)
	assert.Equal(t, 86400*time.Second, repo.lastTTL)

	other, err := g.Claim(context.Background(), "cs_test_456")
	require.NoError(t, err)
	assert.True(t, other, "distinct sessions never collide")
}

func TestClaimRedisErrorFallbackAllow(t *testing.T) {
	repo := newFakeRepository()
	repo.err = errors.New("connection refused")
	g := NewGuard(repo, guardConfig(constants.FallbackAllow), logger.NopLogger())

	first, err := g.Claim(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.True(t, first, "allow fallback lets the dispatch proceed")
}

func TestClaimRedisErrorFallbackDeny(t *testing.T) {
	repo := newFakeRepository()
	repo.err = errors.New("connection refused")
	g := NewGuard(repo, guardConfig(constants.FallbackDeny), logger.NopLogger())

	first, err := g.Claim(context.Background(), "cs_test_123")
	require.Error(t, err)
	assert.False(t, first)
	assert.Contains(t, err.Error(), "cs_test_123")
}

func TestClaimWithoutRepositoryAlwaysWins(t *testing.T) {
	g := NewGuard(nil, guardConfig(constants.FallbackAllow), logger.NopLogger())

	for i := 0; i < 3; i++ {
		first, err := g.Claim(context.Background(), "cs_test_123")
		require.NoError(t, err)
		assert.True(t, first)
	}
}
