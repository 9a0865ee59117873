package params_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
)

// brokenCache fails every operation, standing in for unreachable redis.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, kind string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(ctx context.Context, kind string, data []byte) error {
	return errors.New("connection refused")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := params.NewStore(params.NewMemoryCache(), logger.NewNop())
	ctx := context.Background()

	values := params.Values{"limit": 500.0, "missing_only": true}
	store.Save(ctx, "rebaid_details", values)

	got := store.Load(ctx, "rebaid_details")
	assert.Equal(t, values, got)
}

func TestStore_LoadAbsentKind(t *testing.T) {
	store := params.NewStore(params.NewMemoryCache(), logger.NewNop())

	assert.Nil(t, store.Load(context.Background(), "never_saved"))
}

func TestStore_KindsDoNotCrossContaminate(t *testing.T) {
	store := params.NewStore(params.NewMemoryCache(), logger.NewNop())
	ctx := context.Background()

	store.Save(ctx, "rebaid_details", params.Values{"limit": 100.0})
	store.Save(ctx, "myvipon_details", params.Values{"limit": 7.0})

	assert.Equal(t, 100.0, store.Load(ctx, "rebaid_details")["limit"])
	assert.Equal(t, 7.0, store.Load(ctx, "myvipon_details")["limit"])
}

func TestStore_CorruptDataIsAbsent(t *testing.T) {
	cache := params.NewMemoryCache()
	require.NoError(t, cache.Set(context.Background(), "demo", []byte("{not json")))

	store := params.NewStore(cache, logger.NewNop())
	assert.Nil(t, store.Load(context.Background(), "demo"))
}

func TestStore_BrokenCacheDegradesSilently(t *testing.T) {
	store := params.NewStore(brokenCache{}, logger.NewNop())
	ctx := context.Background()

	// Neither call may panic or surface an error.
	store.Save(ctx, "demo", params.Values{"limit": 1.0})
	assert.Nil(t, store.Load(ctx, "demo"))
}

func TestStore_ResolveLayersPersistedOverSeed(t *testing.T) {
	store := params.NewStore(params.NewMemoryCache(), logger.NewNop())
	ctx := context.Background()
	defs := []params.Definition{
		params.Number{Name: "limit", Default: 10},
		params.Text{Name: "proxy"},
	}

	store.Save(ctx, "demo", params.Values{"limit": 99.0})

	got := store.Resolve(ctx, "demo", defs, params.Values{"limit": 42.0, "proxy": "http://p"})
	assert.Equal(t, 99.0, got["limit"])
	assert.Equal(t, "http://p", got["proxy"])
}

func TestStore_ResetOverwritesPersisted(t *testing.T) {
	store := params.NewStore(params.NewMemoryCache(), logger.NewNop())
	ctx := context.Background()
	defs := []params.Definition{params.Number{Name: "limit", Default: 10}}

	store.Save(ctx, "demo", params.Values{"limit": 99.0})
	got := store.Reset(ctx, "demo", defs)

	assert.Equal(t, 10.0, got["limit"])
	assert.Equal(t, 10.0, store.Load(ctx, "demo")["limit"])
}
