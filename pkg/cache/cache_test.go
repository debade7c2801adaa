package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Regime     string  `json:"regime"`
	Confidence float64 `json:"confidence"`
}

func TestMemoryCache_RoundTripStruct(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "spy", snapshot{Regime: "risk_on", Confidence: 0.8}, time.Minute))

	var got snapshot
	require.NoError(t, mc.Get(ctx, "spy", &got))
	assert.Equal(t, snapshot{Regime: "risk_on", Confidence: 0.8}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "value", 0))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "value", s)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	var got snapshot
	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "k", snapshot{Regime: "neutral"}, time.Second))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	now = now.Add(time.Second)

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.NoError(t, mc.Get(ctx, "c", &s))
}

func TestMemoryCache_Lock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "train"))
	ok, _ = mc.TryLock(ctx, "train", time.Minute)
	assert.True(t, ok)
}

func TestGetTyped(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_, found, err := GetTyped[snapshot](ctx, mc, "none")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mc.Set(ctx, "k", snapshot{Regime: "risk_off"}, 0))
	v, found, err := GetTyped[snapshot](ctx, mc, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "risk_off", v.Regime)
}

func TestRedisCache_SetGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "quantlens")
	ctx := context.Background()

	mock.ExpectSet("quantlens:regime:SPY", []byte(`{"regime":"risk_on","confidence":0.9}`), time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "regime:SPY", snapshot{Regime: "risk_on", Confidence: 0.9}, time.Minute))

	mock.ExpectGet("quantlens:regime:SPY").SetVal(`{"regime":"risk_on","confidence":0.9}`)
	var got snapshot
	require.NoError(t, c.Get(ctx, "regime:SPY", &got))
	assert.Equal(t, 0.9, got.Confidence)

	mock.ExpectGet("quantlens:regime:QQQ").RedisNil()
	assert.ErrorIs(t, c.Get(ctx, "regime:QQQ", &got), ErrCacheMiss)

	boom := errors.New("conn reset")
	mock.ExpectGet("quantlens:regime:IWM").SetErr(boom)
	assert.ErrorIs(t, c.Get(ctx, "regime:IWM", &got), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_LockAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "ql")
	ctx := context.Background()

	mock.ExpectSetNX("ql:train", "locked", time.Minute).SetVal(true)
	ok, err := c.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectDel("ql:train").SetVal(1)
	require.NoError(t, c.Unlock(ctx, "train"))

	mock.ExpectUnlink("ql:a", "ql:b").SetVal(2)
	require.NoError(t, c.Delete(ctx, "a", "b"))

	mock.ExpectExists("ql:a").SetVal(0)
	exists, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLayeredCache_PromotesRedisHits(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lc := NewLayeredCache(NewRedisCacheWithClient(db, ""))
	defer lc.memCache.Close()
	ctx := context.Background()

	mock.ExpectGet("k").SetVal(`{"regime":"neutral","confidence":0.5}`)

	var first snapshot
	require.NoError(t, lc.Get(ctx, "k", &first))
	var second snapshot
	require.NoError(t, lc.Get(ctx, "k", &second))

	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "regime:SPY:1d", GenerateKeyWithParams("regime", "SPY", "1d"))
	assert.Equal(t, "p:x", GenerateKey("p", "x"))
}
