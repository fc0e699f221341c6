package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeKeyStore struct {
	getValue string
	getErr   error
	setCalls int
}

func (f *fakeKeyStore) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult(f.getValue, f.getErr)
}

func (f *fakeKeyStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.setCalls++
	return redis.NewStatusResult("OK", nil)
}

type countingSource struct {
	keySet *jose.JSONWebKeySet
	err    error
	calls  int
}

func (s *countingSource) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	s.calls++
	return s.keySet, s.err
}

func testKeySet() *jose.JSONWebKeySet {
	return &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{KeyID: "kid-1", Key: []byte("material")}}}
}

func TestKeysCacheHitSkipsSource(t *testing.T) {
	payload, err := json.Marshal(testKeySet())
	require.NoError(t, err)

	source := &countingSource{keySet: testKeySet()}
	cache := NewRedisKeyCache(&fakeKeyStore{getValue: string(payload)}, source)

	keySet, err := cache.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keySet.Keys, 1)
	require.Equal(t, "kid-1", keySet.Keys[0].KeyID)
	require.Zero(t, source.calls)
}

func TestKeysCacheMissFetchesAndStores(t *testing.T) {
	store := &fakeKeyStore{getErr: redis.Nil}
	source := &countingSource{keySet: testKeySet()}
	cache := NewRedisKeyCache(store, source)

	keySet, err := cache.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keySet.Keys, 1)
	require.Equal(t, 1, source.calls)
	require.Equal(t, 1, store.setCalls)
}

func TestKeysRedisOutageFallsThroughToSource(t *testing.T) {
	store := &fakeKeyStore{getErr: errors.New("connection refused")}
	source := &countingSource{keySet: testKeySet()}
	cache := NewRedisKeyCache(store, source)

	keySet, err := cache.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keySet.Keys, 1)
	require.Equal(t, 1, source.calls)
}

func TestKeysCorruptCacheEntryRefetches(t *testing.T) {
	store := &fakeKeyStore{getValue: "{not json"}
	source := &countingSource{keySet: testKeySet()}
	cache := NewRedisKeyCache(store, source)

	keySet, err := cache.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keySet.Keys, 1)
	require.Equal(t, 1, source.calls)
}

func TestKeysSourceFailureSurfaces(t *testing.T) {
	store := &fakeKeyStore{getErr: redis.Nil}
	source := &countingSource{err: errors.New("certs endpoint down")}
	cache := NewRedisKeyCache(store, source)

	_, err := cache.Keys(context.Background())
	require.Error(t, err)
}
