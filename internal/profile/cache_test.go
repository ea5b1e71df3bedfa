package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/repository"
)

type countingStore struct {
	repository.ProfileStore
	gets    int
	batches int
	emails  int
}

func (s *countingStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	s.gets++
	return s.ProfileStore.GetProfile(ctx, id)
}

func (s *countingStore) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	s.batches++
	return s.ProfileStore.GetProfiles(ctx, ids)
}

func (s *countingStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.emails++
	return s.ProfileStore.GetProfileByEmail(ctx, email)
}

func cacheFixture(t *testing.T) (*countingStore, *Cache) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.UpsertProfile(ctx, &models.Profile{ID: "u1", FullName: "Student One", Email: "s1@x.com"}))
	require.NoError(t, repo.UpsertProfile(ctx, &models.Profile{ID: "u2", FullName: "Student Two", Email: "s2@x.com"}))
	store := &countingStore{ProfileStore: repo}
	return store, NewCache(store)
}

func TestCacheGetHitsStoreOnce(t *testing.T) {
	store, cache := cacheFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p, err := cache.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "Student One", p.FullName)
	}
	require.Equal(t, 1, store.gets)
}

func TestCacheMissNotNegativelyCached(t *testing.T) {
	store, cache := cacheFixture(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = cache.Get(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Equal(t, 2, store.gets, "failed lookups retry on the next call")
}

func TestCacheBatchFetchesOnlyMisses(t *testing.T) {
	store, cache := cacheFixture(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "u1")
	require.NoError(t, err)

	got, err := cache.GetBatch(ctx, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, store.batches, "one round-trip for all misses")

	// everything known is now cached
	got, err = cache.GetBatch(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, store.batches)
}

func TestCacheGetByEmailPopulatesIDIndex(t *testing.T) {
	store, cache := cacheFixture(t)
	ctx := context.Background()

	p, err := cache.GetByEmail(ctx, "s2@x.com")
	require.NoError(t, err)
	require.Equal(t, "u2", p.ID)
	require.Equal(t, 1, store.emails)

	// the id index was warmed by the email lookup
	_, err = cache.Get(ctx, "u2")
	require.NoError(t, err)
	require.Zero(t, store.gets)

	// and the email path is served from cache afterwards
	_, err = cache.GetByEmail(ctx, "s2@x.com")
	require.NoError(t, err)
	require.Equal(t, 1, store.emails)
}
