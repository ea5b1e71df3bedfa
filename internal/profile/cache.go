package profile

import (
	"context"
	"sync"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/repository"
)

// Cache is the cache-aside identity cache shared by the message store, the
// room membership resolver and notification rendering. Lookups hit the
// profile store once per distinct identity, not once per message.
type Cache struct {
	mu    sync.RWMutex
	store repository.ProfileStore
	byID  map[string]*models.Profile
}

func NewCache(store repository.ProfileStore) *Cache {
	return &Cache{store: store, byID: make(map[string]*models.Profile)}
}

// Get resolves one profile, consulting the store only on a miss. A failed
// lookup is not cached, so the next call retries.
func (c *Cache) Get(ctx context.Context, id string) (*models.Profile, error) {
	c.mu.RLock()
	p, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := c.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byID[id] = p
	c.mu.Unlock()
	return p, nil
}

// GetBatch resolves a set of identities with a single store call for the
// misses. Identities the store does not know stay absent from the result.
func (c *Cache) GetBatch(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(ids))
	var missing []string

	c.mu.RLock()
	for _, id := range ids {
		if p, ok := c.byID[id]; ok {
			out[id] = p
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := c.store.GetProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for i := range fetched {
		p := fetched[i]
		c.byID[p.ID] = &p
		out[p.ID] = &p
	}
	c.mu.Unlock()
	return out, nil
}

// GetByEmail bypasses the id index; used by the membership resolver to
// correlate scoped rooms to their owner.
func (c *Cache) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	c.mu.RLock()
	for _, p := range c.byID {
		if p.Email == email {
			c.mu.RUnlock()
			return p, nil
		}
	}
	c.mu.RUnlock()

	p, err := c.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byID[p.ID] = p
	c.mu.Unlock()
	return p, nil
}
