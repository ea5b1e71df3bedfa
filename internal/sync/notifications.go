package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/realtime"
	"github.com/yourorg/institute-portal/internal/repository"
)

// Counts maps each badge category to its unread notification count.
type Counts map[models.NotificationCategory]int

// Center maintains the per-category unread counts behind the badge UI.
// Counts are always recomputed from the full unread set, never adjusted
// incrementally; eventual consistency over fine-grained counters.
type Center struct {
	repo   repository.NotificationStore
	feed   realtime.Feed
	userID string
	log    *zap.SugaredLogger

	mu     sync.Mutex
	counts Counts
	sub    realtime.Subscription
	done   chan struct{}
	onEach func(Counts)
}

func NewCenter(repo repository.NotificationStore, feed realtime.Feed, userID string, log *zap.SugaredLogger) *Center {
	return &Center{
		repo:   repo,
		feed:   feed,
		userID: userID,
		log:    log,
		counts: emptyCounts(),
	}
}

func emptyCounts() Counts {
	c := make(Counts, len(models.Categories()))
	for _, cat := range models.Categories() {
		c[cat] = 0
	}
	return c
}

// Refresh recomputes the counts from the store's unread set.
func (c *Center) Refresh(ctx context.Context) error {
	unread, err := c.repo.ListUnread(ctx, c.userID)
	if err != nil {
		return err
	}
	counts := emptyCounts()
	for _, n := range unread {
		if _, ok := counts[n.Category]; ok {
			counts[n.Category]++
		}
	}
	c.mu.Lock()
	c.counts = counts
	cb := c.onEach
	c.mu.Unlock()
	if cb != nil {
		cb(counts)
	}
	return nil
}

// Counts returns the latest computed counts.
func (c *Center) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Counts, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Recent returns the newest notifications for the bell list.
func (c *Center) Recent(ctx context.Context, limit int) ([]models.Notification, error) {
	return c.repo.ListNotifications(ctx, c.userID, limit)
}

// MarkRead marks one notification read and refreshes.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	if err := c.repo.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// MarkCategoryRead clears one badge and refreshes.
func (c *Center) MarkCategoryRead(ctx context.Context, cat models.NotificationCategory) error {
	if err := c.repo.MarkCategoryRead(ctx, c.userID, cat); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// MarkAllRead clears every badge and refreshes.
func (c *Center) MarkAllRead(ctx context.Context) error {
	if err := c.repo.MarkAllRead(ctx, c.userID); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// Start loads the initial counts and refreshes on every notification
// change event until Stop is called. onEach, when set, observes every
// recomputation.
func (c *Center) Start(ctx context.Context, onEach func(Counts)) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	sub, err := c.feed.Subscribe(ctx, realtime.TableNotifications, realtime.Filter{UserID: c.userID})
	if err != nil {
		return err
	}
	done := make(chan struct{})
	c.mu.Lock()
	c.sub = sub
	c.done = done
	c.onEach = onEach
	c.mu.Unlock()

	go func() {
		defer close(done)
		for range sub.Events() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.Refresh(rctx); err != nil {
				c.log.Warnw("notification count refresh failed", "err", err)
			}
			cancel()
		}
	}()
	return nil
}

// Stop unsubscribes from the feed and waits for the refresh loop to drain.
func (c *Center) Stop() {
	c.mu.Lock()
	sub := c.sub
	done := c.done
	c.sub = nil
	c.done = nil
	c.onEach = nil
	c.mu.Unlock()
	if sub != nil {
		_ = sub.Close()
	}
	if done != nil {
		<-done
	}
}
