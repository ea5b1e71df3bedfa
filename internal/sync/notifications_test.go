package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/realtime"
	"github.com/yourorg/institute-portal/internal/repository"
)

func centerFixture(t *testing.T) (*repository.MemoryRepository, *realtime.MemoryBus, *Center) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	bus := realtime.NewMemoryBus()
	return repo, bus, NewCenter(repo, bus, "user", zap.NewNop().Sugar())
}

func seedNotification(t *testing.T, repo *repository.MemoryRepository, userID string, cat models.NotificationCategory, read bool) *models.Notification {
	t.Helper()
	n := &models.Notification{UserID: userID, Category: cat, Title: string(cat), Read: read}
	require.NoError(t, repo.InsertNotification(context.Background(), n))
	return n
}

func TestCenterCountsMatchUnreadSet(t *testing.T) {
	repo, _, center := centerFixture(t)
	ctx := context.Background()

	seedNotification(t, repo, "user", models.CategoryAssignment, false)
	seedNotification(t, repo, "user", models.CategoryAssignment, false)
	seedNotification(t, repo, "user", models.CategoryComplaint, false)
	seedNotification(t, repo, "user", models.CategoryEmergency, true)
	seedNotification(t, repo, "someone-else", models.CategoryAssignment, false)

	require.NoError(t, center.Refresh(ctx))
	counts := center.Counts()
	require.Equal(t, 2, counts[models.CategoryAssignment])
	require.Equal(t, 1, counts[models.CategoryComplaint])
	require.Equal(t, 0, counts[models.CategoryEmergency], "read notifications never count")
	require.Equal(t, 0, counts[models.CategoryGrade])
}

func TestCenterMarkCategoryRead(t *testing.T) {
	repo, _, center := centerFixture(t)
	ctx := context.Background()

	seedNotification(t, repo, "user", models.CategoryAssignment, false)
	seedNotification(t, repo, "user", models.CategoryComplaint, false)

	require.NoError(t, center.MarkCategoryRead(ctx, models.CategoryAssignment))
	counts := center.Counts()
	require.Equal(t, 0, counts[models.CategoryAssignment])
	require.Equal(t, 1, counts[models.CategoryComplaint], "other badges untouched")
}

func TestCenterMarkAllRead(t *testing.T) {
	repo, _, center := centerFixture(t)
	ctx := context.Background()

	for _, cat := range models.Categories() {
		seedNotification(t, repo, "user", cat, false)
	}
	require.NoError(t, center.MarkAllRead(ctx))
	for cat, n := range center.Counts() {
		require.Zerof(t, n, "category %s", cat)
	}
}

func TestCenterMarkOneRecomputes(t *testing.T) {
	repo, _, center := centerFixture(t)
	ctx := context.Background()

	a := seedNotification(t, repo, "user", models.CategoryGrade, false)
	seedNotification(t, repo, "user", models.CategoryGrade, false)

	require.NoError(t, center.MarkRead(ctx, a.ID))
	require.Equal(t, 1, center.Counts()[models.CategoryGrade])
	// marking the same one again changes nothing
	require.NoError(t, center.MarkRead(ctx, a.ID))
	require.Equal(t, 1, center.Counts()[models.CategoryGrade])
}

func TestCenterLiveRefreshOnFeedEvents(t *testing.T) {
	repo, bus, center := centerFixture(t)
	ctx := context.Background()

	require.NoError(t, center.Start(ctx, nil))
	defer center.Stop()
	require.Equal(t, 0, center.Counts()[models.CategoryApplication])

	n := &models.Notification{UserID: "user", Category: models.CategoryApplication}
	require.NoError(t, repo.InsertNotification(ctx, n))
	require.NoError(t, bus.Publish(ctx, realtime.NewNotificationEvent(realtime.EventInsert, n)))

	require.Eventually(t, func() bool {
		return center.Counts()[models.CategoryApplication] == 1
	}, time.Second, 5*time.Millisecond)

	// an event for another user never reaches this center
	other := &models.Notification{UserID: "someone-else", Category: models.CategoryApplication}
	require.NoError(t, repo.InsertNotification(ctx, other))
	require.NoError(t, bus.Publish(ctx, realtime.NewNotificationEvent(realtime.EventInsert, other)))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, center.Counts()[models.CategoryApplication])
}

func TestCenterRecentNewestFirst(t *testing.T) {
	repo, _, center := centerFixture(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		seedNotification(t, repo, "user", models.CategoryAssignment, false)
	}
	items, err := center.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 10)
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt))
	}
}
