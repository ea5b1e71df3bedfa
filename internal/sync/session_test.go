package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/presence"
	"github.com/yourorg/institute-portal/internal/profile"
	"github.com/yourorg/institute-portal/internal/realtime"
	"github.com/yourorg/institute-portal/internal/repository"
)

type sessionFixture struct {
	repo   *repository.MemoryRepository
	bus    *realtime.MemoryBus
	broker *presence.MemoryBroker
	store  *MessageStore
	sess   *Session
	events atomic.Int64
}

func newSessionFixture(t *testing.T, self string) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		repo:   repository.NewMemoryRepository(),
		bus:    realtime.NewMemoryBus(),
		broker: presence.NewMemoryBroker(),
	}
	ctx := context.Background()
	require.NoError(t, f.repo.UpsertProfile(ctx, &models.Profile{ID: "user", FullName: "Student One", Email: "s1@x.com"}))
	require.NoError(t, f.repo.UpsertProfile(ctx, &models.Profile{ID: "admin", FullName: "Head Admin", Email: "admin@x.com"}))

	log := zap.NewNop().Sugar()
	profiles := profile.NewCache(f.repo)
	f.store = NewMessageStore(f.repo, profiles)
	f.sess = NewSession(SessionConfig{
		Self:       self,
		Store:      f.store,
		Receipts:   NewReceiptTracker(f.repo, f.bus, log),
		Feed:       f.bus,
		Broker:     f.broker,
		TypingIdle: time.Minute,
		Log:        log,
		Notify:     func(realtime.EventType, *models.Message) { f.events.Add(1) },
	})
	return f
}

// publishInsert mimics a remote client writing a message: persist, then
// emit the change event.
func (f *sessionFixture) publishInsert(t *testing.T, roomID, sender, body string) *models.Message {
	t.Helper()
	ctx := context.Background()
	m := &models.Message{RoomID: roomID, SenderID: sender, Body: body}
	require.NoError(t, f.repo.InsertMessage(ctx, m))
	require.NoError(t, f.bus.Publish(ctx, realtime.NewMessageEvent(realtime.EventInsert, m)))
	return m
}

func TestSessionActivateLoadsHistoryAndCatchesUp(t *testing.T) {
	f := newSessionFixture(t, "user")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m := &models.Message{RoomID: "R", SenderID: "admin", Body: "hello"}
		require.NoError(t, f.repo.InsertMessage(ctx, m))
	}

	require.NoError(t, f.sess.Activate(ctx, "R"))
	defer f.sess.Close()

	require.Equal(t, StateLive, f.sess.State())
	require.Equal(t, 3, f.store.Len())

	// opening the room marks everything read
	msgs, err := f.repo.ListMessages(ctx, "R")
	require.NoError(t, err)
	for _, m := range msgs {
		require.False(t, m.UnreadBy("user"))
	}
}

func TestSessionAppliesLiveInsertAndAutoReads(t *testing.T) {
	f := newSessionFixture(t, "user")
	ctx := context.Background()

	require.NoError(t, f.sess.Activate(ctx, "R"))
	defer f.sess.Close()

	m1 := f.publishInsert(t, "R", "admin", "new assignment posted")

	require.Eventually(t, func() bool {
		msgs := f.store.Messages()
		if len(msgs) != 1 {
			return false
		}
		// auto-read: the arriving foreign message gains our receipt
		// and the resulting update event patches the local copy
		return msgs[0].ID == m1.ID && msgs[0].ReadByContains("user") && msgs[0].ReadByContains("admin")
	}, time.Second, 5*time.Millisecond)

	got, err := f.repo.GetMessage(ctx, m1.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"admin", "user"}, got.ReadBy)

	// sender enrichment came through the cache
	require.NotNil(t, f.store.Messages()[0].Sender)
	require.Equal(t, "Head Admin", f.store.Messages()[0].Sender.FullName)
}

func TestSessionOwnMessagesNotAutoMarked(t *testing.T) {
	f := newSessionFixture(t, "user")
	ctx := context.Background()

	require.NoError(t, f.sess.Activate(ctx, "R"))
	defer f.sess.Close()

	m := f.publishInsert(t, "R", "user", "my own words")

	require.Eventually(t, func() bool { return f.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	got, err := f.repo.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, got.ReadBy)
}

func TestSessionRoomSwitchDropsOldSubscriptions(t *testing.T) {
	f := newSessionFixture(t, "user")
	ctx := context.Background()

	require.NoError(t, f.sess.Activate(ctx, "A"))
	f.publishInsert(t, "A", "admin", "first")
	require.Eventually(t, func() bool { return f.store.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.sess.Activate(ctx, "B"))
	defer f.sess.Close()
	require.Equal(t, "B", f.sess.Room())
	require.Zero(t, f.store.Len(), "store fully reset on switch")

	f.publishInsert(t, "A", "admin", "late for the old room")
	f.publishInsert(t, "B", "admin", "for the new room")

	require.Eventually(t, func() bool { return f.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "B", f.store.Messages()[0].RoomID)

	// allow any stray delivery to surface before asserting
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "B", f.store.Messages()[0].RoomID)
	require.Equal(t, 1, f.store.Len(), "no event for A processed after the switch")
}

func TestSessionApplyUpdatePatchesReadBy(t *testing.T) {
	f := newSessionFixture(t, "admin")
	ctx := context.Background()

	m := &models.Message{RoomID: "R", SenderID: "admin", Body: "read me"}
	require.NoError(t, f.repo.InsertMessage(ctx, m))
	require.NoError(t, f.sess.Activate(ctx, "R"))
	defer f.sess.Close()
	require.Equal(t, 1, f.store.Len())

	// another client records a receipt; we only see the update event
	require.NoError(t, f.repo.AddReader(ctx, m.ID, "user"))
	updated, err := f.repo.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(ctx, realtime.NewMessageEvent(realtime.EventUpdate, updated)))

	require.Eventually(t, func() bool {
		return f.store.Messages()[0].ReadByContains("user")
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, f.store.Len())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, "user")
	ctx := context.Background()

	require.NoError(t, f.sess.Activate(ctx, "R"))
	f.sess.Close()
	require.Equal(t, StateIdle, f.sess.State())
	f.sess.Close()
	require.Equal(t, StateIdle, f.sess.State())
}

func TestSessionTypingChannelPerRoom(t *testing.T) {
	f := newSessionFixture(t, "user")
	ctx := context.Background()

	require.NoError(t, f.sess.Activate(ctx, "A"))
	sigA := f.sess.Typing()
	require.NotNil(t, sigA)
	sigA.SetInput(ctx, "drafting")

	// peer on the same channel sees us
	peerCh, err := f.broker.Join(ctx, "typing:A", "admin")
	require.NoError(t, err)
	snap, err := peerCh.Snapshot(ctx)
	require.NoError(t, err)
	require.Contains(t, snap, "user")

	require.NoError(t, f.sess.Activate(ctx, "B"))
	defer f.sess.Close()

	// switching rooms untracked us from A's channel
	snap, err = peerCh.Snapshot(ctx)
	require.NoError(t, err)
	require.NotContains(t, snap, "user", "typing state must not leak across room switches")
	require.NotSame(t, sigA, f.sess.Typing())
}
