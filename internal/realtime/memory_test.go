package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/institute-portal/internal/models"
)

func TestMemoryBusRoomFilter(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, TableMessages, Filter{RoomID: "A"})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, NewMessageEvent(EventInsert, &models.Message{ID: "m1", RoomID: "A"})))
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(EventInsert, &models.Message{ID: "m2", RoomID: "B"})))

	select {
	case ev := <-sub.Events():
		m, err := ev.Message()
		require.NoError(t, err)
		require.Equal(t, "m1", m.ID)
	case <-time.After(time.Second):
		t.Fatal("expected event for room A")
	}
	require.Empty(t, sub.Events(), "room B event filtered out")
}

func TestMemoryBusTableIsolation(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, TableNotifications, Filter{UserID: "u"})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, NewMessageEvent(EventInsert, &models.Message{ID: "m", RoomID: "A"})))
	require.NoError(t, bus.Publish(ctx, NewNotificationEvent(EventInsert, &models.Notification{ID: "n", UserID: "u"})))

	ev := <-sub.Events()
	require.Equal(t, TableNotifications, ev.Table)
	require.Empty(t, sub.Events())
}

func TestMemoryBusCloseStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, TableMessages, Filter{})
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "double close is safe")

	require.NoError(t, bus.Publish(ctx, NewMessageEvent(EventInsert, &models.Message{ID: "m", RoomID: "A"})))

	_, open := <-sub.Events()
	require.False(t, open, "channel closed, nothing delivered after unsubscribe")
}

func TestFilterMatch(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"empty filter matches all", Filter{}, Event{RoomID: "A", UserID: "u"}, true},
		{"room match", Filter{RoomID: "A"}, Event{RoomID: "A"}, true},
		{"room mismatch", Filter{RoomID: "A"}, Event{RoomID: "B"}, false},
		{"user match", Filter{UserID: "u"}, Event{UserID: "u"}, true},
		{"user mismatch", Filter{UserID: "u"}, Event{UserID: "v"}, false},
		{"both must match", Filter{RoomID: "A", UserID: "u"}, Event{RoomID: "A", UserID: "v"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.filter.Match(tc.event))
		})
	}
}
