package realtime

import (
	"context"
	"encoding/json"

	"github.com/yourorg/institute-portal/internal/models"
)

// The change feed is the subscribe-to-changes primitive the synchronizer
// consumes: every write to a watched table is published as an Event, and a
// Subscription delivers matching events until closed.

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

const (
	TableMessages      = "messages"
	TableNotifications = "notifications"
)

type Event struct {
	Type    EventType       `json:"type"`
	Table   string          `json:"table"`
	RoomID  string          `json:"room_id,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Message decodes the payload of a messages-table event.
func (e Event) Message() (*models.Message, error) {
	var m models.Message
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Filter restricts a subscription to one room or one user. Zero-value
// fields match everything.
type Filter struct {
	RoomID string
	UserID string
}

func (f Filter) Match(e Event) bool {
	if f.RoomID != "" && e.RoomID != f.RoomID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	return true
}

type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Feed interface {
	Subscribe(ctx context.Context, table string, f Filter) (Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus is a feed that also accepts publishes; both implementations here
// (redis, in-process) satisfy it.
type Bus interface {
	Feed
	Publisher
}

func NewMessageEvent(t EventType, m *models.Message) Event {
	b, _ := json.Marshal(m)
	return Event{Type: t, Table: TableMessages, RoomID: m.RoomID, Payload: b}
}

func NewNotificationEvent(t EventType, n *models.Notification) Event {
	b, _ := json.Marshal(n)
	return Event{Type: t, Table: TableNotifications, UserID: n.UserID, Payload: b}
}
