package repository

import (
	"context"
	"errors"

	"github.com/yourorg/institute-portal/internal/models"
)

var ErrNotFound = errors.New("repository: not found")

type RoomStore interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	CreateRoom(ctx context.Context, r *models.Room) error
}

type MessageStore interface {
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	InsertMessage(ctx context.Context, m *models.Message) error
	// AddReader adds readerID to the message's read_by set. Adding an
	// already-present reader is a no-op; the set only grows.
	AddReader(ctx context.Context, messageID, readerID string) error
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]models.Notification, error)
	InsertNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
	MarkCategoryRead(ctx context.Context, userID string, cat models.NotificationCategory) error
	MarkAllRead(ctx context.Context, userID string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
}

// Store is the full persistence surface the synchronizer depends on.
type Store interface {
	RoomStore
	MessageStore
	NotificationStore
	ProfileStore
}
