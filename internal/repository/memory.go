package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/institute-portal/internal/models"
)

// MemoryRepository backs tests and brokerless local runs. Writes keep the
// same ordering and read_by semantics as the mongo implementation.
type MemoryRepository struct {
	mu            sync.RWMutex
	rooms         []models.Room
	messages      []models.Message
	notifications []models.Notification
	profiles      map[string]models.Profile
	clock         int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]models.Profile)}
}

// now returns a strictly increasing timestamp so insertion order and
// created_at order never disagree, even within one wall-clock tick.
func (r *MemoryRepository) now() time.Time {
	r.clock++
	return time.Now().UTC().Add(time.Duration(r.clock) * time.Microsecond)
}

func (r *MemoryRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Room, len(r.rooms))
	copy(out, r.rooms)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.now()
	}
	r.rooms = append(r.rooms, *room)
	return nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.RoomID == roomID {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.messages {
		if m.ID == id {
			c := cloneMessage(m)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) InsertMessage(ctx context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{m.SenderID}
	}
	m.CreatedAt = r.now()
	r.messages = append(r.messages, cloneMessage(*m))
	return nil
}

func (r *MemoryRepository) AddReader(ctx context.Context, messageID, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID != messageID {
			continue
		}
		if !r.messages[i].ReadByContains(readerID) {
			r.messages[i].ReadBy = append(r.messages[i].ReadBy, readerID)
		}
		return nil
	}
	return ErrNotFound
}

func (r *MemoryRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *MemoryRepository) InsertNotification(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = r.now()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *MemoryRepository) MarkNotificationRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) MarkCategoryRead(ctx context.Context, userID string, cat models.NotificationCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].UserID == userID && r.notifications[i].Category == cat {
			r.notifications[i].Read = true
		}
	}
	return nil
}

func (r *MemoryRepository) MarkAllRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].UserID == userID {
			r.notifications[i].Read = true
		}
	}
	return nil
}

func (r *MemoryRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Profile
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) UpsertProfile(ctx context.Context, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.profiles[p.ID] = *p
	return nil
}

func cloneMessage(m models.Message) models.Message {
	m.ReadBy = append([]string(nil), m.ReadBy...)
	m.Sender = nil
	return m
}
