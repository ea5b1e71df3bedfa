package sync

import (
	"context"
	"sync"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/profile"
	"github.com/yourorg/institute-portal/internal/repository"
)

// MessageStore holds the ordered history of the active room. Order is
// insertion order as written by the backend, never arrival order of side
// lookups; updates patch in place and never move a message.
type MessageStore struct {
	mu       sync.RWMutex
	repo     repository.MessageStore
	profiles *profile.Cache

	roomID string
	msgs   []*models.Message
	index  map[string]int // message id -> position in msgs
}

func NewMessageStore(repo repository.MessageStore, profiles *profile.Cache) *MessageStore {
	return &MessageStore{
		repo:     repo,
		profiles: profiles,
		index:    make(map[string]int),
	}
}

// Reset clears all state and rebinds the store to a room. Must be called on
// every room switch so the previous room's messages never bleed through.
func (s *MessageStore) Reset(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.msgs = nil
	s.index = make(map[string]int)
}

func (s *MessageStore) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// LoadHistory fetches the room's full history in creation order and
// resolves sender profiles with one batch lookup over the distinct senders.
func (s *MessageStore) LoadHistory(ctx context.Context) error {
	s.mu.RLock()
	roomID := s.roomID
	s.mu.RUnlock()

	history, err := s.repo.ListMessages(ctx, roomID)
	if err != nil {
		return err
	}

	var senders []string
	seen := make(map[string]bool)
	for i := range history {
		if !seen[history[i].SenderID] {
			seen[history[i].SenderID] = true
			senders = append(senders, history[i].SenderID)
		}
	}
	byID, err := s.profiles.GetBatch(ctx, senders)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID != roomID {
		// the room switched while the fetch was in flight; drop the response
		return nil
	}
	s.msgs = make([]*models.Message, 0, len(history))
	s.index = make(map[string]int, len(history))
	for i := range history {
		m := history[i]
		m.Sender = byID[m.SenderID]
		s.index[m.ID] = len(s.msgs)
		s.msgs = append(s.msgs, &m)
	}
	return nil
}

// ApplyInsert appends an inbound message to the tail, resolving the sender
// through the cache (a single lookup on first sight of a sender). Events
// for another room and duplicates are discarded.
func (s *MessageStore) ApplyInsert(ctx context.Context, m *models.Message) {
	if m == nil {
		return
	}
	// resolve outside the lock; the cache bounds this to one lookup per
	// distinct sender regardless of completion order
	sender, err := s.profiles.Get(ctx, m.SenderID)
	if err == nil {
		m.Sender = sender
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.RoomID != s.roomID {
		return
	}
	if _, ok := s.index[m.ID]; ok {
		return
	}
	s.index[m.ID] = len(s.msgs)
	s.msgs = append(s.msgs, m)
}

// ApplyUpdate patches an existing message in place. Only the mutable
// fields are taken from the delta; position, creation time and the resolved
// sender are preserved.
func (s *MessageStore) ApplyUpdate(m *models.Message) {
	if m == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.RoomID != "" && m.RoomID != s.roomID {
		return
	}
	i, ok := s.index[m.ID]
	if !ok {
		return
	}
	cur := s.msgs[i]
	if m.ReadBy != nil {
		cur.ReadBy = mergeReaders(cur.ReadBy, m.ReadBy)
	}
	if m.Body != "" {
		cur.Body = m.Body
	}
}

// Messages returns a snapshot of the current history in order.
func (s *MessageStore) Messages() []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// mergeReaders unions the incoming read_by into the current one. The set
// only grows; an update can never shrink it.
func mergeReaders(cur, in []string) []string {
	seen := make(map[string]bool, len(cur))
	for _, r := range cur {
		seen[r] = true
	}
	for _, r := range in {
		if !seen[r] {
			seen[r] = true
			cur = append(cur, r)
		}
	}
	return cur
}
