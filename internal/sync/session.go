package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/presence"
	"github.com/yourorg/institute-portal/internal/realtime"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateLoading
	StateLive
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateClosing:
		return "closing"
	default:
		return "idle"
	}
}

// Notify is invoked for every message event the session applies, after the
// local store has been updated.
type Notify func(kind realtime.EventType, m *models.Message)

type SessionConfig struct {
	Self       string
	Store      *MessageStore
	Receipts   *ReceiptTracker
	Feed       realtime.Feed
	Broker     presence.Broker
	TypingIdle time.Duration
	Log        *zap.SugaredLogger
	Notify     Notify
}

// Session binds one actor's message store, receipt tracker and typing
// signaler to the live event feed. At most one room is active at a time;
// activating a new room closes the previous room's feed subscription and
// presence channel first, so no event from an abandoned room is applied.
type Session struct {
	cfg SessionConfig

	mu      sync.Mutex
	state   SessionState
	roomID  string
	sub     realtime.Subscription
	channel presence.Channel
	typing  *TypingSignaler
	done    chan struct{}
}

func NewSession(cfg SessionConfig) *Session {
	return &Session{cfg: cfg, state: StateIdle}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Typing returns the signaler for the active room, or nil when no presence
// channel is open.
func (s *Session) Typing() *TypingSignaler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Store exposes the session's message store for read access.
func (s *Session) Store() *MessageStore {
	return s.cfg.Store
}

// Activate switches the session to roomID: tear down the previous room,
// load history, open the feed subscription and presence channel, and catch
// the actor up on unread messages.
//
// History or subscription failures are non-fatal: the room comes up empty
// or without live updates and recovers on the next activation.
func (s *Session) Activate(ctx context.Context, roomID string) error {
	s.Close()

	s.mu.Lock()
	s.state = StateLoading
	s.roomID = roomID
	s.mu.Unlock()

	s.cfg.Store.Reset(roomID)
	if err := s.cfg.Store.LoadHistory(ctx); err != nil {
		s.cfg.Log.Warnw("history load failed, room starts empty", "room_id", roomID, "err", err)
	}

	sub, err := s.cfg.Feed.Subscribe(ctx, realtime.TableMessages, realtime.Filter{RoomID: roomID})
	if err != nil {
		// degraded: room stays readable without live updates until
		// the next activation
		s.cfg.Log.Warnw("feed subscribe failed, no live updates", "room_id", roomID, "err", err)
		sub = nil
	}

	ch, err := s.cfg.Broker.Join(ctx, "typing:"+roomID, s.cfg.Self)
	if err != nil {
		s.cfg.Log.Warnw("presence join failed, typing disabled", "room_id", roomID, "err", err)
		ch = nil
	}

	s.mu.Lock()
	s.sub = sub
	s.channel = ch
	if ch != nil {
		s.typing = NewTypingSignaler(ch, s.cfg.Self, s.cfg.TypingIdle, s.cfg.Log)
	}
	s.state = StateLive
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	if sub != nil {
		go s.loop(roomID, sub, done)
	} else {
		close(done)
	}

	// catch up on everything that was unread when the room opened
	if err := s.cfg.Receipts.MarkRoomRead(ctx, roomID, s.cfg.Self); err != nil {
		s.cfg.Log.Warnw("room read catch-up failed", "room_id", roomID, "err", err)
	}
	return nil
}

// loop applies feed events until the subscription closes. It is bound to
// the roomID it was started for; a late event carrying another room id is
// discarded even if the session has moved on.
func (s *Session) loop(roomID string, sub realtime.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		if ev.RoomID != roomID {
			continue
		}
		m, err := ev.Message()
		if err != nil {
			s.cfg.Log.Warnw("bad message event", "room_id", roomID, "err", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		switch ev.Type {
		case realtime.EventInsert:
			s.cfg.Store.ApplyInsert(ctx, m)
			if m.SenderID != s.cfg.Self {
				// the room is open, so an arriving message is seen
				if err := s.cfg.Receipts.MarkMessageRead(ctx, m.ID, s.cfg.Self); err != nil {
					s.cfg.Log.Warnw("auto mark-read failed", "message_id", m.ID, "err", err)
				}
			}
		case realtime.EventUpdate:
			s.cfg.Store.ApplyUpdate(m)
		}
		cancel()
		if s.cfg.Notify != nil {
			s.cfg.Notify(ev.Type, m)
		}
	}
}

// Close tears the active room down: the feed subscription and presence
// channel are both released before Close returns, and the event loop has
// fully drained.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	sub := s.sub
	ch := s.channel
	typing := s.typing
	done := s.done
	s.sub = nil
	s.channel = nil
	s.typing = nil
	s.done = nil
	s.mu.Unlock()

	if typing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		typing.Stop(ctx)
		cancel()
	}
	if sub != nil {
		if err := sub.Close(); err != nil {
			s.cfg.Log.Warnw("feed unsubscribe failed", "err", err)
		}
	}
	if done != nil {
		<-done
	}
	if ch != nil {
		if err := ch.Close(); err != nil {
			s.cfg.Log.Warnw("presence leave failed", "err", err)
		}
	}

	s.mu.Lock()
	s.state = StateIdle
	s.roomID = ""
	s.mu.Unlock()
}
