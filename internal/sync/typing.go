package sync

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/presence"
)

// TypingSignaler debounces keystroke input into typing transitions on a
// room's presence channel. A burst of keystrokes yields exactly one
// typing=true; emptying the input, or going idle, yields exactly one
// typing=false. Nothing is persisted.
type TypingSignaler struct {
	mu     sync.Mutex
	ch     presence.Channel
	self   string
	idle   time.Duration
	log    *zap.SugaredLogger
	typing bool
	timer  *time.Timer
}

func NewTypingSignaler(ch presence.Channel, self string, idle time.Duration, log *zap.SugaredLogger) *TypingSignaler {
	return &TypingSignaler{ch: ch, self: self, idle: idle, log: log}
}

// SetInput reports the current content of the compose box. Transitions are
// published only when the typing state actually flips.
func (t *TypingSignaler) SetInput(ctx context.Context, text string) {
	empty := strings.TrimSpace(text) == ""

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case !empty && !t.typing:
		t.typing = true
		t.track(ctx, true)
		t.resetTimerLocked()
	case !empty && t.typing:
		// still typing; just push the idle deadline out
		t.resetTimerLocked()
	case empty && t.typing:
		t.typing = false
		t.stopTimerLocked()
		t.track(ctx, false)
	}
}

// Stop clears any pending idle timer and publishes a final stopped state.
func (t *TypingSignaler) Stop(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	if t.typing {
		t.typing = false
		t.track(ctx, false)
	}
}

// Peers returns the identities currently typing on the channel, excluding
// self, from the latest presence snapshot.
func (t *TypingSignaler) Peers(ctx context.Context) ([]string, error) {
	snap, err := t.ch.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for id, state := range snap {
		if id == t.self {
			continue
		}
		if typing, ok := state["typing"].(bool); ok && typing {
			out = append(out, id)
		}
	}
	return out, nil
}

func (t *TypingSignaler) track(ctx context.Context, typing bool) {
	// typing is advisory; a lost transition degrades the peer view only
	if err := t.ch.Track(ctx, presence.State{"typing": typing}); err != nil {
		t.log.Warnw("typing state publish failed", "typing", typing, "err", err)
	}
}

func (t *TypingSignaler) resetTimerLocked() {
	if t.idle <= 0 {
		return
	}
	t.stopTimerLocked()
	t.timer = time.AfterFunc(t.idle, t.idleExpired)
}

func (t *TypingSignaler) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TypingSignaler) idleExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.typing {
		return
	}
	t.typing = false
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	t.track(ctx, false)
}
