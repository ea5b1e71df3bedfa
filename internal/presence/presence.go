package presence

import "context"

// The presence broker is the ephemeral channel primitive: each participant
// tracks a small state blob under its own key, and any participant can read
// a snapshot of everyone's state. Nothing here is durable; state dies with
// the channel (or its TTL).

type State map[string]any

type Channel interface {
	// Track publishes this participant's state on the channel, replacing
	// any previous state under the same key.
	Track(ctx context.Context, state State) error
	// Untrack removes this participant's state.
	Untrack(ctx context.Context) error
	// Snapshot returns the latest known state of every participant,
	// keyed by participant id, including self.
	Snapshot(ctx context.Context) (map[string]State, error)
	// Close untracks and releases the channel.
	Close() error
}

type Broker interface {
	Join(ctx context.Context, channel, self string) (Channel, error)
}
