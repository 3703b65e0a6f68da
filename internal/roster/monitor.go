// Package roster maintains the participant count for a live meeting. It
// bridges push-style notifications from the controlled browser surface
// into two counter operations and tracks how long the bot has been the
// only attendee.
package roster

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meetingbot/internal/logging"
)

// Change identifies the direction of a roster delta.
type Change int

const (
	Joined Change = iota
	Left
)

// Delta is one roster mutation observed in the meeting UI.
type Delta struct {
	Change        Change
	ParticipantID string
}

// Monitor consumes roster deltas and maintains the presence count plus the
// alone-since timestamp. Deltas arrive on a bounded channel with a single
// producer (the browser bridge) and a single consumer (Run).
type Monitor struct {
	logger  *slog.Logger
	deltas  chan Delta
	onDelta func(Delta)
	now     func() time.Time

	mu         sync.Mutex
	count      int
	aloneSince time.Time
}

// Option configures optional Monitor behavior.
type Option func(*Monitor)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDeltaCallback registers a callback invoked for every applied delta,
// after the counter update. Used to forward participant events outward.
func WithDeltaCallback(fn func(Delta)) Option {
	return func(m *Monitor) {
		m.onDelta = fn
	}
}

// NewMonitor constructs a monitor with a delta channel of the given
// capacity.
func NewMonitor(buffer int, logger *slog.Logger, opts ...Option) *Monitor {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Monitor{
		logger: logger.With(logging.String(logging.FieldComponent, "roster")),
		deltas: make(chan Delta, buffer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sink returns the channel the browser bridge produces into.
func (m *Monitor) Sink() chan<- Delta {
	return m.deltas
}

// Seed initializes the count from the roster snapshot observed when the
// observer attached. Alone-since tracking starts from this value.
func (m *Monitor) Seed(count int) {
	if count < 0 {
		count = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = count
	m.refreshAloneLocked()
	m.logger.Info("roster seeded", logging.Int("count", count))
}

// Run consumes deltas until the context is cancelled. It is the only
// writer of the counter besides Seed.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delta := <-m.deltas:
			m.Apply(delta)
		}
	}
}

// Apply folds one delta into the counter.
func (m *Monitor) Apply(delta Delta) {
	m.mu.Lock()
	switch delta.Change {
	case Joined:
		m.count++
	case Left:
		if m.count > 0 {
			m.count--
		}
	}
	m.refreshAloneLocked()
	count := m.count
	m.mu.Unlock()

	m.logger.Debug("roster updated",
		logging.Int("count", count),
		logging.String("participant", delta.ParticipantID),
	)
	if m.onDelta != nil {
		m.onDelta(delta)
	}
}

// Snapshot returns the current count and the alone-since timestamp. The
// timestamp is zero when the bot is not alone.
func (m *Monitor) Snapshot() (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, m.aloneSince
}

// Transitioning to exactly one attendee starts the alone clock; leaving
// that state clears it.
func (m *Monitor) refreshAloneLocked() {
	if m.count == 1 {
		if m.aloneSince.IsZero() {
			m.aloneSince = m.now()
		}
		return
	}
	m.aloneSince = time.Time{}
}
