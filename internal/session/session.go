// Package session implements the bot session engine: the state machine
// that sequences adapter calls, drives the recording pipeline, runs the
// monitoring loop, and applies the automatic-leave policy. One Session
// owns one meeting attendance from join through departure.
package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"meetingbot/internal/config"
	"meetingbot/internal/journal"
	"meetingbot/internal/leavepolicy"
	"meetingbot/internal/logging"
	"meetingbot/internal/platform"
	"meetingbot/internal/recording"
	"meetingbot/internal/roster"
	"meetingbot/internal/telemetry"
)

// Recorder is the slice of the recording pipeline the engine drives.
// *recording.Recorder satisfies it; tests substitute fakes.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) recording.Result
	Active() bool
}

// Session is the engine for one meeting attendance. It exclusively owns
// the adapter's browser resources and the recorder's subprocess for its
// whole lifetime; neither is shared or pooled.
type Session struct {
	settings *config.BotData
	adapter  platform.Adapter
	recorder Recorder
	policy   leavepolicy.Policy
	reporter telemetry.Reporter
	journal  *journal.Store
	logger   *slog.Logger
	monitor  *roster.Monitor

	pollInterval  time.Duration
	now           func() time.Time
	screenshotDir string

	state      State
	wasRemoved bool
}

// Option configures optional Session behavior.
type Option func(*Session)

// WithPollInterval overrides the monitoring loop cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Session) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScreenshotDir enables a best-effort page capture on fatal errors.
func WithScreenshotDir(dir string) Option {
	return func(s *Session) {
		s.screenshotDir = dir
	}
}

// New constructs a session in INIT.
func New(
	settings *config.BotData,
	adapter platform.Adapter,
	recorder Recorder,
	reporter telemetry.Reporter,
	store *journal.Store,
	logger *slog.Logger,
	opts ...Option,
) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Session{
		settings:     settings,
		adapter:      adapter,
		recorder:     recorder,
		policy:       leavepolicy.FromConfig(settings.AutomaticLeave),
		reporter:     reporter,
		journal:      store,
		logger: logger.With(
			logging.Int64(logging.FieldBotID, settings.ID),
			logging.String(logging.FieldPlatform, settings.MeetingInfo.Platform),
		),
		pollInterval: 5 * time.Second,
		now:          time.Now,
		state:        StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.monitor = roster.NewMonitor(64, s.logger,
		roster.WithClock(s.now),
		roster.WithDeltaCallback(s.reportRosterDelta),
	)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// WasRemoved reports whether the bot was kicked rather than leaving on
// its own.
func (s *Session) WasRemoved() bool {
	return s.wasRemoved
}

// transition advances the state machine and emits exactly one mirrored
// event per lifecycle transition, in transition order.
func (s *Session) transition(ctx context.Context, next State, data *telemetry.EventData) {
	if !s.state.canAdvanceTo(next) {
		s.logger.Error("refusing backward state transition",
			logging.String("from", string(s.state)),
			logging.String("to", string(next)),
		)
		return
	}
	s.state = next
	s.logger.Info("state transition", logging.String(logging.FieldState, string(next)))

	code, ok := statusEvent[next]
	if !ok {
		return
	}
	s.emit(ctx, telemetry.NewEvent(code, data))
}

// emit forwards one event to telemetry and the local journal, preserving
// emission order.
func (s *Session) emit(ctx context.Context, event telemetry.Event) {
	s.reporter.ReportEvent(ctx, event)
	if err := s.journal.Append(ctx, s.settings.ID, event); err != nil {
		s.logger.Warn("journal append failed", logging.Error(err))
	}
}

func (s *Session) reportRosterDelta(delta roster.Delta) {
	code := telemetry.CodeParticipantJoin
	if delta.Change == roster.Left {
		code = telemetry.CodeParticipantLeave
	}
	s.emit(context.Background(), telemetry.NewEvent(code, &telemetry.EventData{
		ParticipantID: delta.ParticipantID,
	}))
}

func (s *Session) screenshotPath() string {
	if s.screenshotDir == "" {
		return ""
	}
	return filepath.Join(s.screenshotDir, "failure.png")
}
