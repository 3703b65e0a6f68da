package session

import (
	"context"
	"time"

	"meetingbot/internal/logging"
	"meetingbot/internal/platform"
	"meetingbot/internal/telemetry"
)

// Execute runs the session from join through departure. Any error raised
// during joining or the monitoring loop is caught here, triggers an
// unconditional best-effort teardown, and surfaces as a FATAL transition
// carrying the error's description; it is never re-raised past this call
// beyond the returned value the launcher uses for its exit code.
func (s *Session) Execute(ctx context.Context) error {
	if err := s.run(ctx); err != nil {
		s.fail(ctx, err)
		return err
	}
	return nil
}

// Finish performs the terminal DONE transition once the recording handoff
// has completed. key may be empty when no usable recording exists; the
// session still terminates cleanly.
func (s *Session) Finish(ctx context.Context, key string) {
	var data *telemetry.EventData
	if key != "" {
		data = &telemetry.EventData{Recording: key}
	}
	s.transition(ctx, StateDone, data)
}

// Abort performs the terminal FATAL transition for failures raised after
// the engine has already left the call, such as a recording handoff
// error. The backend always observes a terminal event, even when the
// attendance itself succeeded.
func (s *Session) Abort(ctx context.Context, cause error) {
	s.logger.Error("session aborted", logging.Error(cause))
	s.transition(ctx, StateFatal, &telemetry.EventData{Description: cause.Error()})
}

func (s *Session) run(ctx context.Context) error {
	if err := s.join(ctx); err != nil {
		return err
	}
	if err := s.runInCall(ctx); err != nil {
		return err
	}
	s.leave(ctx)
	return nil
}

// join drives the adapter's admission flow. The adapter signals a
// pre-admission hold through the waiting callback, which is the engine's
// only source of the WAITING_ROOM state.
func (s *Session) join(ctx context.Context) error {
	s.transition(ctx, StateJoining, nil)

	err := s.adapter.JoinMeeting(ctx, func() {
		s.transition(ctx, StateWaitingRoom, nil)
	})
	if err != nil {
		return err
	}

	s.transition(ctx, StateInCall, nil)
	return nil
}

// runInCall starts the recording pipeline, attaches the roster observer,
// and polls until a leave condition holds. Kicked detection exits the
// loop without a UI-driven leave; the policy exit leaves normally.
func (s *Session) runInCall(ctx context.Context) error {
	if err := s.recorder.Start(ctx); err != nil {
		// A dead encoder costs the artifact, not the attendance.
		s.logger.Warn("recording failed to start", logging.Error(err))
	}

	initial, err := s.adapter.ObserveRoster(ctx, s.monitor.Sink())
	if err != nil {
		return err
	}

	// Seed before consuming so deltas published during attach buffer in
	// the channel and fold in on top of the snapshot instead of being
	// overwritten by it.
	s.monitor.Seed(initial)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go s.monitor.Run(monitorCtx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if s.adapter.CheckKicked(ctx) {
			s.wasRemoved = true
			s.logger.Info("removed from meeting")
			break poll
		}

		count, aloneSince := s.monitor.Snapshot()
		if s.policy.ShouldLeave(count, aloneSince, s.now()) {
			s.logger.Info("alone past threshold, leaving",
				logging.Int("participants", count),
				logging.Time("alone_since", aloneSince),
			)
			break poll
		}
	}

	s.transition(ctx, StateLeaving, nil)
	return nil
}

// leave stops the recording first so the file is finalized, then performs
// the UI leave unless the meeting already removed us, and always releases
// the browser.
func (s *Session) leave(ctx context.Context) {
	result := s.recorder.Stop(ctx)
	if result.Stopped && !result.OK {
		s.logger.Warn("encoder finished with errors", logging.String("detail", result.Detail))
	}

	if !s.wasRemoved {
		if err := s.adapter.LeaveMeeting(ctx); err != nil {
			s.logger.Info("leave click failed, probably already out", logging.Error(err))
		}
	}

	if err := s.adapter.Close(ctx); err != nil {
		s.logger.Warn("browser teardown failed", logging.Error(err))
	}
}

// fail releases every held resource and records the failure. Errors during
// teardown are logged and otherwise ignored; the FATAL transition must
// happen regardless.
func (s *Session) fail(ctx context.Context, cause error) {
	s.logger.Error("session failed", logging.Error(cause))

	if path := s.screenshotPath(); path != "" {
		if err := s.adapter.Screenshot(ctx, path); err != nil {
			s.logger.Debug("failure screenshot unavailable", logging.Error(err))
		}
	}

	if s.recorder.Active() {
		s.recorder.Stop(ctx)
	}
	if err := s.adapter.Close(ctx); err != nil {
		s.logger.Warn("browser teardown failed", logging.Error(err))
	}

	data := &telemetry.EventData{Description: cause.Error()}
	if platform.IsWaitingRoomTimeout(cause) {
		data.SubCode = "WAITING_ROOM_TIMEOUT"
	}
	s.transition(ctx, StateFatal, data)
}
