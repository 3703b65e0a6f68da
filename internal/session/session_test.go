package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"meetingbot/internal/config"
	"meetingbot/internal/platform"
	"meetingbot/internal/recording"
	"meetingbot/internal/roster"
	"meetingbot/internal/session"
	"meetingbot/internal/telemetry"
	"meetingbot/internal/testsupport"
)

type captureReporter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureReporter) ReportEvent(_ context.Context, event telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureReporter) Heartbeat(context.Context) error { return nil }

func (c *captureReporter) codes() []telemetry.EventCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := make([]telemetry.EventCode, 0, len(c.events))
	for _, event := range c.events {
		codes = append(codes, event.Code)
	}
	return codes
}

func (c *captureReporter) last() telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	starts   int
	stops    int
	active   bool
}

func (f *fakeRecorder) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeRecorder) Stop(context.Context) recording.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	wasActive := f.active
	f.active = false
	return recording.Result{Stopped: wasActive, OK: true}
}

func (f *fakeRecorder) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type fakeAdapter struct {
	mu sync.Mutex

	joinErr        error
	signalsWaiting bool

	observeInitial int
	observeErr     error
	observeDeltas  []roster.Delta

	kickedAfter int
	kickedCalls int
	kickedFn    func() bool

	leaves      int
	closes      int
	screenshots []string
}

func (f *fakeAdapter) JoinMeeting(_ context.Context, waiting func()) error {
	if f.signalsWaiting && waiting != nil {
		waiting()
	}
	return f.joinErr
}

func (f *fakeAdapter) ObserveRoster(_ context.Context, sink chan<- roster.Delta) (int, error) {
	if f.observeErr != nil {
		return 0, f.observeErr
	}
	for _, delta := range f.observeDeltas {
		sink <- delta
	}
	return f.observeInitial, nil
}

func (f *fakeAdapter) CheckKicked(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kickedCalls++
	if f.kickedFn != nil {
		return f.kickedFn()
	}
	return f.kickedAfter > 0 && f.kickedCalls >= f.kickedAfter
}

func (f *fakeAdapter) LeaveMeeting(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeAdapter) RecordingPath() string { return "/tmp/meetingbot/recording.mp4" }

func (f *fakeAdapter) ContentType() string { return "video/mp4" }

func (f *fakeAdapter) Screenshot(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshots = append(f.screenshots, path)
	return nil
}

func (f *fakeAdapter) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeAdapter) counts() (leaves, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves, f.closes
}

// stepClock advances a fixed amount per reading, making the alone
// threshold deterministic without sleeping.
type stepClock struct {
	mu   sync.Mutex
	at   time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(c.step)
	return c.at
}

func newTestSession(t *testing.T, adapter *fakeAdapter, recorder *fakeRecorder, reporter *captureReporter, opts ...session.Option) *session.Session {
	t.Helper()
	base := []session.Option{
		session.WithPollInterval(time.Millisecond),
		session.WithClock((&stepClock{
			at:   time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC),
			step: 20 * time.Second,
		}).Now),
	}
	botData := testsupport.NewBotData(t, config.PlatformGoogle)
	return session.New(botData, adapter, recorder, reporter, nil, nil, append(base, opts...)...)
}

func TestExecuteLeavesWhenAlonePastThreshold(t *testing.T) {
	adapter := &fakeAdapter{observeInitial: 1}
	recorder := &fakeRecorder{}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, recorder, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	want := []telemetry.EventCode{
		telemetry.CodeJoiningCall,
		telemetry.CodeInCall,
		telemetry.CodeCallEnded,
	}
	got := reporter.codes()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	leaves, closes := adapter.counts()
	if leaves != 1 {
		t.Fatalf("LeaveMeeting called %d times, want 1", leaves)
	}
	if closes != 1 {
		t.Fatalf("Close called %d times, want 1", closes)
	}
	if recorder.starts != 1 || recorder.stops != 1 {
		t.Fatalf("recorder starts=%d stops=%d, want 1/1", recorder.starts, recorder.stops)
	}
	if sess.WasRemoved() {
		t.Fatal("a self-initiated leave must not read as removal")
	}
}

func TestFinishEmitsDoneWithRecordingKey(t *testing.T) {
	adapter := &fakeAdapter{observeInitial: 1}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	sess.Finish(context.Background(), "recordings/abc-google-recording.mp4")

	if sess.State() != session.StateDone {
		t.Fatalf("state = %s, want DONE", sess.State())
	}
	done := reporter.last()
	if done.Code != telemetry.CodeDone {
		t.Fatalf("last event = %s, want DONE", done.Code)
	}
	if done.Data == nil || done.Data.Recording != "recordings/abc-google-recording.mp4" {
		t.Fatalf("DONE event data = %+v, want recording key", done.Data)
	}
}

func TestFinishWithoutKeyOmitsData(t *testing.T) {
	adapter := &fakeAdapter{observeInitial: 1}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	sess.Finish(context.Background(), "")

	done := reporter.last()
	if done.Code != telemetry.CodeDone || done.Data != nil {
		t.Fatalf("DONE event = %+v, want no data", done)
	}
}

func TestExecuteKickedSkipsLeaveClick(t *testing.T) {
	adapter := &fakeAdapter{observeInitial: 2, kickedAfter: 2}
	recorder := &fakeRecorder{}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, recorder, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !sess.WasRemoved() {
		t.Fatal("removal must be recorded")
	}

	leaves, closes := adapter.counts()
	if leaves != 0 {
		t.Fatalf("LeaveMeeting called %d times after removal, want 0", leaves)
	}
	if closes != 1 {
		t.Fatalf("Close called %d times, want 1", closes)
	}
	if recorder.stops != 1 {
		t.Fatalf("recorder stops = %d, want 1", recorder.stops)
	}

	got := reporter.codes()
	if got[len(got)-1] != telemetry.CodeCallEnded {
		t.Fatalf("events = %v, want CALL_ENDED terminal transition", got)
	}
}

func TestExecuteWaitingRoomTimeoutIsFatal(t *testing.T) {
	adapter := &fakeAdapter{
		signalsWaiting: true,
		joinErr:        &platform.WaitingRoomTimeoutError{Timeout: time.Minute},
	}
	recorder := &fakeRecorder{}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, recorder, reporter)

	err := sess.Execute(context.Background())
	if !platform.IsWaitingRoomTimeout(err) {
		t.Fatalf("Execute error = %v, want waiting-room timeout", err)
	}
	if sess.State() != session.StateFatal {
		t.Fatalf("state = %s, want FATAL", sess.State())
	}

	want := []telemetry.EventCode{
		telemetry.CodeJoiningCall,
		telemetry.CodeInWaitingRoom,
		telemetry.CodeFatal,
	}
	got := reporter.codes()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	fatal := reporter.last()
	if fatal.Data == nil || fatal.Data.SubCode != "WAITING_ROOM_TIMEOUT" {
		t.Fatalf("FATAL data = %+v, want WAITING_ROOM_TIMEOUT sub code", fatal.Data)
	}

	if recorder.starts != 0 {
		t.Fatal("recording must not start before admission")
	}
	_, closes := adapter.counts()
	if closes != 1 {
		t.Fatalf("Close called %d times, want 1", closes)
	}
}

func TestExecuteJoinFailureIsFatalWithoutSubCode(t *testing.T) {
	adapter := &fakeAdapter{
		joinErr: &platform.MeetingJoinError{Reason: "navigate", Err: errors.New("dns")},
	}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err == nil {
		t.Fatal("expected join failure to surface")
	}
	fatal := reporter.last()
	if fatal.Code != telemetry.CodeFatal {
		t.Fatalf("last event = %s, want FATAL", fatal.Code)
	}
	if fatal.Data == nil || fatal.Data.SubCode != "" {
		t.Fatalf("FATAL data = %+v, want no sub code", fatal.Data)
	}
}

func TestExecuteObserveRosterFailureIsFatal(t *testing.T) {
	adapter := &fakeAdapter{observeErr: errors.New("people panel missing")}
	recorder := &fakeRecorder{}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, recorder, reporter)

	if err := sess.Execute(context.Background()); err == nil {
		t.Fatal("expected roster attach failure to surface")
	}
	if sess.State() != session.StateFatal {
		t.Fatalf("state = %s, want FATAL", sess.State())
	}
	// The recorder had started by then and must be reaped.
	if recorder.starts != 1 || recorder.stops != 1 {
		t.Fatalf("recorder starts=%d stops=%d, want 1/1", recorder.starts, recorder.stops)
	}
}

func TestExecuteRecorderStartFailureIsNotFatal(t *testing.T) {
	adapter := &fakeAdapter{observeInitial: 1}
	recorder := &fakeRecorder{startErr: errors.New("ffmpeg missing")}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, recorder, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("a dead encoder must not fail the session, got %v", err)
	}
	got := reporter.codes()
	if got[len(got)-1] != telemetry.CodeCallEnded {
		t.Fatalf("events = %v, want normal departure", got)
	}
}

func TestFatalScreenshotCapturedWhenConfigured(t *testing.T) {
	adapter := &fakeAdapter{joinErr: errors.New("browser crashed")}
	sess := newTestSession(t, adapter, &fakeRecorder{}, &captureReporter{},
		session.WithScreenshotDir(t.TempDir()))

	if err := sess.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if len(adapter.screenshots) != 1 {
		t.Fatalf("captured %d screenshots, want 1", len(adapter.screenshots))
	}
}

func TestFinishAfterFatalIsRefused(t *testing.T) {
	adapter := &fakeAdapter{joinErr: errors.New("browser crashed")}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	sess.Finish(context.Background(), "recordings/key.mp4")

	if sess.State() != session.StateFatal {
		t.Fatalf("state = %s, FATAL must be terminal", sess.State())
	}
	for _, code := range reporter.codes() {
		if code == telemetry.CodeDone {
			t.Fatal("DONE must not be emitted after FATAL")
		}
	}
}

func TestRosterDeltasEmitParticipantEvents(t *testing.T) {
	reporter := &captureReporter{}
	adapter := &fakeAdapter{
		// Two attendees besides the join/leave churn, so the alone policy
		// never fires and the exit waits on the deltas being observed.
		observeInitial: 2,
		observeDeltas: []roster.Delta{
			{Change: roster.Joined, ParticipantID: "alice"},
			{Change: roster.Left, ParticipantID: "alice"},
		},
	}
	adapter.kickedFn = func() bool {
		participants := 0
		for _, code := range reporter.codes() {
			if code == telemetry.CodeParticipantJoin || code == telemetry.CodeParticipantLeave {
				participants++
			}
		}
		return participants >= 2
	}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	joins, leaves := 0, 0
	for _, event := range reporter.codes() {
		switch event {
		case telemetry.CodeParticipantJoin:
			joins++
		case telemetry.CodeParticipantLeave:
			leaves++
		}
	}
	if joins != 1 || leaves != 1 {
		t.Fatalf("participant events joins=%d leaves=%d, want 1/1", joins, leaves)
	}
}

func TestDeltasDuringAttachFoldIntoSeed(t *testing.T) {
	// A departure published while the observer attaches must survive the
	// snapshot seed; the exit below only fires if the count drops to one.
	adapter := &fakeAdapter{
		observeInitial: 2,
		observeDeltas:  []roster.Delta{{Change: roster.Left, ParticipantID: "alice"}},
	}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	codes := reporter.codes()
	if codes[len(codes)-1] != telemetry.CodeCallEnded {
		t.Fatalf("events = %v, want trailing CALL_ENDED", codes)
	}
	sawLeave := false
	for _, code := range codes {
		if code == telemetry.CodeParticipantLeave {
			sawLeave = true
		}
	}
	if !sawLeave {
		t.Fatalf("events = %v, want a PARTICIPANT_LEAVE before the exit", codes)
	}
}

func TestAbortAfterLeaveEmitsFatal(t *testing.T) {
	adapter := &fakeAdapter{observeInitial: 1}
	reporter := &captureReporter{}
	sess := newTestSession(t, adapter, &fakeRecorder{}, reporter)

	if err := sess.Execute(context.Background()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	sess.Abort(context.Background(), errors.New("upload recording: recording file missing"))

	if sess.State() != session.StateFatal {
		t.Fatalf("state = %s, want FATAL", sess.State())
	}
	last := reporter.last()
	if last.Code != telemetry.CodeFatal {
		t.Fatalf("last event = %s, want FATAL", last.Code)
	}
	if last.Data == nil || last.Data.Description != "upload recording: recording file missing" {
		t.Fatalf("FATAL data = %+v, want the upload error description", last.Data)
	}

	sess.Finish(context.Background(), "recordings/key.mp4")
	if reporter.last().Code == telemetry.CodeDone {
		t.Fatal("DONE must not follow a terminal FATAL")
	}
}
