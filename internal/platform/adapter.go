// Package platform implements the meeting adapters. Each variant drives
// one conferencing front end through the browser page driver and exposes
// the same capability set to the session engine; the engine never branches
// on platform identity. Adding a platform means implementing Adapter and
// registering it in the factory, nothing else.
package platform

import (
	"context"

	"meetingbot/internal/roster"
)

// Adapter is the capability set every platform variant satisfies.
type Adapter interface {
	// JoinMeeting navigates into the meeting and waits for admission. The
	// waiting callback fires when the adapter detects it is holding in a
	// pre-admission queue, so the engine can surface the waiting-room
	// state. Failure is a *WaitingRoomTimeoutError when admission never
	// arrived in time, otherwise a *MeetingJoinError.
	JoinMeeting(ctx context.Context, waiting func()) error

	// ObserveRoster attaches the participant observer and returns the
	// roster count at attach time. Subsequent changes are produced into
	// sink for the session's lifetime.
	ObserveRoster(ctx context.Context, sink chan<- roster.Delta) (int, error)

	// CheckKicked reports whether the bot has been removed from the
	// meeting. It is cheap, safe to call repeatedly, and treats ambiguous
	// UI states as "not kicked"; only an explicit removal marker is
	// authoritative.
	CheckKicked(ctx context.Context) bool

	// LeaveMeeting performs the platform's leave action. Already being
	// out of the meeting is not an error; callers tolerate any failure.
	LeaveMeeting(ctx context.Context) error

	// RecordingPath is the fixed output path the encoder writes to.
	RecordingPath() string

	// ContentType is the recording's declared content type.
	ContentType() string

	// Screenshot captures the page for diagnostics, best-effort.
	Screenshot(ctx context.Context, path string) error

	// Close releases the underlying browser resources.
	Close(ctx context.Context) error
}
