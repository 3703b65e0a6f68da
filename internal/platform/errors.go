package platform

import (
	"errors"
	"fmt"
	"time"
)

// WaitingRoomTimeoutError reports that admission was never granted within
// the configured bound. It is always fatal for the session and is never
// retried, which is why it is distinct from a generic join failure.
type WaitingRoomTimeoutError struct {
	Timeout time.Duration
}

func (e *WaitingRoomTimeoutError) Error() string {
	return fmt.Sprintf("waiting room timeout: admission not granted within %s", e.Timeout)
}

// MeetingJoinError reports an adapter-level join failure other than a
// waiting-room timeout.
type MeetingJoinError struct {
	Reason string
	Err    error
}

func (e *MeetingJoinError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("join meeting: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("join meeting: %s", e.Reason)
}

func (e *MeetingJoinError) Unwrap() error {
	return e.Err
}

// IsWaitingRoomTimeout reports whether err is an admission timeout.
func IsWaitingRoomTimeout(err error) bool {
	var target *WaitingRoomTimeoutError
	return errors.As(err, &target)
}
