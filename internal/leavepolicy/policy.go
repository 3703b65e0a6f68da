// Package leavepolicy decides when a bot should leave a meeting on its
// own. Evaluation is pure: all mutable state lives with the session engine
// and the roster monitor.
package leavepolicy

import (
	"time"

	"meetingbot/internal/config"
)

// Policy holds the configured departure thresholds for one session.
// SilenceDetection and BotDetection are accepted from the payload but have
// no enforcement point in the monitoring loop.
type Policy struct {
	WaitingRoomTimeout  time.Duration
	NoOneJoinedTimeout  time.Duration
	EveryoneLeftTimeout time.Duration

	SilenceDetection config.Threshold
	BotDetection     config.BotDetection
}

// FromConfig converts the payload's millisecond thresholds into a Policy.
func FromConfig(a config.AutomaticLeave) Policy {
	return Policy{
		WaitingRoomTimeout:  a.WaitingRoomTimeoutDuration(),
		NoOneJoinedTimeout:  a.NoOneJoinedTimeoutDuration(),
		EveryoneLeftTimeout: a.EveryoneLeftTimeoutDuration(),
		SilenceDetection:    a.SilenceDetection,
		BotDetection:        a.BotDetection,
	}
}

// ShouldLeave reports whether the bot has been alone in the call longer
// than the everyone-left threshold. aloneSince's zero value means the bot
// is not currently alone.
func (p Policy) ShouldLeave(participantCount int, aloneSince time.Time, now time.Time) bool {
	if participantCount != 1 {
		return false
	}
	if aloneSince.IsZero() {
		return false
	}
	return now.Sub(aloneSince) > p.EveryoneLeftTimeout
}
