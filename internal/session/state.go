package session

import "meetingbot/internal/telemetry"

// State is one step of the session lifecycle. Transitions only ever move
// forward along INIT -> JOINING -> (WAITING_ROOM) -> IN_CALL -> LEAVING ->
// DONE, with FATAL reachable from any non-terminal state.
type State string

const (
	StateInit        State = "INIT"
	StateJoining     State = "JOINING"
	StateWaitingRoom State = "WAITING_ROOM"
	StateInCall      State = "IN_CALL"
	StateLeaving     State = "LEAVING"
	StateDone        State = "DONE"
	StateFatal       State = "FATAL"
)

var stateOrder = map[State]int{
	StateInit:        0,
	StateJoining:     1,
	StateWaitingRoom: 2,
	StateInCall:      3,
	StateLeaving:     4,
	StateDone:        5,
	StateFatal:       6,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFatal
}

// canAdvanceTo enforces monotonic forward movement. DONE is only reachable
// through LEAVING; FATAL is reachable from anywhere that is not already
// terminal.
func (s State) canAdvanceTo(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFatal {
		return true
	}
	if next == StateDone {
		return s == StateLeaving
	}
	return stateOrder[next] > stateOrder[s]
}

// statusEvent maps lifecycle states to their mirrored telemetry codes.
// INIT has no outward mirror; the launcher reports READY_TO_DEPLOY before
// the engine runs.
var statusEvent = map[State]telemetry.EventCode{
	StateJoining:     telemetry.CodeJoiningCall,
	StateWaitingRoom: telemetry.CodeInWaitingRoom,
	StateInCall:      telemetry.CodeInCall,
	StateLeaving:     telemetry.CodeCallEnded,
	StateDone:        telemetry.CodeDone,
	StateFatal:       telemetry.CodeFatal,
}
