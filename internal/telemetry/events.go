package telemetry

import "time"

// EventCode identifies an outbound event. Lifecycle codes double as the
// backend's persisted bot statuses; ancillary codes carry roster changes
// and free-text logs.
type EventCode string

const (
	CodeReadyToDeploy EventCode = "READY_TO_DEPLOY"
	CodeDeploying     EventCode = "DEPLOYING"
	CodeJoiningCall   EventCode = "JOINING_CALL"
	CodeInWaitingRoom EventCode = "IN_WAITING_ROOM"
	CodeInCall        EventCode = "IN_CALL"
	CodeCallEnded     EventCode = "CALL_ENDED"
	CodeDone          EventCode = "DONE"
	CodeFatal         EventCode = "FATAL"

	CodeParticipantJoin  EventCode = "PARTICIPANT_JOIN"
	CodeParticipantLeave EventCode = "PARTICIPANT_LEAVE"
	CodeLog              EventCode = "LOG"
)

var statusCodes = map[EventCode]struct{}{
	CodeReadyToDeploy: {},
	CodeDeploying:     {},
	CodeJoiningCall:   {},
	CodeInWaitingRoom: {},
	CodeInCall:        {},
	CodeCallEnded:     {},
	CodeDone:          {},
	CodeFatal:         {},
}

// IsStatus reports whether the code mirrors a persisted lifecycle status.
// Status events trigger the additional status-update call.
func (c EventCode) IsStatus() bool {
	_, ok := statusCodes[c]
	return ok
}

// EventData is the payload attached to an event. Exactly one shape is
// populated per event: a participant identifier, a log message, or a
// failure/status description with optional sub code. Recording rides on
// the terminal DONE event.
type EventData struct {
	Description   string `json:"description,omitempty"`
	SubCode       string `json:"sub_code,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	Message       string `json:"message,omitempty"`
	Recording     string `json:"recording,omitempty"`
}

// Event is an immutable outbound record. Events are created once at the
// triggering transition and never stored beyond the reporting call.
type Event struct {
	Code EventCode  `json:"eventType"`
	Time time.Time  `json:"eventTime"`
	Data *EventData `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(code EventCode, data *EventData) Event {
	return Event{Code: code, Time: time.Now().UTC(), Data: data}
}
