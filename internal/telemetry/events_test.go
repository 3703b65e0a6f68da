package telemetry_test

import (
	"encoding/json"
	"testing"

	"meetingbot/internal/telemetry"
)

func TestIsStatus(t *testing.T) {
	for _, code := range []telemetry.EventCode{
		telemetry.CodeReadyToDeploy,
		telemetry.CodeJoiningCall,
		telemetry.CodeInWaitingRoom,
		telemetry.CodeInCall,
		telemetry.CodeCallEnded,
		telemetry.CodeDone,
		telemetry.CodeFatal,
	} {
		if !code.IsStatus() {
			t.Errorf("%s should be a status code", code)
		}
	}
	for _, code := range []telemetry.EventCode{
		telemetry.CodeParticipantJoin,
		telemetry.CodeParticipantLeave,
		telemetry.CodeLog,
	} {
		if code.IsStatus() {
			t.Errorf("%s should not be a status code", code)
		}
	}
}

func TestEventDataOmitsEmptyFields(t *testing.T) {
	event := telemetry.NewEvent(telemetry.CodeFatal, &telemetry.EventData{Description: "boom"})
	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	data, ok := decoded["data"].(map[string]any)
	if !ok {
		t.Fatalf("data missing: %s", encoded)
	}
	if len(data) != 1 {
		t.Fatalf("empty fields should be omitted, got %v", data)
	}
	if decoded["eventType"] != "FATAL" {
		t.Fatalf("eventType = %v", decoded["eventType"])
	}
}
