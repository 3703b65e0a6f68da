// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"meetingbot/internal/config"
)

// NewConfig produces an operational config seeded with unique temp
// directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Session.WorkDir = filepath.Join(base, "work")
	cfg.Log.Dir = filepath.Join(base, "logs")
	cfg.Journal.Path = filepath.Join(base, "journal.db")
	cfg.Telemetry.BackendURL = "http://127.0.0.1:0/api/trpc"
	return &cfg
}

// NewBotData produces a valid session payload for the given platform.
func NewBotData(t testing.TB, platform string) *config.BotData {
	t.Helper()

	bd := &config.BotData{
		ID:             42,
		UserID:         "user-1",
		MeetingTitle:   "Weekly Sync",
		BotDisplayName: "Notetaker",
		MeetingInfo: config.MeetingInfo{
			Platform:        platform,
			MeetingURL:      "https://meet.google.com/abc-defg-hij",
			MeetingID:       "meeting-1",
			MeetingPassword: "pw",
			TenantID:        "tenant-1",
			OrganizerID:     "organizer-1",
		},
		HeartbeatInterval: 5000,
		AutomaticLeave: config.AutomaticLeave{
			WaitingRoomTimeout:  60_000,
			NoOneJoinedTimeout:  30_000,
			EveryoneLeftTimeout: 30_000,
		},
	}
	return bd
}
