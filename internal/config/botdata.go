package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// BotDataEnv is the environment variable carrying the per-session payload.
const BotDataEnv = "BOT_DATA"

// Platform tags accepted in the session payload.
const (
	PlatformGoogle = "google"
	PlatformTeams  = "teams"
	PlatformZoom   = "zoom"
)

// MeetingInfo locates the target meeting. Which fields are required depends
// on the platform: Google uses MeetingURL, Teams uses MeetingID plus tenant
// and organizer identifiers, Zoom uses MeetingID and MeetingPassword.
type MeetingInfo struct {
	MeetingID       string `json:"meetingId,omitempty"`
	MeetingPassword string `json:"meetingPassword,omitempty"`
	MeetingURL      string `json:"meetingUrl,omitempty"`
	OrganizerID     string `json:"organizerId,omitempty"`
	TenantID        string `json:"tenantId,omitempty"`
	Platform        string `json:"platform"`
}

// Threshold pairs a detection timeout with its activation delay. These
// arrive in the payload for silence and other-bot detection but are not
// enforced by the monitoring loop.
type Threshold struct {
	Timeout       int `json:"timeout"`
	ActivateAfter int `json:"activateAfter"`
}

// BotDetection groups the other-bot detection thresholds.
type BotDetection struct {
	UsingParticipantEvents Threshold `json:"usingParticipantEvents"`
	UsingParticipantNames  Threshold `json:"usingParticipantNames"`
}

// AutomaticLeave carries the configured departure thresholds. All values
// are milliseconds, matching the backend's payload contract.
type AutomaticLeave struct {
	SilenceDetection    Threshold    `json:"silenceDetection"`
	BotDetection        BotDetection `json:"botDetection"`
	WaitingRoomTimeout  int          `json:"waitingRoomTimeout"`
	NoOneJoinedTimeout  int          `json:"noOneJoinedTimeout"`
	EveryoneLeftTimeout int          `json:"everyoneLeftTimeout"`
}

// BotData is the per-session payload describing one meeting attendance.
type BotData struct {
	ID                int64          `json:"id"`
	UserID            string         `json:"userId"`
	MeetingInfo       MeetingInfo    `json:"meetingInfo"`
	MeetingTitle      string         `json:"meetingTitle"`
	BotDisplayName    string         `json:"botDisplayName"`
	HeartbeatInterval int            `json:"heartbeatInterval"`
	AutomaticLeave    AutomaticLeave `json:"automaticLeave"`
}

// ParseBotData decodes and validates a session payload.
func ParseBotData(data []byte) (*BotData, error) {
	var bd BotData
	if err := json.Unmarshal(data, &bd); err != nil {
		return nil, fmt.Errorf("parse bot data: %w", err)
	}
	if err := bd.Validate(); err != nil {
		return nil, err
	}
	return &bd, nil
}

// LoadBotData reads the session payload from the environment.
func LoadBotData() (*BotData, error) {
	raw := os.Getenv(BotDataEnv)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("missing required environment variable %s", BotDataEnv)
	}
	return ParseBotData([]byte(raw))
}

// Validate checks payload fields the engine depends on.
func (b *BotData) Validate() error {
	if b.ID == 0 {
		return errors.New("bot data: id is required")
	}
	switch b.MeetingInfo.Platform {
	case PlatformGoogle:
		if strings.TrimSpace(b.MeetingInfo.MeetingURL) == "" {
			return errors.New("bot data: meetingUrl is required for google")
		}
	case PlatformTeams:
		if strings.TrimSpace(b.MeetingInfo.MeetingID) == "" {
			return errors.New("bot data: meetingId is required for teams")
		}
	case PlatformZoom:
		if strings.TrimSpace(b.MeetingInfo.MeetingID) == "" {
			return errors.New("bot data: meetingId is required for zoom")
		}
	case "":
		return errors.New("bot data: platform is required")
	default:
		return fmt.Errorf("bot data: unsupported platform %q", b.MeetingInfo.Platform)
	}
	if b.AutomaticLeave.WaitingRoomTimeout <= 0 {
		return errors.New("bot data: automaticLeave.waitingRoomTimeout must be positive")
	}
	if b.AutomaticLeave.EveryoneLeftTimeout <= 0 {
		return errors.New("bot data: automaticLeave.everyoneLeftTimeout must be positive")
	}
	return nil
}

// DisplayName returns the configured name or the stock fallback.
func (b *BotData) DisplayName() string {
	if name := strings.TrimSpace(b.BotDisplayName); name != "" {
		return name
	}
	return "MeetingBot"
}

// WaitingRoomTimeoutDuration returns the admission wait bound as a duration.
func (a AutomaticLeave) WaitingRoomTimeoutDuration() time.Duration {
	return time.Duration(a.WaitingRoomTimeout) * time.Millisecond
}

// NoOneJoinedTimeoutDuration returns the empty-meeting join bound, falling
// back to 30s when the payload omits it.
func (a AutomaticLeave) NoOneJoinedTimeoutDuration() time.Duration {
	if a.NoOneJoinedTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.NoOneJoinedTimeout) * time.Millisecond
}

// EveryoneLeftTimeoutDuration returns the alone-in-call bound as a duration.
func (a AutomaticLeave) EveryoneLeftTimeoutDuration() time.Duration {
	return time.Duration(a.EveryoneLeftTimeout) * time.Millisecond
}
