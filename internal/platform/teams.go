package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"meetingbot/internal/browser"
	"meetingbot/internal/config"
	"meetingbot/internal/logging"
	"meetingbot/internal/roster"
)

// Teams surface markers.
const (
	teamsNameField   = `[data-tid="prejoin-display-name-input"]`
	teamsMuteToggle  = `[data-tid="toggle-mute"]`
	teamsJoinButton  = `[data-tid="prejoin-join-button"]`
	teamsLeaveButton = `button[aria-label^="Leave ("]`
	teamsPeople      = `[aria-label="People"]`
	teamsRosterTree  = `[role="tree"]`
)

const teamsRosterPollInterval = 5 * time.Second

type teamsAdapter struct {
	settings     *config.BotData
	page         browser.Page
	recordingDir string
	logger       *slog.Logger

	pollInterval time.Duration
	stopPoll     context.CancelFunc
}

func newTeamsAdapter(settings *config.BotData, page browser.Page, recordingDir string, logger *slog.Logger) *teamsAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &teamsAdapter{
		settings:     settings,
		page:         page,
		recordingDir: recordingDir,
		logger:       logger.With(logging.String(logging.FieldPlatform, config.PlatformTeams)),
		pollInterval: teamsRosterPollInterval,
	}
}

// meetingURL builds the anonymous deep-link join URL from the payload's
// meeting coordinates.
func (t *teamsAdapter) meetingURL() string {
	info := t.settings.MeetingInfo
	joinContext := url.QueryEscape(fmt.Sprintf(`{"Tid":%q,"Oid":%q}`, info.TenantID, info.OrganizerID))
	return fmt.Sprintf(
		"https://teams.microsoft.com/v2/?meetingjoin=true#/l/meetup-join/19:meeting_%s@thread.v2/0?context=%s&anon=true",
		info.MeetingID, joinContext,
	)
}

func (t *teamsAdapter) JoinMeeting(ctx context.Context, waiting func()) error {
	if err := t.page.Navigate(ctx, t.meetingURL()); err != nil {
		return &MeetingJoinError{Reason: "navigate to meeting", Err: err}
	}

	if err := t.page.WaitForSelector(ctx, teamsNameField, 30*time.Second); err != nil {
		return &MeetingJoinError{Reason: "prejoin screen never appeared", Err: err}
	}
	if err := t.page.Fill(ctx, teamsNameField, t.settings.DisplayName()); err != nil {
		return &MeetingJoinError{Reason: "fill display name", Err: err}
	}
	if err := t.page.Click(ctx, teamsMuteToggle); err != nil {
		t.logger.Debug("mute toggle unavailable", logging.Error(err))
	}
	if err := t.page.Click(ctx, teamsJoinButton); err != nil {
		return &MeetingJoinError{Reason: "click join", Err: err}
	}

	// The join button either disappears (admitted directly) or disables
	// (lobby). Wait for one of the two before deciding which timeout
	// applies.
	inLobby, err := t.awaitJoinSubmitted(ctx)
	if err != nil {
		return &MeetingJoinError{Reason: "join never acknowledged", Err: err}
	}

	timeout := t.settings.AutomaticLeave.NoOneJoinedTimeoutDuration()
	if inLobby {
		timeout = t.settings.AutomaticLeave.WaitingRoomTimeoutDuration()
		t.logger.Info("holding in lobby", logging.Duration("timeout", timeout))
		if waiting != nil {
			waiting()
		}
	}

	if err := t.page.WaitForSelector(ctx, teamsLeaveButton, timeout); err != nil {
		if errors.Is(err, browser.ErrSelectorTimeout) && inLobby {
			return &WaitingRoomTimeoutError{Timeout: timeout}
		}
		return &MeetingJoinError{Reason: "await admission", Err: err}
	}
	t.logger.Info("joined call")
	return nil
}

// awaitJoinSubmitted reports whether the bot landed in the lobby (join
// button still present but disabled) as opposed to being admitted outright
// (button gone).
func (t *teamsAdapter) awaitJoinSubmitted(ctx context.Context) (bool, error) {
	expr := fmt.Sprintf(`(() => {
		const button = document.querySelector(%q);
		if (!button) return "gone";
		if (button.hasAttribute("disabled")) return "disabled";
		return "pending";
	})()`, teamsJoinButton)

	deadline := time.Now().Add(30 * time.Second)
	for {
		var state string
		if err := t.page.Evaluate(ctx, expr, &state); err == nil {
			switch state {
			case "gone":
				return false, nil
			case "disabled":
				return true, nil
			}
		}
		if time.Now().After(deadline) {
			return false, errors.New("join button state never settled")
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// ObserveRoster polls the attendee tree. Teams gives no per-node identity
// hook comparable to Meet's, so the adapter diffs name snapshots and
// synthesizes deltas.
func (t *teamsAdapter) ObserveRoster(ctx context.Context, sink chan<- roster.Delta) (int, error) {
	if err := t.page.Click(ctx, teamsPeople); err != nil {
		return 0, fmt.Errorf("open people panel: %w", err)
	}
	if err := t.page.WaitForSelector(ctx, teamsRosterTree, 10*time.Second); err != nil {
		return 0, fmt.Errorf("attendee tree: %w", err)
	}

	initial, err := t.participantNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("initial roster snapshot: %w", err)
	}

	// The poller's lifetime is the adapter's, not the caller's: Close
	// cancels it so a released page is never probed again.
	pollCtx, cancel := context.WithCancel(ctx)
	t.stopPoll = cancel
	go t.pollRoster(pollCtx, sink, initial)
	return len(initial), nil
}

func (t *teamsAdapter) pollRoster(ctx context.Context, sink chan<- roster.Delta, previous []string) {
	known := make(map[string]bool, len(previous))
	for _, name := range previous {
		known[name] = true
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		names, err := t.participantNames(ctx)
		if err != nil {
			t.logger.Debug("roster poll failed", logging.Error(err))
			continue
		}

		current := make(map[string]bool, len(names))
		for _, name := range names {
			current[name] = true
			if !known[name] {
				offerDelta(sink, roster.Delta{Change: roster.Joined, ParticipantID: name}, t.logger)
			}
		}
		for name := range known {
			if !current[name] {
				offerDelta(sink, roster.Delta{Change: roster.Left, ParticipantID: name}, t.logger)
			}
		}
		known = current
	}
}

func (t *teamsAdapter) participantNames(ctx context.Context) ([]string, error) {
	expr := fmt.Sprintf(`(() => {
		const tree = document.querySelector(%q);
		if (!tree) return [];
		return [...tree.querySelectorAll('[data-tid^="participantsInCall-"]')]
			.map((el) => {
				const span = el.querySelector("span[title]");
				return (span && (span.getAttribute("title") || span.textContent.trim())) || "";
			})
			.filter((name) => name);
	})()`, teamsRosterTree)
	var names []string
	if err := t.page.Evaluate(ctx, expr, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// CheckKicked treats the disappearance of the leave control as the
// removal marker; Teams shows no dedicated banner to anonymous attendees.
// Probe errors read as still present.
func (t *teamsAdapter) CheckKicked(ctx context.Context) bool {
	present, err := selectorExists(ctx, t.page, teamsLeaveButton)
	if err != nil {
		return false
	}
	return !present
}

func (t *teamsAdapter) LeaveMeeting(ctx context.Context) error {
	return t.page.Click(ctx, teamsLeaveButton)
}

func (t *teamsAdapter) RecordingPath() string {
	return filepath.Join(t.recordingDir, "recording.webm")
}

func (t *teamsAdapter) ContentType() string {
	return "video/webm"
}

func (t *teamsAdapter) Screenshot(ctx context.Context, path string) error {
	return t.page.Screenshot(ctx, path)
}

func (t *teamsAdapter) Close(ctx context.Context) error {
	if t.stopPoll != nil {
		t.stopPoll()
	}
	return t.page.Close(ctx)
}

var _ Adapter = (*teamsAdapter)(nil)
