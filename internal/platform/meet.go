package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"meetingbot/internal/browser"
	"meetingbot/internal/config"
	"meetingbot/internal/logging"
	"meetingbot/internal/roster"
)

// Google Meet surface markers.
const (
	meetNameField     = `input[type="text"][aria-label="Your name"]`
	meetMuteButton    = `[aria-label*="Turn off mic"]`
	meetCameraButton  = `[aria-label*="Turn off camera"]`
	meetLeaveButton   = `button[aria-label="Leave call"]`
	meetPeopleButton  = `button[aria-label="People"]`
	meetParticipants  = `[aria-label="Participants"]`
	meetAskToJoinText = "Ask to join"
	meetReturnHome    = "Return to home screen"
	meetRemovedText   = "You've been removed from the meeting"

	meetRosterBinding = "meetingbotRosterDelta"
)

type meetAdapter struct {
	settings     *config.BotData
	page         browser.Page
	recordingDir string
	logger       *slog.Logger
}

func newMeetAdapter(settings *config.BotData, page browser.Page, recordingDir string, logger *slog.Logger) *meetAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &meetAdapter{
		settings:     settings,
		page:         page,
		recordingDir: recordingDir,
		logger:       logger.With(logging.String(logging.FieldPlatform, config.PlatformGoogle)),
	}
}

func (m *meetAdapter) JoinMeeting(ctx context.Context, waiting func()) error {
	url := m.settings.MeetingInfo.MeetingURL
	if err := m.page.Navigate(ctx, url); err != nil {
		return &MeetingJoinError{Reason: "navigate to meeting", Err: err}
	}

	if err := m.page.WaitForSelector(ctx, meetNameField, 30*time.Second); err != nil {
		return &MeetingJoinError{Reason: "name prompt never appeared", Err: err}
	}
	if err := m.page.Fill(ctx, meetNameField, m.settings.DisplayName()); err != nil {
		return &MeetingJoinError{Reason: "fill display name", Err: err}
	}

	// Join muted with the camera off; failures here are cosmetic.
	if err := m.page.Click(ctx, meetMuteButton); err != nil {
		m.logger.Debug("mute toggle unavailable", logging.Error(err))
	}
	if err := m.page.Click(ctx, meetCameraButton); err != nil {
		m.logger.Debug("camera toggle unavailable", logging.Error(err))
	}

	if err := waitForButtonWithText(ctx, m.page, meetAskToJoinText, time.Minute); err != nil {
		return &MeetingJoinError{Reason: "ask-to-join control never appeared", Err: err}
	}
	if err := clickButtonWithText(ctx, m.page, meetAskToJoinText); err != nil {
		return &MeetingJoinError{Reason: "click ask-to-join", Err: err}
	}

	// Asking to join always parks the bot in the pre-admission queue.
	if waiting != nil {
		waiting()
	}

	timeout := m.settings.AutomaticLeave.WaitingRoomTimeoutDuration()
	m.logger.Info("awaiting admission", logging.Duration("timeout", timeout))
	if err := m.page.WaitForSelector(ctx, meetLeaveButton, timeout); err != nil {
		if errors.Is(err, browser.ErrSelectorTimeout) {
			return &WaitingRoomTimeoutError{Timeout: timeout}
		}
		return &MeetingJoinError{Reason: "await admission", Err: err}
	}
	m.logger.Info("joined call")
	return nil
}

func (m *meetAdapter) ObserveRoster(ctx context.Context, sink chan<- roster.Delta) (int, error) {
	if err := m.page.Click(ctx, meetPeopleButton); err != nil {
		return 0, fmt.Errorf("open people panel: %w", err)
	}
	if err := m.page.WaitForSelector(ctx, meetParticipants, 10*time.Second); err != nil {
		return 0, fmt.Errorf("participants panel: %w", err)
	}

	err := m.page.ExposeBinding(ctx, meetRosterBinding, func(payload string) {
		var change struct {
			Change        string `json:"change"`
			ParticipantID string `json:"participantId"`
		}
		if err := json.Unmarshal([]byte(payload), &change); err != nil {
			m.logger.Warn("malformed roster payload", logging.Error(err))
			return
		}
		delta := roster.Delta{ParticipantID: change.ParticipantID}
		if change.Change == "leave" {
			delta.Change = roster.Left
		}
		offerDelta(sink, delta, m.logger)
	})
	if err != nil {
		return 0, fmt.Errorf("expose roster binding: %w", err)
	}

	// Install a mutation observer on the participant list and report the
	// attach-time snapshot in one round trip.
	var initial int
	observerExpr := fmt.Sprintf(`(() => {
		const list = document.querySelector(%q);
		if (!list) return -1;
		const report = (change, node) => {
			if (!node.getAttribute) return;
			const id = node.getAttribute("data-participant-id");
			if (!id) return;
			window[%q](JSON.stringify({ change, participantId: id }));
		};
		const observer = new MutationObserver((mutations) => {
			for (const mutation of mutations) {
				if (mutation.type !== "childList") continue;
				mutation.addedNodes.forEach((node) => report("join", node));
				mutation.removedNodes.forEach((node) => report("leave", node));
			}
		});
		observer.observe(list, { childList: true, subtree: true });
		return list.querySelectorAll("[data-participant-id]").length;
	})()`, meetParticipants, meetRosterBinding)
	if err := m.page.Evaluate(ctx, observerExpr, &initial); err != nil {
		return 0, fmt.Errorf("install roster observer: %w", err)
	}
	if initial < 0 {
		return 0, errors.New("participants list element not found")
	}
	return initial, nil
}

func (m *meetAdapter) CheckKicked(ctx context.Context) bool {
	// The removal banner and the return-home control are authoritative.
	// Anything ambiguous, including probe errors, reads as still present.
	if removed, err := pageTextContains(ctx, m.page, meetRemovedText); err == nil && removed {
		return true
	}
	if home, err := buttonWithTextExists(ctx, m.page, meetReturnHome); err == nil && home {
		return true
	}
	return false
}

func (m *meetAdapter) LeaveMeeting(ctx context.Context) error {
	return m.page.Click(ctx, meetLeaveButton)
}

func (m *meetAdapter) RecordingPath() string {
	return filepath.Join(m.recordingDir, "recording.mp4")
}

func (m *meetAdapter) ContentType() string {
	return "video/mp4"
}

func (m *meetAdapter) Screenshot(ctx context.Context, path string) error {
	return m.page.Screenshot(ctx, path)
}

func (m *meetAdapter) Close(ctx context.Context) error {
	return m.page.Close(ctx)
}

var _ Adapter = (*meetAdapter)(nil)
