package platform

import (
	"context"
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

// Zoom renders its web client inside an iframe; every probe goes through
// the frame's document.
const (
	zoomFrameSelector = ".pwa-webclient__iframe"
	zoomMuteButton    = `button[aria-label="Mute"]`
	zoomStopVideo     = `button[aria-label="Stop Video"]`
	zoomNameInput     = "#input-for-name"
	zoomJoinButton    = "button.zm-btn.preview-join-button"
	zoomLeaveButton   = `button[aria-label="Leave"]`
	zoomEndedOKButton = "button.zm-btn.zm-btn-legacy.zm-btn--primary.zm-btn__outline--blue"
	zoomRemovedText   = "You have been removed"
)

type zoomAdapter struct {
	settings     *config.BotData
	page         browser.Page
	recordingDir string
	logger       *slog.Logger
}

func newZoomAdapter(settings *config.BotData, page browser.Page, recordingDir string, logger *slog.Logger) *zoomAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &zoomAdapter{
		settings:     settings,
		page:         page,
		recordingDir: recordingDir,
		logger:       logger.With(logging.String(logging.FieldPlatform, config.PlatformZoom)),
	}
}

func (z *zoomAdapter) meetingURL() string {
	info := z.settings.MeetingInfo
	return fmt.Sprintf("https://app.zoom.us/wc/%s/join?fromPWA=1&pwd=%s", info.MeetingID, info.MeetingPassword)
}

// frameProbe evaluates a selector existence probe inside the web client
// frame.
func (z *zoomAdapter) frameProbe(ctx context.Context, selector string) (bool, error) {
	expr := fmt.Sprintf(`(() => {
		const frame = document.querySelector(%q);
		const doc = frame && frame.contentDocument;
		if (!doc) return false;
		return doc.querySelector(%q) !== null;
	})()`, zoomFrameSelector, selector)
	var found bool
	if err := z.page.Evaluate(ctx, expr, &found); err != nil {
		return false, err
	}
	return found, nil
}

func (z *zoomAdapter) frameClick(ctx context.Context, selector string) error {
	expr := fmt.Sprintf(`(() => {
		const frame = document.querySelector(%q);
		const doc = frame && frame.contentDocument;
		if (!doc) return false;
		const el = doc.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, zoomFrameSelector, selector)
	var clicked bool
	if err := z.page.Evaluate(ctx, expr, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("frame click %s: %w", selector, browser.ErrNoSuchElement)
	}
	return nil
}

func (z *zoomAdapter) frameWait(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if found, err := z.frameProbe(ctx, selector); err == nil && found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", browser.ErrSelectorTimeout, selector, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (z *zoomAdapter) JoinMeeting(ctx context.Context, waiting func()) error {
	if err := z.page.Navigate(ctx, z.meetingURL()); err != nil {
		return &MeetingJoinError{Reason: "navigate to meeting", Err: err}
	}
	if err := z.page.WaitForSelector(ctx, zoomFrameSelector, 30*time.Second); err != nil {
		return &MeetingJoinError{Reason: "web client frame never appeared", Err: err}
	}

	if err := z.frameWait(ctx, zoomMuteButton, 15*time.Second); err != nil {
		return &MeetingJoinError{Reason: "preview controls never appeared", Err: err}
	}
	if err := z.frameClick(ctx, zoomMuteButton); err != nil {
		z.logger.Debug("mute toggle unavailable", logging.Error(err))
	}
	if err := z.frameClick(ctx, zoomStopVideo); err != nil {
		z.logger.Debug("stop video unavailable", logging.Error(err))
	}

	fillExpr := fmt.Sprintf(`(() => {
		const frame = document.querySelector(%q);
		const doc = frame && frame.contentDocument;
		if (!doc) return false;
		const el = doc.querySelector(%q);
		if (!el) return false;
		const setter = Object.getOwnPropertyDescriptor(frame.contentWindow.HTMLInputElement.prototype, "value").set;
		setter.call(el, %q);
		el.dispatchEvent(new Event("input", { bubbles: true }));
		return true;
	})()`, zoomFrameSelector, zoomNameInput, z.settings.DisplayName())
	var filled bool
	if err := z.page.Evaluate(ctx, fillExpr, &filled); err != nil || !filled {
		return &MeetingJoinError{Reason: "fill display name", Err: err}
	}

	if err := z.frameClick(ctx, zoomJoinButton); err != nil {
		return &MeetingJoinError{Reason: "click join", Err: err}
	}

	// The web client has no distinct lobby indicator; the leave control
	// appearing is the admission marker.
	timeout := z.settings.AutomaticLeave.WaitingRoomTimeoutDuration()
	if err := z.frameWait(ctx, zoomLeaveButton, timeout); err != nil {
		if errors.Is(err, browser.ErrSelectorTimeout) {
			return &WaitingRoomTimeoutError{Timeout: timeout}
		}
		return &MeetingJoinError{Reason: "await admission", Err: err}
	}
	z.logger.Info("joined call")
	return nil
}

// ObserveRoster is a no-op for Zoom: the web client exposes no usable
// participant list to anonymous attendees, so the everyone-left policy
// never fires and departure relies on kicked detection.
func (z *zoomAdapter) ObserveRoster(ctx context.Context, sink chan<- roster.Delta) (int, error) {
	z.logger.Info("roster observation unavailable on this platform")
	return 0, nil
}

// CheckKicked reads the meeting-ended dialog or the removal banner as
// authoritative. When the ended dialog is present its OK button is
// clicked so the page settles.
func (z *zoomAdapter) CheckKicked(ctx context.Context) bool {
	if removed, err := z.frameProbe(ctx, zoomEndedOKButton); err == nil && removed {
		_ = z.frameClick(ctx, zoomEndedOKButton)
		return true
	}
	if banner, err := pageTextContains(ctx, z.page, zoomRemovedText); err == nil && banner {
		return true
	}
	return false
}

func (z *zoomAdapter) LeaveMeeting(ctx context.Context) error {
	return z.frameClick(ctx, zoomLeaveButton)
}

func (z *zoomAdapter) RecordingPath() string {
	return filepath.Join(z.recordingDir, "recording.mp4")
}

func (z *zoomAdapter) ContentType() string {
	return "video/mp4"
}

func (z *zoomAdapter) Screenshot(ctx context.Context, path string) error {
	return z.page.Screenshot(ctx, path)
}

func (z *zoomAdapter) Close(ctx context.Context) error {
	return z.page.Close(ctx)
}

var _ Adapter = (*zoomAdapter)(nil)
