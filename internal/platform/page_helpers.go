package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meetingbot/internal/browser"
	"meetingbot/internal/logging"
	"meetingbot/internal/roster"
)

// selectorExists is a one-shot existence probe, in contrast to the page
// driver's blocking WaitForSelector.
func selectorExists(ctx context.Context, page browser.Page, selector string) (bool, error) {
	var found bool
	expression := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := page.Evaluate(ctx, expression, &found); err != nil {
		return false, err
	}
	return found, nil
}

// buttonWithTextExists probes for a button whose visible text contains the
// given fragment. Several meeting UIs expose critical controls only by
// their label text.
func buttonWithTextExists(ctx context.Context, page browser.Page, text string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(
		`[...document.querySelectorAll("button")].some(el => (el.innerText || "").includes(%q))`,
		text,
	)
	if err := page.Evaluate(ctx, expr, &found); err != nil {
		return false, err
	}
	return found, nil
}

func clickButtonWithText(ctx context.Context, page browser.Page, text string) error {
	var clicked bool
	expr := fmt.Sprintf(
		`(() => {
			const el = [...document.querySelectorAll("button")].find(el => (el.innerText || "").includes(%q));
			if (!el) return false;
			el.click();
			return true;
		})()`,
		text,
	)
	if err := page.Evaluate(ctx, expr, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("button %q: %w", text, browser.ErrNoSuchElement)
	}
	return nil
}

func waitForButtonWithText(ctx context.Context, page browser.Page, text string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if found, err := buttonWithTextExists(ctx, page, text); err == nil && found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: button %q after %s", browser.ErrSelectorTimeout, text, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// pageTextContains probes the whole document for a text fragment, used for
// explicit removal banners.
func pageTextContains(ctx context.Context, page browser.Page, text string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`(document.body && document.body.innerText || "").includes(%q)`, text)
	if err := page.Evaluate(ctx, expr, &found); err != nil {
		return false, err
	}
	return found, nil
}

// offerDelta forwards a roster change without blocking the page driver's
// reader goroutine. A full sink drops the delta; the count drifting is
// preferable to wedging the protocol connection.
func offerDelta(sink chan<- roster.Delta, delta roster.Delta, logger *slog.Logger) {
	select {
	case sink <- delta:
	default:
		if logger != nil {
			logger.Warn("roster sink full, dropping delta",
				logging.String("participant", delta.ParticipantID),
			)
		}
	}
}
