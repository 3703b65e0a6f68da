// Package telemetry reports session lifecycle to the backend: a periodic
// heartbeat keyed by bot id and a stream of events mirroring the state
// machine. Every send tolerates transient failure; nothing here may abort
// the session.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"meetingbot/internal/config"
	"meetingbot/internal/logging"
)

const userAgent = "MeetingBot-Go/0.1.0"

// Reporter is the outbound surface the engine and monitor use.
type Reporter interface {
	// ReportEvent forwards an event and, for lifecycle codes, issues the
	// parallel status update. Failures are logged and swallowed.
	ReportEvent(ctx context.Context, event Event)
	// Heartbeat reports the session as still alive.
	Heartbeat(ctx context.Context) error
}

// Client reports to the backend's RPC surface over HTTP.
type Client struct {
	baseURL string
	botID   int64
	client  *http.Client
	logger  *slog.Logger
}

// NewClient builds a reporting client for one bot id.
func NewClient(cfg config.Telemetry, botID int64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BackendURL,
		botID:   botID,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(logging.String(logging.FieldComponent, "telemetry")),
	}
}

func (c *Client) ReportEvent(ctx context.Context, event Event) {
	body := map[string]any{"id": c.botID, "event": event}
	if err := c.post(ctx, "bots.reportEvent", body); err != nil {
		c.logger.Warn("report event failed",
			logging.String(logging.FieldEventType, string(event.Code)),
			logging.Error(err),
		)
		return
	}

	if event.Code.IsStatus() {
		status := map[string]any{"id": c.botID, "status": string(event.Code)}
		if event.Code == CodeDone && event.Data != nil && event.Data.Recording != "" {
			status["recording"] = event.Data.Recording
		}
		if err := c.post(ctx, "bots.updateBotStatus", status); err != nil {
			c.logger.Warn("status update failed",
				logging.String(logging.FieldEventType, string(event.Code)),
				logging.Error(err),
			)
			return
		}
	}

	c.logger.Info("event reported", logging.String(logging.FieldEventType, string(event.Code)))
}

func (c *Client) Heartbeat(ctx context.Context) error {
	return c.post(ctx, "bots.heartbeat", map[string]any{"id": c.botID})
}

func (c *Client) post(ctx context.Context, procedure string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", procedure, err)
	}

	url := c.baseURL + "/" + procedure
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", procedure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", procedure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: backend returned %s", procedure, resp.Status)
	}
	return nil
}

var _ Reporter = (*Client)(nil)

// Nop discards all reports.
type Nop struct{}

func (Nop) ReportEvent(context.Context, Event) {}

func (Nop) Heartbeat(context.Context) error { return nil }

var _ Reporter = Nop{}
