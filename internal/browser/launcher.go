package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"time"

	"github.com/gorilla/websocket"

	"meetingbot/internal/config"
	"meetingbot/internal/logging"
)

var commandContext = exec.CommandContext

// Launcher starts the Chromium instance owned by one session.
type Launcher struct {
	cfg    config.Browser
	logger *slog.Logger
}

// NewLauncher constructs a launcher from browser configuration.
func NewLauncher(cfg config.Browser, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.With(logging.String(logging.FieldComponent, "browser"))}
}

// Launch spawns Chromium with a DevTools endpoint and attaches to its
// initial page target. The returned Page owns the process; Close reaps it.
func (l *Launcher) Launch(ctx context.Context) (Page, error) {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", l.cfg.DebugPort),
		"--remote-allow-origins=*",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-features=IsolateOrigins,site-per-process",
		"--disable-infobars",
		"--use-fake-ui-for-media-stream",
		"--autoplay-policy=no-user-gesture-required",
		"--window-size=1280,720",
		"--incognito",
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new")
	}
	if l.cfg.UserAgent != "" {
		args = append(args, "--user-agent="+l.cfg.UserAgent)
	}
	args = append(args, "about:blank")

	cmd := commandContext(ctx, l.cfg.Binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser %s: %w", l.cfg.Binary, err)
	}
	l.logger.Info("browser started",
		logging.String("binary", l.cfg.Binary),
		logging.Int("pid", cmd.Process.Pid),
	)

	wsURL, err := l.waitForTarget(ctx)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("dial devtools %s: %w", wsURL, err)
	}

	page := newChromePage(conn, cmd, l.logger)
	if err := page.enableDomains(ctx); err != nil {
		_ = page.Close(ctx)
		return nil, err
	}
	return page, nil
}

// waitForTarget polls the DevTools discovery endpoint until the initial
// page target advertises its websocket URL.
func (l *Launcher) waitForTarget(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("http://127.0.0.1:%d/json/list", l.cfg.DebugPort)
	deadline := time.Now().Add(15 * time.Second)
	client := &http.Client{Timeout: 2 * time.Second}

	for {
		if url, ok := l.discoverTarget(ctx, client, endpoint); ok {
			return url, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("devtools endpoint %s: no page target within 15s", endpoint)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (l *Launcher) discoverTarget(ctx context.Context, client *http.Client, endpoint string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	var targets []struct {
		Type                 string `json:"type"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", false
	}
	for _, target := range targets {
		if target.Type == "page" && target.WebSocketDebuggerURL != "" {
			return target.WebSocketDebuggerURL, true
		}
	}
	return "", false
}
