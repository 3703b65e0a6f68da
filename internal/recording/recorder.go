// Package recording owns the session's single encoding subprocess. It
// captures the virtual display and audio source with ffmpeg and exposes a
// start/stop contract the session engine drives.
package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"meetingbot/internal/config"
	"meetingbot/internal/logging"
)

var commandContext = exec.CommandContext

// Result describes the outcome of a stop request. Stop never returns an
// error: a failed encoder is reported through OK and Detail so the caller
// can log it without changing session state.
type Result struct {
	// Stopped is false when there was no live recording to stop.
	Stopped bool
	// OK is true when the encoder exited with a zero status.
	OK bool
	// Detail carries the exit description for a non-zero status.
	Detail string
}

// Recorder manages at most one live ffmpeg process for a session.
type Recorder struct {
	cfg        config.Recording
	outputPath string
	logger     *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// New constructs a recorder targeting the given output path.
func New(cfg config.Recording, outputPath string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{
		cfg:        cfg,
		outputPath: outputPath,
		logger:     logger.With(logging.String(logging.FieldComponent, "recording")),
	}
}

// OutputPath returns the fixed path the encoder writes to.
func (r *Recorder) OutputPath() string {
	return r.outputPath
}

// Active reports whether an encoder process is currently live.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Start spawns the encoder. Calling Start while a recording is live is a
// no-op; exactly one process exists per session at any time.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		r.logger.Info("recording already active, ignoring start")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.outputPath), 0o755); err != nil {
		return fmt.Errorf("ensure recording directory: %w", err)
	}

	cmd := commandContext(ctx, r.cfg.FFmpegBinary, r.buildArgs()...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	r.cmd = cmd
	r.done = done
	r.logger.Info("recording started",
		logging.String("output", r.outputPath),
		logging.Int("pid", cmd.Process.Pid),
	)
	return nil
}

// Stop interrupts the encoder and waits for it to exit. The handle is
// cleared unconditionally once the process is gone, success or not. When
// the context is cancelled before the encoder exits, the process is killed
// and reaped rather than leaked.
func (r *Recorder) Stop(ctx context.Context) Result {
	r.mu.Lock()
	cmd := r.cmd
	done := r.done
	r.cmd = nil
	r.done = nil
	r.mu.Unlock()

	if cmd == nil {
		r.logger.Info("no recording to stop")
		return Result{Stopped: false}
	}

	// SIGINT lets ffmpeg finalize the container before exiting.
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		r.logger.Warn("interrupt encoder failed", logging.Error(err))
	}

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		waitErr = <-done
	}

	if waitErr != nil {
		r.logger.Warn("encoder exited abnormally", logging.Error(waitErr))
		return Result{Stopped: true, OK: false, Detail: waitErr.Error()}
	}
	r.logger.Info("recording stopped", logging.String("output", r.outputPath))
	return Result{Stopped: true, OK: true}
}

// buildArgs assembles the x11grab + pulse capture invocation. The encoder
// is bound to the session's private display, so nothing else can leak into
// the capture.
func (r *Recorder) buildArgs() []string {
	return []string{
		"-loglevel", "warning",
		"-f", "x11grab",
		"-framerate", strconv.Itoa(r.cfg.FrameRate),
		"-video_size", "1280x720",
		"-i", r.cfg.Display,
		"-f", "pulse",
		"-i", r.cfg.AudioSource,
		"-ac", "1",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-y",
		r.outputPath,
	}
}
