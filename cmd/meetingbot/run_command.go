package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"meetingbot/internal/browser"
	"meetingbot/internal/config"
	"meetingbot/internal/deps"
	"meetingbot/internal/journal"
	"meetingbot/internal/logging"
	"meetingbot/internal/platform"
	"meetingbot/internal/recording"
	"meetingbot/internal/session"
	"meetingbot/internal/storage"
	"meetingbot/internal/telemetry"
)

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Attend the meeting described by BOT_DATA",
		Long: "Joins the meeting from the BOT_DATA payload, records it, uploads the\n" +
			"recording, and reports lifecycle events to the backend.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd.Context(), *configPath)
		},
	}
}

func runSession(ctx context.Context, configPath string) error {
	cfg, resolvedPath, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: logOutputs(cfg),
	})
	if err != nil {
		return err
	}

	botData, err := config.LoadBotData()
	if err != nil {
		return err
	}

	logger = logger.With(
		logging.Int64(logging.FieldBotID, botData.ID),
		logging.String(logging.FieldPlatform, botData.MeetingInfo.Platform),
	)
	logger.Info("starting bot session",
		logging.String("config", resolvedPath),
		logging.String("meeting_title", botData.MeetingTitle))

	if err := os.MkdirAll(cfg.Session.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.Session.WorkDir, "meetingbot.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another session already holds %s", lock.Path())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release session lock", logging.Error(err))
		}
	}()

	if err := deps.Verify(cfg); err != nil {
		return err
	}

	store, err := journal.Open(ctx, journalPath(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close journal", logging.Error(err))
		}
	}()

	reporter := telemetry.NewClient(cfg.Telemetry, botData.ID, logger)

	// Storage misconfiguration loses the upload, not the meeting. The
	// session still runs so the backend sees the lifecycle play out.
	uploader, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("upload pipeline unavailable", logging.Error(err))
		uploader = nil
	}

	reporter.ReportEvent(ctx, telemetry.NewEvent(telemetry.CodeReadyToDeploy, nil))

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	var wg sync.WaitGroup
	wg.Add(1)
	go telemetry.StartHeartbeat(heartbeatCtx, &wg, reporter,
		heartbeatInterval(cfg, botData), cfg.Telemetry.QuietHeartbeat, logger)

	runErr := attend(ctx, cfg, botData, reporter, store, uploader, logger)

	stopHeartbeat()
	wg.Wait()

	if runErr != nil {
		return fmt.Errorf("bot session failed: %w", runErr)
	}
	logger.Info("bot session complete")
	return nil
}

// attend drives one meeting attendance end to end: browser, adapter,
// session engine, and the recording handoff.
func attend(
	ctx context.Context,
	cfg *config.Config,
	botData *config.BotData,
	reporter telemetry.Reporter,
	store *journal.Store,
	uploader *storage.Uploader,
	logger *slog.Logger,
) error {
	launcher := browser.NewLauncher(cfg.Browser, logger)
	page, err := launcher.Launch(ctx)
	if err != nil {
		reporter.ReportEvent(ctx, telemetry.NewEvent(telemetry.CodeFatal, &telemetry.EventData{
			Description: fmt.Sprintf("browser launch failed: %v", err),
		}))
		return err
	}

	adapter, err := platform.New(botData, page, cfg.Session.WorkDir, logger)
	if err != nil {
		if closeErr := page.Close(ctx); closeErr != nil {
			logger.Warn("close browser", logging.Error(closeErr))
		}
		reporter.ReportEvent(ctx, telemetry.NewEvent(telemetry.CodeFatal, &telemetry.EventData{
			Description: err.Error(),
		}))
		return err
	}

	recorder := recording.New(cfg.Recording, adapter.RecordingPath(), logger)

	opts := []session.Option{
		session.WithPollInterval(time.Duration(cfg.Session.PollInterval) * time.Second),
	}
	if cfg.Session.ScreenshotOnFailure {
		opts = append(opts, session.WithScreenshotDir(cfg.Session.WorkDir))
	}
	sess := session.New(botData, adapter, recorder, reporter, store, logger, opts...)

	if err := sess.Execute(ctx); err != nil {
		return err
	}

	var key string
	if uploader != nil {
		key, err = uploader.UploadRecording(ctx,
			adapter.RecordingPath(), botData.MeetingInfo.Platform, adapter.ContentType())
		if err != nil {
			err = fmt.Errorf("upload recording: %w", err)
			sess.Abort(ctx, err)
			return err
		}
	}

	sess.Finish(ctx, key)
	return nil
}

// heartbeatInterval prefers the per-session payload value over the
// config default. The payload carries milliseconds, the config seconds.
func heartbeatInterval(cfg *config.Config, botData *config.BotData) time.Duration {
	if botData.HeartbeatInterval > 0 {
		return time.Duration(botData.HeartbeatInterval) * time.Millisecond
	}
	return time.Duration(cfg.Telemetry.HeartbeatInterval) * time.Second
}

func logOutputs(cfg *config.Config) []string {
	outputs := []string{"stdout"}
	if cfg.Log.Dir != "" {
		outputs = append(outputs, filepath.Join(cfg.Log.Dir, "meetingbot.log"))
	}
	return outputs
}

func journalPath(cfg *config.Config) string {
	if !cfg.Journal.Enabled {
		return ""
	}
	return cfg.Journal.Path
}
