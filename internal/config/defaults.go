package config

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
	defaultWorkDir           = "/tmp/meetingbot"
	defaultPollInterval      = 5
	defaultBrowserBinary     = "chromium"
	defaultBrowserDebugPort  = 9222
	defaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultFFmpegBinary      = "ffmpeg"
	defaultDisplay           = ":99"
	defaultAudioSource       = "default"
	defaultFrameRate         = 25
	defaultBackendURL        = "http://127.0.0.1:3001/api/trpc"
	defaultHeartbeatInterval = 5
	defaultRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Session: Session{
			WorkDir:             defaultWorkDir,
			PollInterval:        defaultPollInterval,
			ScreenshotOnFailure: true,
		},
		Browser: Browser{
			Binary:    defaultBrowserBinary,
			DebugPort: defaultBrowserDebugPort,
			Headless:  true,
			UserAgent: defaultUserAgent,
		},
		Recording: Recording{
			FFmpegBinary: defaultFFmpegBinary,
			Display:      defaultDisplay,
			AudioSource:  defaultAudioSource,
			FrameRate:    defaultFrameRate,
		},
		Telemetry: Telemetry{
			BackendURL:        defaultBackendURL,
			HeartbeatInterval: defaultHeartbeatInterval,
			RequestTimeout:    defaultRequestTimeout,
		},
		Journal: Journal{
			Enabled: true,
		},
	}
}
