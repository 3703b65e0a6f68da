package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Log contains logging configuration.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Dir    string `toml:"dir"`
}

// Session contains engine-level settings shared by every platform.
type Session struct {
	WorkDir             string `toml:"work_dir"`
	PollInterval        int    `toml:"poll_interval"`
	ScreenshotOnFailure bool   `toml:"screenshot_on_failure"`
}

// Browser contains settings for the controlled Chromium instance.
type Browser struct {
	Binary    string `toml:"binary"`
	DebugPort int    `toml:"debug_port"`
	Headless  bool   `toml:"headless"`
	UserAgent string `toml:"user_agent"`
}

// Recording contains settings for the ffmpeg capture subprocess.
type Recording struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Display      string `toml:"display"`
	AudioSource  string `toml:"audio_source"`
	FrameRate    int    `toml:"frame_rate"`
}

// Telemetry contains settings for backend reporting.
type Telemetry struct {
	BackendURL        string `toml:"backend_url"`
	HeartbeatInterval int    `toml:"heartbeat_interval"`
	RequestTimeout    int    `toml:"request_timeout"`
	QuietHeartbeat    bool   `toml:"quiet_heartbeat"`
}

// Storage contains object storage settings for recording handoff.
// Credentials are normally supplied through the standard AWS environment
// variables rather than the config file.
type Storage struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Journal contains settings for the local session event journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config is the root of the bot's operational configuration.
type Config struct {
	Log       Log       `toml:"log"`
	Session   Session   `toml:"session"`
	Browser   Browser   `toml:"browser"`
	Recording Recording `toml:"recording"`
	Telemetry Telemetry `toml:"telemetry"`
	Storage   Storage   `toml:"storage"`
	Journal   Journal   `toml:"journal"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "meetingbot", "config.toml"), nil
}

// Load reads configuration from the given path (or the default location
// when path is empty), merges it over defaults, applies environment
// overrides, and normalizes the result. A missing file is not an error;
// defaults are used instead.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		var err error
		resolved, err = DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
	}
	resolved = expandPath(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.applyEnv()
	cfg.normalize()
	return &cfg, resolved, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Telemetry.BackendURL = v
	}
	if v := os.Getenv("AWS_BUCKET_NAME"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
}

func expandPath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
