package config

import (
	"path/filepath"
	"strings"
)

func (c *Config) normalize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Log.Dir = expandPath(strings.TrimSpace(c.Log.Dir))

	c.Session.WorkDir = expandPath(strings.TrimSpace(c.Session.WorkDir))
	if c.Session.WorkDir == "" {
		c.Session.WorkDir = defaultWorkDir
	}
	if c.Session.PollInterval <= 0 {
		c.Session.PollInterval = defaultPollInterval
	}

	c.Browser.Binary = strings.TrimSpace(c.Browser.Binary)
	if c.Browser.Binary == "" {
		c.Browser.Binary = defaultBrowserBinary
	}
	if c.Browser.DebugPort <= 0 {
		c.Browser.DebugPort = defaultBrowserDebugPort
	}

	c.Recording.FFmpegBinary = strings.TrimSpace(c.Recording.FFmpegBinary)
	if c.Recording.FFmpegBinary == "" {
		c.Recording.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Recording.FrameRate <= 0 {
		c.Recording.FrameRate = defaultFrameRate
	}
	if strings.TrimSpace(c.Recording.Display) == "" {
		c.Recording.Display = defaultDisplay
	}
	if strings.TrimSpace(c.Recording.AudioSource) == "" {
		c.Recording.AudioSource = defaultAudioSource
	}

	c.Telemetry.BackendURL = strings.TrimRight(strings.TrimSpace(c.Telemetry.BackendURL), "/")
	if c.Telemetry.HeartbeatInterval <= 0 {
		c.Telemetry.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Telemetry.RequestTimeout <= 0 {
		c.Telemetry.RequestTimeout = defaultRequestTimeout
	}

	c.Journal.Path = expandPath(strings.TrimSpace(c.Journal.Path))
	if c.Journal.Enabled && c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.Session.WorkDir, "journal.db")
	}
}
