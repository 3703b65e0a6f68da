package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for running a session.
// Storage credentials are deliberately not checked here: their absence is
// fatal only for the upload pipeline, which validates at construction.
func (c *Config) Validate() error {
	if err := c.validateLog(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.WorkDir == "" {
		return errors.New("session.work_dir must be set")
	}
	if c.Session.PollInterval <= 0 {
		return errors.New("session.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if c.Telemetry.BackendURL == "" {
		return errors.New("telemetry.backend_url must be set (or BACKEND_URL exported)")
	}
	if c.Telemetry.HeartbeatInterval <= 0 {
		return errors.New("telemetry.heartbeat_interval must be positive")
	}
	return nil
}
