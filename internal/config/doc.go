// Package config loads the bot's operational configuration and the
// per-session payload.
//
// Operational settings (logging, browser, recorder, telemetry, storage)
// come from an optional TOML file merged over compiled defaults, with
// environment overrides for credentials. The per-session payload arrives
// as JSON in the BOT_DATA environment variable, injected by whatever
// launched the bot process. Defaults are merged exactly once at load time;
// nothing reads ambient globals afterward.
package config
