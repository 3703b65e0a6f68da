// Package logging wraps log/slog construction for the bot process. It
// provides a console handler for interactive runs, a JSON handler for
// captured container logs, and typed attribute helpers shared across
// packages.
package logging
