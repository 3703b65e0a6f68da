// Package main hosts the meetingbot CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the single run mode that attends a
// meeting end to end, plus operational helpers for dependency checks and
// journal inspection. It centralizes configuration resolution, payload
// validation, and structured logging setup so the session engine in
// internal/session can focus on meeting lifecycle semantics.
package main
