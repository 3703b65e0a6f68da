// Package deps verifies the external binaries a bot session shells out
// to before any meeting is joined.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"meetingbot/internal/config"
)

// Requirement defines an external dependency the bot relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries for the given configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Chromium",
			Command:     cfg.Browser.Binary,
			Description: "Controlled browser driven into the meeting",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Recording.FFmpegBinary,
			Description: "Captures the virtual display and audio",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Verify fails when any required binary is missing.
func Verify(cfg *config.Config) error {
	for _, status := range CheckBinaries(Requirements(cfg)) {
		if !status.Available && !status.Optional {
			return fmt.Errorf("missing dependency %s: %s", status.Name, status.Detail)
		}
	}
	return nil
}
