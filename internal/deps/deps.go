// Package deps verifies the external binaries the daemon shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
)

// Requirement defines an external dependency the pipeline relies on.
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

// ForConfig builds the requirement list for the configured toolchain.
func ForConfig(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Browser driver",
			Command:     cfg.Browser.DriverCommand,
			Description: "launches the per-worker browser sessions",
		},
		{
			Name:        "Automation helper",
			Command:     cfg.Browser.AutomationCommand,
			Description: "drives the generation web UI",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegCommand,
			Description: "extracts frames and joins video segments",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeCommand,
			Description: "reads segment durations",
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
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing filters the statuses down to required dependencies that are not
// available.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
