package containers

import (
	"regexp"
	"strings"
)

// Status is the live condition of a service's container.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusStarting  Status = "starting"
	StatusStopped   Status = "stopped"
	StatusNotFound  Status = "not_found"
)

// Running reports whether the container is up, whatever its health.
func (s Status) Running() bool {
	switch s {
	case StatusHealthy, StatusUnhealthy, StatusStarting:
		return true
	default:
		return false
	}
}

var uptimePattern = regexp.MustCompile(`^Up\s+(.+?)(?:\s+\([^)]*\))?$`)

// Classify maps the runtime state and status text to a Status. A running
// container without a health check counts as healthy.
func Classify(state, status string) Status {
	if !strings.EqualFold(strings.TrimSpace(state), "running") {
		return StatusStopped
	}
	lower := strings.ToLower(status)
	switch {
	case strings.Contains(lower, "(unhealthy)"):
		return StatusUnhealthy
	case strings.Contains(lower, "(health: starting)"):
		return StatusStarting
	case strings.Contains(lower, "(healthy)"):
		return StatusHealthy
	default:
		return StatusHealthy
	}
}

// HasHealthCheck reports whether the status text carries a health annotation.
func HasHealthCheck(status string) bool {
	lower := strings.ToLower(status)
	return strings.Contains(lower, "(healthy)") ||
		strings.Contains(lower, "(unhealthy)") ||
		strings.Contains(lower, "(health: starting)")
}

// Uptime extracts "2 hours" from "Up 2 hours (healthy)". It returns "" when
// the status does not describe a running container.
func Uptime(status string) string {
	match := uptimePattern.FindStringSubmatch(strings.TrimSpace(status))
	if match == nil {
		return ""
	}
	return match[1]
}
