package transition

import (
	"sort"

	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/state"
)

// Kind says what changed.
type Kind string

const (
	KindPhase   Kind = "phase"
	KindService Kind = "service"
	KindRuntime Kind = "runtime"
	KindPort    Kind = "port"
)

// Severity ranks a change for alerting.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// InstallationName is the Name of phase changes.
const InstallationName = "installation"

// Change is a transition between two observations.
type Change struct {
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	Profile  string   `json:"profile,omitempty"`
	Previous string   `json:"previous"`
	Current  string   `json:"current"`
	Severity Severity `json:"severity"`
	Reasons  []string `json:"reasons,omitempty"`
}

// DetectPhaseChange compares two state documents. A document appearing,
// disappearing, or moving to another phase is a change.
func DetectPhaseChange(prev, current *state.State) (Change, bool) {
	prevPhase := phaseOf(prev)
	currentPhase := phaseOf(current)
	if prevPhase == currentPhase {
		return Change{}, false
	}

	change := Change{
		Kind:     KindPhase,
		Name:     InstallationName,
		Previous: prevPhase,
		Current:  currentPhase,
		Severity: phaseSeverity(current),
	}
	if current == nil {
		change.Reasons = []string{"installation state removed or unreadable"}
	}
	return change, true
}

func phaseOf(st *state.State) string {
	if st == nil {
		return ""
	}
	return string(st.Phase)
}

func phaseSeverity(st *state.State) Severity {
	switch {
	case st == nil:
		return SeverityWarning
	case st.Phase == state.PhaseError:
		return SeverityCritical
	case st.Phase == state.PhaseComplete:
		return SeverityOK
	default:
		return SeverityWarning
	}
}

// DetectServiceChanges compares the previous live statuses (by service name)
// with the current ones. On the first observation only unhealthy services are
// reported; afterwards every status change is, and new services are reported
// unless they are healthy.
func DetectServiceChanges(prev map[string]containers.Status, current []containers.ServiceStatus, profiles map[string]string) []Change {
	firstRun := len(prev) == 0

	changes := make([]Change, 0)
	for _, svc := range current {
		prevStatus, hadPrev := prev[svc.Name]

		if firstRun || !hadPrev {
			if svc.Status == containers.StatusHealthy {
				continue
			}
		} else if prevStatus == svc.Status {
			continue
		}

		change := Change{
			Kind:     KindService,
			Name:     svc.Name,
			Profile:  profiles[svc.Name],
			Previous: string(prevStatus),
			Current:  string(svc.Status),
			Severity: StatusSeverity(svc.Status),
		}
		if svc.Error != "" {
			change.Reasons = []string{svc.Error}
		}
		changes = append(changes, change)
	}

	// Sort by service name for deterministic output
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Name < changes[j].Name
	})

	return changes
}

// DetectRuntimeChange reports the container runtime going away or coming back.
func DetectRuntimeChange(prevAvailable *bool, available bool) (Change, bool) {
	if prevAvailable == nil {
		if available {
			return Change{}, false
		}
	} else if *prevAvailable == available {
		return Change{}, false
	}

	change := Change{
		Kind:     KindRuntime,
		Name:     "container-runtime",
		Previous: availabilityLabel(prevAvailable),
		Current:  availabilityLabel(&available),
		Severity: SeverityOK,
	}
	if !available {
		change.Severity = SeverityCritical
	}
	return change, true
}

func availabilityLabel(available *bool) string {
	switch {
	case available == nil:
		return ""
	case *available:
		return "available"
	default:
		return "unavailable"
	}
}

// StatusSeverity ranks a live service status.
func StatusSeverity(status containers.Status) Severity {
	switch status {
	case containers.StatusHealthy:
		return SeverityOK
	case containers.StatusStarting:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}
