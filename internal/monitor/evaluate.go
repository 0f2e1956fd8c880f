package monitor

import (
	"time"

	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/reconfig"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/nholik/aio-sentinel/internal/transition"
)

// ServiceView merges a persisted service record with its live status.
type ServiceView struct {
	Name          string            `json:"name"`
	DisplayName   string            `json:"displayName,omitempty"`
	Profile       string            `json:"profile"`
	Status        containers.Status `json:"status"`
	ContainerName string            `json:"containerName,omitempty"`
	HealthCheck   bool              `json:"healthCheck"`
	HasData       bool              `json:"hasData"`
	DataSize      *string           `json:"dataSize"`
	// Drift is set when the recorded running flag disagrees with the runtime.
	Drift bool   `json:"drift,omitempty"`
	Error string `json:"error,omitempty"`
}

// View is the dashboard's picture of the installation after one refresh.
type View struct {
	StateStatus      state.Status        `json:"stateStatus"`
	Phase            state.Phase         `json:"phase,omitempty"`
	Mode             reconfig.Mode       `json:"mode"`
	Profiles         []string            `json:"profiles"`
	Services         []ServiceView       `json:"services"`
	Summary          state.Summary       `json:"summary"`
	Severity         transition.Severity `json:"severity"`
	RuntimeAvailable bool                `json:"runtimeAvailable"`
	NodePort         int                 `json:"nodePort,omitempty"`
	CheckedAt        time.Time           `json:"checkedAt"`
}

// Evaluate builds a View from a state snapshot and the live statuses of its
// services. Services without a live status are reported as not_found. The
// summary counts live conditions: running, stopped, and not_found as missing.
func Evaluate(snapshot state.Snapshot, statuses []containers.ServiceStatus, runtimeAvailable bool, nodePort int, now time.Time) View {
	view := View{
		StateStatus:      snapshot.Status,
		Mode:             reconfig.ModeFreshInstall,
		Profiles:         []string{},
		Services:         []ServiceView{},
		Severity:         transition.SeverityOK,
		RuntimeAvailable: runtimeAvailable,
		NodePort:         nodePort,
		CheckedAt:        now.UTC(),
	}

	st := snapshot.State
	if st == nil {
		if snapshot.Status == state.StatusCorrupt || snapshot.Status == state.StatusUnreadable {
			view.Severity = transition.SeverityCritical
		}
		return view
	}

	view.Phase = st.Phase
	if reconfig.IsReconfiguration(st) {
		view.Mode = reconfig.ModeReconfigure
	}
	view.Profiles = append(view.Profiles, st.Profiles.Selected...)

	live := make(map[string]containers.ServiceStatus, len(statuses))
	for _, status := range statuses {
		live[status.Name] = status
	}

	for _, record := range st.Services {
		status, ok := live[record.Name]
		if !ok {
			status = containers.ServiceStatus{Name: record.Name, Status: containers.StatusNotFound}
		}

		svc := ServiceView{
			Name:          record.Name,
			DisplayName:   record.DisplayName,
			Profile:       record.Profile,
			Status:        status.Status,
			ContainerName: status.ContainerName,
			HealthCheck:   status.HealthCheck,
			HasData:       record.HasData,
			DataSize:      record.Clone().DataSize,
			Drift:         ok && record.Exists && record.Running != status.Status.Running(),
			Error:         status.Error,
		}
		if svc.ContainerName == "" {
			svc.ContainerName = record.ContainerName
		}
		view.Services = append(view.Services, svc)

		view.Summary.Total++
		switch {
		case svc.Status == containers.StatusNotFound:
			view.Summary.Missing++
		case svc.Status.Running():
			view.Summary.Running++
		default:
			view.Summary.Stopped++
		}
		view.Severity = worsen(view.Severity, transition.StatusSeverity(svc.Status))
	}

	if st.Phase == state.PhaseError || (len(st.Services) > 0 && !runtimeAvailable) {
		view.Severity = transition.SeverityCritical
	}
	return view
}

func worsen(current, next transition.Severity) transition.Severity {
	rank := map[transition.Severity]int{
		transition.SeverityOK:       0,
		transition.SeverityWarning:  1,
		transition.SeverityCritical: 2,
	}
	if rank[next] > rank[current] {
		return next
	}
	return current
}

// Statuses indexes the live status of each service in the view.
func (v View) Statuses() map[string]containers.Status {
	out := make(map[string]containers.Status, len(v.Services))
	for _, svc := range v.Services {
		out[svc.Name] = svc.Status
	}
	return out
}

// ServiceProfiles maps service names to their owning profile.
func (v View) ServiceProfiles() map[string]string {
	out := make(map[string]string, len(v.Services))
	for _, svc := range v.Services {
		out[svc.Name] = svc.Profile
	}
	return out
}
