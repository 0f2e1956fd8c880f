// Package reconfig derives the reconfiguration view of an installation and
// applies profile changes to a copy of the installation state. Every function
// is pure: inputs are never modified.
package reconfig

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nholik/aio-sentinel/internal/catalog"
	"github.com/nholik/aio-sentinel/internal/state"
)

// Mode is the UI flow an installation calls for.
type Mode string

const (
	ModeFreshInstall Mode = "fresh-install"
	ModeReconfigure  Mode = "reconfigure"
)

// Action is an operation offered in reconfiguration mode.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionModify Action = "modify"
	ActionManage Action = "manage"
)

var reconfigureActions = []Action{ActionAdd, ActionRemove, ActionModify, ActionManage}

var (
	// ErrNoInstallation is returned when a change is requested without a state.
	ErrNoInstallation = errors.New("no installation to reconfigure")
	// ErrProfileNotInstalled is returned when a change targets a profile that is not selected.
	ErrProfileNotInstalled = errors.New("profile is not installed")
	// ErrUnknownProfile is returned when a profile id is not in the catalog.
	ErrUnknownProfile = errors.New("unknown profile")
)

// Classification is the split between installed and available profiles.
type Classification struct {
	Mode      Mode     `json:"mode"`
	Installed []string `json:"installed"`
	Available []string `json:"available"`
	Actions   []Action `json:"actions,omitempty"`
}

// IsReconfiguration reports whether st is a complete installation with at least one profile.
func IsReconfiguration(st *state.State) bool {
	return st != nil && st.Phase == state.PhaseComplete && len(st.Profiles.Selected) > 0
}

// Classify decides the mode and splits the catalog. Installed is the selected
// profiles in document order; Available is every other catalog profile in
// catalog order. A selected profile missing from the catalog still counts as installed.
func Classify(st *state.State, cat catalog.Catalog) Classification {
	var selected []string
	if st != nil {
		selected = st.Profiles.Selected
	}

	out := Classification{
		Mode:      ModeFreshInstall,
		Installed: slices.Clone(selected),
		Available: make([]string, 0, cat.Len()),
	}
	if out.Installed == nil {
		out.Installed = []string{}
	}
	for _, id := range cat.IDs() {
		if !slices.Contains(selected, id) {
			out.Available = append(out.Available, id)
		}
	}
	if IsReconfiguration(st) {
		out.Mode = ModeReconfigure
		out.Actions = slices.Clone(reconfigureActions)
	}
	return out
}

// ServiceRef identifies a service well enough to start, stop or remove it.
type ServiceRef struct {
	Name          string `json:"name"`
	ContainerName string `json:"containerName,omitempty"`
	Running       bool   `json:"running"`
	Exists        bool   `json:"exists"`
	HasData       bool   `json:"hasData"`
}

// ServicesForProfile returns the services recorded under profileID in document order.
func ServicesForProfile(st *state.State, profileID string) []ServiceRef {
	if st == nil {
		return nil
	}
	var refs []ServiceRef
	for _, svc := range st.Services {
		if svc.Profile != profileID {
			continue
		}
		refs = append(refs, ServiceRef{
			Name:          svc.Name,
			ContainerName: svc.ContainerName,
			Running:       svc.Running,
			Exists:        svc.Exists,
			HasData:       svc.HasData,
		})
	}
	return refs
}

// ModifyRequest changes an installed profile's settings and optionally its data.
type ModifyRequest struct {
	Profile string
	// Settings are merged into the configuration.
	Settings map[string]any
	// RemoveData clears hasData and dataSize on the profile's services.
	RemoveData      bool
	CreateBackup    bool
	RestartServices bool
}

// ModifyOutcome reports what the caller must carry out after a modification.
type ModifyOutcome struct {
	Profile         string   `json:"profile"`
	Affected        []string `json:"affected"`
	ChangedSettings []string `json:"changedSettings,omitempty"`
	DataRemoved     bool     `json:"dataRemoved"`
	CreateBackup    bool     `json:"createBackup"`
	RestartServices bool     `json:"restartServices"`
}

// ApplyModification returns a modified copy of st. Without RemoveData every
// affected service keeps hasData, dataSize and configPath. Settings and data
// removal are applied independently of each other.
func ApplyModification(st *state.State, req ModifyRequest) (*state.State, ModifyOutcome, error) {
	if st == nil {
		return nil, ModifyOutcome{}, ErrNoInstallation
	}
	if !st.Profiles.Has(req.Profile) {
		return nil, ModifyOutcome{}, fmt.Errorf("modify %q: %w", req.Profile, ErrProfileNotInstalled)
	}

	next := st.Clone()
	outcome := ModifyOutcome{
		Profile:         req.Profile,
		Affected:        []string{},
		DataRemoved:     req.RemoveData,
		CreateBackup:    req.CreateBackup,
		RestartServices: req.RestartServices,
	}

	if len(req.Settings) > 0 {
		if next.Configuration == nil {
			next.Configuration = state.Configuration{}
		}
		incoming, err := state.Configuration(req.Settings).Normalize()
		if err != nil {
			return nil, ModifyOutcome{}, fmt.Errorf("modify %q: settings: %w: %v", req.Profile, state.ErrInvalidArgument, err)
		}
		keys := make([]string, 0, len(incoming))
		for k, v := range incoming {
			next.Configuration[k] = v
			keys = append(keys, k)
		}
		slices.Sort(keys)
		outcome.ChangedSettings = keys
	}

	for i := range next.Services {
		svc := &next.Services[i]
		if svc.Profile != req.Profile {
			continue
		}
		outcome.Affected = append(outcome.Affected, svc.Name)
		if req.RemoveData {
			svc.HasData = false
			svc.DataSize = nil
		}
	}

	return next, outcome, nil
}

// AddProfiles returns a copy of st with ids selected and a not-yet-created
// record for each of their catalog services. Already selected ids are ignored.
func AddProfiles(st *state.State, cat catalog.Catalog, ids ...string) (*state.State, error) {
	if st == nil {
		return nil, ErrNoInstallation
	}
	next := st.Clone()
	selected := slices.Clone(next.Profiles.Selected)

	for _, id := range ids {
		profile, ok := cat.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("add %q: %w", id, ErrUnknownProfile)
		}
		if slices.Contains(selected, id) {
			continue
		}
		selected = append(selected, id)
		for _, name := range profile.Services {
			if _, exists := next.Service(name); exists {
				continue
			}
			next.Services = append(next.Services, state.ServiceRecord{
				Name:        name,
				DisplayName: profile.DisplayName,
				Profile:     id,
			})
		}
	}

	next.Profiles = state.NewProfiles(selected...)
	next.Summary = state.Summarize(next.Services)
	return next, nil
}

// RemoveRequest removes installed profiles.
type RemoveRequest struct {
	Profiles []string
	// RemoveData drops the services' data along with their records.
	RemoveData   bool
	CreateBackup bool
}

// RemoveOutcome reports the services the caller must tear down.
type RemoveOutcome struct {
	Removed []string `json:"removed"`
	// Retained lists removed services whose data is kept on disk.
	Retained     []string `json:"retained,omitempty"`
	DataRemoved  bool     `json:"dataRemoved"`
	CreateBackup bool     `json:"createBackup"`
}

// RemoveProfiles returns a copy of st without the given profiles and their services.
func RemoveProfiles(st *state.State, req RemoveRequest) (*state.State, RemoveOutcome, error) {
	if st == nil {
		return nil, RemoveOutcome{}, ErrNoInstallation
	}
	for _, id := range req.Profiles {
		if !st.Profiles.Has(id) {
			return nil, RemoveOutcome{}, fmt.Errorf("remove %q: %w", id, ErrProfileNotInstalled)
		}
	}

	next := st.Clone()
	outcome := RemoveOutcome{
		Removed:      []string{},
		DataRemoved:  req.RemoveData,
		CreateBackup: req.CreateBackup,
	}

	kept := make([]state.ServiceRecord, 0, len(next.Services))
	for _, svc := range next.Services {
		if !slices.Contains(req.Profiles, svc.Profile) {
			kept = append(kept, svc)
			continue
		}
		outcome.Removed = append(outcome.Removed, svc.Name)
		if svc.HasData && !req.RemoveData {
			outcome.Retained = append(outcome.Retained, svc.Name)
		}
	}
	next.Services = kept

	selected := make([]string, 0, len(next.Profiles.Selected))
	for _, id := range next.Profiles.Selected {
		if !slices.Contains(req.Profiles, id) {
			selected = append(selected, id)
		}
	}
	next.Profiles = state.NewProfiles(selected...)
	next.Summary = state.Summarize(next.Services)
	return next, outcome, nil
}
