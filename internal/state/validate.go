package state

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	requiredKeys        = []string{"installedAt", "lastModified", "phase", "profiles", "configuration", "services", "summary"}
	requiredProfileKeys = []string{"selected", "count"}
	requiredSummaryKeys = []string{"total", "running", "stopped", "missing"}
)

// Decode parses a stored document. Only the shape is checked: required keys
// must be present and the phase must be known. Stale counts are accepted so a
// hand-edited file stays readable.
func Decode(data []byte) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrCorruptState)
	}
	if err := requireKeys(raw, requiredKeys, ""); err != nil {
		return nil, err
	}
	if _, ok := raw["version"]; !ok {
		if _, ok := raw["schemaVersion"]; !ok {
			return nil, fmt.Errorf("%w: missing key %q", ErrCorruptState, "version")
		}
	}
	if err := requireObjectKeys(raw["profiles"], requiredProfileKeys, "profiles."); err != nil {
		return nil, err
	}
	if err := requireObjectKeys(raw["summary"], requiredSummaryKeys, "summary."); err != nil {
		return nil, err
	}
	for _, key := range []string{"configuration", "services"} {
		if isNull(raw[key]) {
			return nil, fmt.Errorf("%w: %q is null", ErrCorruptState, key)
		}
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if s.Version == "" {
		if alias, ok := raw["schemaVersion"]; ok {
			if err := json.Unmarshal(alias, &s.Version); err != nil {
				return nil, fmt.Errorf("%w: schemaVersion: %v", ErrCorruptState, err)
			}
		}
	}
	if !s.Phase.Valid() {
		return nil, fmt.Errorf("%w: unknown phase %q", ErrCorruptState, s.Phase)
	}
	if s.Profiles.Selected == nil {
		s.Profiles.Selected = []string{}
	}
	if s.Services == nil {
		s.Services = []ServiceRecord{}
	}
	s.Profiles.Count = len(s.Profiles.Selected)
	s.Summary = Summarize(s.Services)
	return &s, nil
}

func requireKeys(raw map[string]json.RawMessage, keys []string, prefix string) error {
	for _, key := range keys {
		if _, ok := raw[key]; !ok {
			return fmt.Errorf("%w: missing key %q", ErrCorruptState, prefix+key)
		}
	}
	return nil
}

func requireObjectKeys(data json.RawMessage, keys []string, prefix string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return fmt.Errorf("%w: %q is not an object", ErrCorruptState, prefix[:len(prefix)-1])
	}
	return requireKeys(raw, keys, prefix)
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// Validate checks every invariant a document must satisfy before it is written.
func Validate(s *State) error {
	if s == nil {
		return fmt.Errorf("validate installation state: %w", ErrInvalidArgument)
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Version == "" {
		add("version is required")
	}
	if s.InstalledAt.IsZero() {
		add("installedAt is required")
	}
	if !s.Phase.Valid() {
		add("unknown phase %q", s.Phase)
	}
	if s.Configuration == nil {
		add("configuration is required")
	}
	if s.Profiles.Count != len(s.Profiles.Selected) {
		add("profiles.count %d does not match %d selected", s.Profiles.Count, len(s.Profiles.Selected))
	}
	seenProfiles := make(map[string]struct{}, len(s.Profiles.Selected))
	for _, id := range s.Profiles.Selected {
		if id == "" {
			add("profiles.selected contains an empty id")
			continue
		}
		if _, ok := seenProfiles[id]; ok {
			add("profile %q selected twice", id)
		}
		seenProfiles[id] = struct{}{}
	}

	seenServices := make(map[string]struct{}, len(s.Services))
	for i, svc := range s.Services {
		if svc.Name == "" {
			add("services[%d] has no name", i)
			continue
		}
		if _, ok := seenServices[svc.Name]; ok {
			add("service %q recorded twice", svc.Name)
		}
		seenServices[svc.Name] = struct{}{}
		if svc.Profile == "" {
			add("service %q has no profile", svc.Name)
		}
	}

	sum := s.Summary
	if sum.Total < 0 || sum.Running < 0 || sum.Stopped < 0 || sum.Missing < 0 {
		add("summary counts must not be negative")
	}
	if sum.Total != len(s.Services) {
		add("summary.total %d does not match %d services", sum.Total, len(s.Services))
	}
	if sum.Running+sum.Stopped+sum.Missing != sum.Total {
		add("summary running+stopped+missing %d does not match total %d", sum.Running+sum.Stopped+sum.Missing, sum.Total)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
