package state

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is written into every document this package produces.
const SchemaVersion = "1.0.0"

// Phase is the installer's progress through an installation.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseInstalling Phase = "installing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhasePending, PhaseInstalling, PhaseComplete, PhaseError:
		return true
	default:
		return false
	}
}

// rank orders phases; complete and error share the terminal rank.
func (p Phase) rank() int {
	switch p {
	case PhasePending:
		return 0
	case PhaseInstalling:
		return 1
	default:
		return 2
	}
}

// Profiles lists the selected profile ids.
type Profiles struct {
	Selected []string `json:"selected"`
	Count    int      `json:"count"`
}

// NewProfiles builds a profiles block whose count matches its selection.
func NewProfiles(ids ...string) Profiles {
	selected := make([]string, 0, len(ids))
	selected = append(selected, ids...)
	return Profiles{Selected: selected, Count: len(selected)}
}

// Has reports whether id is selected.
func (p Profiles) Has(id string) bool {
	return slices.Contains(p.Selected, id)
}

// Configuration holds the network and feature flags chosen during installation.
type Configuration map[string]any

// Network returns the configured network name, or "" when unset.
func (c Configuration) Network() string {
	v, _ := c["network"].(string)
	return v
}

// PublicNode reports the publicNode flag.
func (c Configuration) PublicNode() bool {
	v, _ := c["publicNode"].(bool)
	return v
}

// NodePort returns the kaspaNodePort setting when it holds a valid port.
func (c Configuration) NodePort() (int, bool) {
	var port int
	switch v := c["kaspaNodePort"].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		port = int(v)
	case int:
		port = v
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		port = parsed
	default:
		return 0, false
	}
	if port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

// Normalize returns c as it reads back from a document: numbers become
// float64, slices become []any and nested maps map[string]any.
func (c Configuration) Normalize() (Configuration, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone returns a deep copy of c.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, inner := range typed {
			out[k] = cloneValue(inner)
		}
		return out
	case Configuration:
		return typed.Clone()
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return slices.Clone(typed)
	default:
		return v
	}
}

// ServiceRecord is the persisted view of one deployable service.
type ServiceRecord struct {
	Name          string   `json:"name"`
	DisplayName   string   `json:"displayName,omitempty"`
	Profile       string   `json:"profile"`
	Running       bool     `json:"running"`
	Exists        bool     `json:"exists"`
	ContainerName string   `json:"containerName,omitempty"`
	Ports         []string `json:"ports,omitempty"`
	HasData       bool     `json:"hasData"`
	DataSize      *string  `json:"dataSize"`
	ConfigPath    string   `json:"configPath,omitempty"`
}

// Clone returns a copy of r that shares no slices or pointers with it.
func (r ServiceRecord) Clone() ServiceRecord {
	out := r
	out.Ports = slices.Clone(r.Ports)
	if r.DataSize != nil {
		size := *r.DataSize
		out.DataSize = &size
	}
	return out
}

// Summary counts services by persisted condition.
type Summary struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Stopped int `json:"stopped"`
	Missing int `json:"missing"`
}

// Summarize derives a consistent summary from service records.
func Summarize(services []ServiceRecord) Summary {
	summary := Summary{Total: len(services)}
	for _, svc := range services {
		switch {
		case !svc.Exists:
			summary.Missing++
		case svc.Running:
			summary.Running++
		default:
			summary.Stopped++
		}
	}
	return summary
}

// State is the installation-state document shared by the wizard and the dashboard.
type State struct {
	Version       string          `json:"version"`
	InstalledAt   time.Time       `json:"installedAt"`
	LastModified  time.Time       `json:"lastModified"`
	Phase         Phase           `json:"phase"`
	Profiles      Profiles        `json:"profiles"`
	Configuration Configuration   `json:"configuration"`
	Services      []ServiceRecord `json:"services"`
	Summary       Summary         `json:"summary"`
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Profiles = NewProfiles(s.Profiles.Selected...)
	out.Profiles.Count = s.Profiles.Count
	out.Configuration = s.Configuration.Clone()
	out.Services = make([]ServiceRecord, len(s.Services))
	for i, svc := range s.Services {
		out.Services[i] = svc.Clone()
	}
	return &out
}

// Service returns the record named name.
func (s *State) Service(name string) (ServiceRecord, bool) {
	if s == nil {
		return ServiceRecord{}, false
	}
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc.Clone(), true
		}
	}
	return ServiceRecord{}, false
}

// ServiceNames returns the names of all recorded services in document order.
func (s *State) ServiceNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		names = append(names, svc.Name)
	}
	return names
}

// Encode serialises s as indented JSON terminated by a newline.
func Encode(s *State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Patch lists the fields Update replaces. Nil fields are left unchanged.
type Patch struct {
	Version       *string
	InstalledAt   *time.Time
	Phase         *Phase
	Profiles      []string
	Configuration Configuration
	Services      []ServiceRecord
	Summary       *Summary
}

func (p Patch) apply(s *State) {
	if p.Version != nil {
		s.Version = *p.Version
	}
	if p.InstalledAt != nil {
		s.InstalledAt = *p.InstalledAt
	}
	if p.Phase != nil {
		s.Phase = *p.Phase
	}
	if p.Profiles != nil {
		s.Profiles = NewProfiles(p.Profiles...)
	}
	if p.Configuration != nil {
		s.Configuration = p.Configuration.Clone()
	}
	if p.Services != nil {
		s.Services = make([]ServiceRecord, len(p.Services))
		for i, svc := range p.Services {
			s.Services[i] = svc.Clone()
		}
		if p.Summary == nil {
			s.Summary = Summarize(s.Services)
		}
	}
	if p.Summary != nil {
		s.Summary = *p.Summary
	}
}

// WatchFunc receives the re-read document after a change, or a watch failure.
// The state is nil when the document was removed or is unreadable.
type WatchFunc func(*State, error)

// Store persists and broadcasts the installation-state document.
type Store interface {
	Read(ctx context.Context) *State
	Inspect(ctx context.Context) Snapshot
	Write(ctx context.Context, s *State) error
	Update(ctx context.Context, patch Patch) error
	Watch(fn WatchFunc) (unsubscribe func())
	HasInstallation(ctx context.Context) bool
	Reset(ctx context.Context) error
}
