package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Profile is a bundle of services that install and uninstall together.
type Profile struct {
	ID          string   `yaml:"id" json:"id"`
	DisplayName string   `yaml:"display_name" json:"displayName"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Services    []string `yaml:"services" json:"services"`
}

// File is the parsed YAML structure of a catalog file:
// profiles: [{id, display_name, description, services}]
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// Catalog is the ordered set of profiles that can be installed.
type Catalog struct {
	profiles []Profile
	byID     map[string]int
	owner    map[string]string
}

// New validates profiles and builds a catalog that keeps their order.
func New(profiles ...Profile) (Catalog, error) {
	c := Catalog{
		profiles: make([]Profile, 0, len(profiles)),
		byID:     make(map[string]int, len(profiles)),
		owner:    make(map[string]string),
	}
	for i, p := range profiles {
		if p.ID == "" {
			return Catalog{}, fmt.Errorf("profile %d: id is required", i)
		}
		if _, ok := c.byID[p.ID]; ok {
			return Catalog{}, fmt.Errorf("profile %q: duplicate id", p.ID)
		}
		if len(p.Services) == 0 {
			return Catalog{}, fmt.Errorf("profile %q: at least one service is required", p.ID)
		}
		for _, svc := range p.Services {
			if svc == "" {
				return Catalog{}, fmt.Errorf("profile %q: empty service name", p.ID)
			}
			if other, ok := c.owner[svc]; ok {
				return Catalog{}, fmt.Errorf("service %q belongs to both %q and %q", svc, other, p.ID)
			}
			c.owner[svc] = p.ID
		}
		if p.DisplayName == "" {
			p.DisplayName = p.ID
		}
		p.Services = slices.Clone(p.Services)
		c.byID[p.ID] = len(c.profiles)
		c.profiles = append(c.profiles, p)
	}
	return c, nil
}

// Parse reads a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Profiles) == 0 {
		return Catalog{}, fmt.Errorf("catalog contains no profiles")
	}
	return New(f.Profiles...)
}

// LoadFile parses the YAML catalog at path.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in Kaspa all-in-one catalog.
func Default() Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Profiles returns every profile in catalog order.
func (c Catalog) Profiles() []Profile {
	out := make([]Profile, len(c.profiles))
	for i, p := range c.profiles {
		p.Services = slices.Clone(p.Services)
		out[i] = p
	}
	return out
}

// IDs returns every profile id in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c.profiles))
	for _, p := range c.profiles {
		ids = append(ids, p.ID)
	}
	return ids
}

// Len returns the number of profiles.
func (c Catalog) Len() int {
	return len(c.profiles)
}

// Lookup returns the profile with the given id.
func (c Catalog) Lookup(id string) (Profile, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Profile{}, false
	}
	p := c.profiles[i]
	p.Services = slices.Clone(p.Services)
	return p, true
}

// ProfileOf returns the id of the profile that owns service.
func (c Catalog) ProfileOf(service string) (string, bool) {
	id, ok := c.owner[service]
	return id, ok
}
