package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

const (
	// CoreProfile collects services that declare no compose profile.
	CoreProfile = "core"

	labelDisplayName = "io.kaspa-aio.profile.display-name"
	labelDescription = "io.kaspa-aio.profile.description"
)

// FromCompose derives a catalog from the profiles declared in a compose file.
// Each service belongs to its first declared profile. Profiles are ordered by id.
func FromCompose(ctx context.Context, body []byte) (Catalog, error) {
	if len(body) == 0 {
		return Catalog{}, errors.New("compose body is empty")
	}

	details := types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{
				Filename: "docker-compose.yml",
				Content:  body,
			},
		},
		Environment: types.Mapping{},
	}

	project, err := loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SetProjectName("kaspa-aio", false)
		opts.Profiles = []string{"*"}
	})
	if err != nil {
		return Catalog{}, fmt.Errorf("load compose: %w", err)
	}

	services := make(map[string]types.ServiceConfig, len(project.Services)+len(project.DisabledServices))
	for name, svc := range project.Services {
		services[name] = svc
	}
	for name, svc := range project.DisabledServices {
		services[name] = svc
	}
	if len(services) == 0 {
		return Catalog{}, errors.New("compose has no services")
	}

	byProfile := make(map[string]*Profile)
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		svc := services[name]
		id := CoreProfile
		if len(svc.Profiles) > 0 {
			id = svc.Profiles[0]
		}
		p, ok := byProfile[id]
		if !ok {
			p = &Profile{ID: id, DisplayName: displayName(id)}
			byProfile[id] = p
		}
		if v := svc.Labels[labelDisplayName]; v != "" {
			p.DisplayName = v
		}
		if v := svc.Labels[labelDescription]; v != "" {
			p.Description = v
		}
		p.Services = append(p.Services, serviceName(name, svc))
	}

	ids := make([]string, 0, len(byProfile))
	for id := range byProfile {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	profiles := make([]Profile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, *byProfile[id])
	}
	return New(profiles...)
}

// serviceName prefers the explicit container name, which is what the runtime reports.
func serviceName(name string, svc types.ServiceConfig) string {
	if svc.ContainerName != "" {
		return svc.ContainerName
	}
	return name
}

func displayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
