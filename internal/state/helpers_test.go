package state

import (
	"time"
)

var testInstalledAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func completeNodeState() *State {
	services := []ServiceRecord{{
		Name:    "kaspa-node",
		Profile: "kaspa-node",
		Running: true,
		Exists:  true,
		Ports:   []string{"16110/tcp", "16111/tcp"},
		HasData: true,
	}}
	return &State{
		Version:       SchemaVersion,
		InstalledAt:   testInstalledAt,
		Phase:         PhaseComplete,
		Profiles:      NewProfiles("kaspa-node"),
		Configuration: Configuration{"network": "mainnet", "publicNode": false},
		Services:      services,
		Summary:       Summarize(services),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
