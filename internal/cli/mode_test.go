package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

type modeOutput struct {
	Mode      string   `json:"mode"`
	Installed []string `json:"installed"`
	Available []string `json:"available"`
	Actions   []string `json:"actions"`
	Profile   string   `json:"profile"`
	Services  []struct {
		Name    string `json:"name"`
		HasData bool   `json:"hasData"`
	} `json:"services"`
}

func TestModeWithoutInstallation(t *testing.T) {
	useStatePath(t)

	res := runCLI(t, "--format", "json", "mode")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	var out modeOutput
	if err := json.Unmarshal(decodeEnvelope(t, res.stdout).Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Mode != "fresh-install" {
		t.Fatalf("expected fresh-install, got %q", out.Mode)
	}
	if len(out.Installed) != 0 || len(out.Available) != 8 {
		t.Fatalf("expected whole catalog available, got %+v", out)
	}
	if len(out.Actions) != 0 {
		t.Fatalf("fresh install offers no actions, got %v", out.Actions)
	}
}

func TestModeReconfigureWithProfile(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "--format", "json", "mode", "--profile", "kaspa-node")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	var out modeOutput
	if err := json.Unmarshal(decodeEnvelope(t, res.stdout).Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Mode != "reconfigure" {
		t.Fatalf("expected reconfigure, got %q", out.Mode)
	}
	if len(out.Installed) != 1 || out.Installed[0] != "kaspa-node" {
		t.Fatalf("unexpected installed: %v", out.Installed)
	}
	for _, id := range out.Available {
		if id == "kaspa-node" {
			t.Fatalf("installed profile listed as available: %v", out.Available)
		}
	}
	if len(out.Services) != 1 || out.Services[0].Name != "kaspa-node" || !out.Services[0].HasData {
		t.Fatalf("unexpected services: %+v", out.Services)
	}
}

func TestModeText(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "mode")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "Mode:      reconfigure") || !strings.Contains(res.stdout, "add, remove, modify, manage") {
		t.Fatalf("unexpected output:\n%s", res.stdout)
	}
}
