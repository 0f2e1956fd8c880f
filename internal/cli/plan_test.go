package cli

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/nholik/aio-sentinel/internal/faults"
	"github.com/nholik/aio-sentinel/internal/state"
)

func TestPlanAddPreviewDoesNotWrite(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "plan", "add", "kasia-app")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "Planned add: profiles now kaspa-node, kasia-app") {
		t.Fatalf("unexpected output:\n%s", res.stdout)
	}
	if got := readState(t, path).Profiles.Selected; !reflect.DeepEqual(got, []string{"kaspa-node"}) {
		t.Fatalf("preview must not write, profiles=%v", got)
	}
}

func TestPlanAddApply(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "plan", "add", "kasia-app", "--apply")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	st := readState(t, path)
	if !slices.Contains(st.Profiles.Selected, "kasia-app") {
		t.Fatalf("expected kasia-app selected, got %v", st.Profiles.Selected)
	}
	svc, ok := st.Service("kasia-app")
	if !ok || svc.Exists || svc.Running {
		t.Fatalf("expected pending kasia-app record, got %+v", svc)
	}
	if st.Summary.Total != 2 || st.Summary.Missing != 1 {
		t.Fatalf("unexpected summary: %+v", st.Summary)
	}
}

func TestPlanUnknownProfileIsUsageError(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "plan", "add", "not-a-profile")
	if res.code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, res.code)
	}
}

func TestPlanWithoutInstallation(t *testing.T) {
	useStatePath(t)

	res := runCLI(t, "plan", "remove", "kaspa-node")
	if res.code != 3 {
		t.Fatalf("expected exit 3, got %d", res.code)
	}
}

func TestPlanModifyKeepsDataAndMergesSettings(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "plan", "modify", "kaspa-node", "--set", "publicNode=true", "--set", "kaspaNodePort=16210", "--apply")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	st := readState(t, path)
	if !st.Configuration.PublicNode() {
		t.Fatalf("expected publicNode true, got %v", st.Configuration)
	}
	if port, ok := st.Configuration.NodePort(); !ok || port != 16210 {
		t.Fatalf("expected node port 16210, got %d %v", port, ok)
	}
	svc, _ := st.Service("kaspa-node")
	if !svc.HasData || svc.DataSize == nil || *svc.DataSize != "12G" {
		t.Fatalf("modification without --remove-data must keep data, got %+v", svc)
	}
}

func TestPlanRemoveRetainsData(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "--format", "json", "plan", "remove", "kaspa-node")
	if res.code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, `"retained"`) {
		t.Fatalf("expected retained services in outcome:\n%s", res.stdout)
	}
}

func TestParseSettings(t *testing.T) {
	got, err := parseSettings([]string{"network=testnet-10", "publicNode=false", "kaspaNodePort=16110", "empty="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{
		"network":       "testnet-10",
		"publicNode":    false,
		"kaspaNodePort": 16110,
		"empty":         "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := parseSettings([]string{"novalue"}); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}

func TestPlanWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "invalid document", err: &state.ValidationError{Problems: []string{"version is required"}}, code: ExitUsage},
		{name: "phase regression", err: fmt.Errorf("write: %w", state.ErrPhaseRegression), code: ExitUsage},
		{name: "save failure", err: errors.New("disk full"), code: faults.ExitCode(faults.CategoryGenericAPIFailure)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := planWriteError(tt.err)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v to be wrapped, got %v", tt.err, err)
			}
			code := faults.ExitCode(faults.Classify(err))
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.Code
			}
			if code != tt.code {
				t.Fatalf("expected exit %d, got %d", tt.code, code)
			}
		})
	}
}

func TestPlanModifyRejectsEmptySettingKey(t *testing.T) {
	path := useStatePath(t)
	writeState(t, path, nodeState())

	res := runCLI(t, "plan", "modify", "kaspa-node", "--set", "=oops")
	if res.code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, res.code)
	}
}
