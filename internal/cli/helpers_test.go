package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nholik/aio-sentinel/internal/state"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI executes the command line without reading a dotenv file.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--env-file", ""}, args...)
	code := Execute(context.Background(), full, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Category string `json:"category"`
		Recovery string `json:"recovery"`
	} `json:"error"`
	Detail string `json:"detail"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	return env
}

// useStatePath points the CLI at a state file in a temp dir.
func useStatePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "installation-state.json")
	t.Setenv("AIO_STATE_PATH", path)
	return path
}

func nodeState() *state.State {
	size := "12G"
	services := []state.ServiceRecord{{
		Name:          "kaspa-node",
		DisplayName:   "Kaspa Node",
		Profile:       "kaspa-node",
		Running:       true,
		Exists:        true,
		ContainerName: "kaspa-node",
		HasData:       true,
		DataSize:      &size,
	}}
	installed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &state.State{
		Version:       state.SchemaVersion,
		InstalledAt:   installed,
		LastModified:  installed,
		Phase:         state.PhaseComplete,
		Profiles:      state.NewProfiles("kaspa-node"),
		Configuration: state.Configuration{"network": "mainnet"},
		Services:      services,
		Summary:       state.Summarize(services),
	}
}

func writeState(t *testing.T, path string, st *state.State) {
	t.Helper()
	data, err := state.Encode(st)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
}

func readState(t *testing.T, path string) *state.State {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	st, err := state.Decode(data)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}
