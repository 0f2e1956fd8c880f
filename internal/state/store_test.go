package state

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDocumentStore_WriteThenRead(t *testing.T) {
	now := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop(), WithClock(fixedClock(now)))

	size := "12.4 GB"
	want := completeNodeState()
	want.Services[0].DataSize = &size
	want.Services[0].ConfigPath = "/opt/kaspa/node.conf"

	if err := store.Write(context.Background(), want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := store.Read(context.Background())
	if got == nil {
		t.Fatalf("expected state, got nil")
	}

	if got.Version != want.Version || got.Phase != want.Phase {
		t.Fatalf("unexpected header: %+v", got)
	}
	if !got.InstalledAt.Equal(want.InstalledAt) {
		t.Fatalf("installedAt changed: %v", got.InstalledAt)
	}
	if !got.LastModified.Equal(now) {
		t.Fatalf("expected lastModified %v, got %v", now, got.LastModified)
	}
	if got.Profiles.Count != 1 || got.Profiles.Selected[0] != "kaspa-node" {
		t.Fatalf("unexpected profiles: %+v", got.Profiles)
	}
	if got.Configuration.Network() != "mainnet" || got.Configuration.PublicNode() {
		t.Fatalf("unexpected configuration: %+v", got.Configuration)
	}
	if got.Summary != want.Summary {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
	svc, ok := got.Service("kaspa-node")
	if !ok {
		t.Fatalf("expected kaspa-node record")
	}
	if svc.DataSize == nil || *svc.DataSize != size {
		t.Fatalf("unexpected data size: %v", svc.DataSize)
	}
	if svc.ConfigPath != "/opt/kaspa/node.conf" || len(svc.Ports) != 2 || !svc.Running || !svc.Exists {
		t.Fatalf("unexpected service record: %+v", svc)
	}

	masked := got.Clone()
	masked.LastModified = want.LastModified
	masked.InstalledAt = want.InstalledAt
	if !reflect.DeepEqual(masked, want) {
		t.Fatalf("read differs from write:\n got %+v\nwant %+v", masked, want)
	}
}

func TestDocumentStore_ConfigurationIsStoredAsJSON(t *testing.T) {
	store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop())
	ctx := context.Background()

	written := completeNodeState()
	written.Configuration["kaspaNodePort"] = 16110
	written.Configuration["extraPorts"] = []string{"16111"}
	if err := store.Write(ctx, written); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := written.Configuration["kaspaNodePort"].(int); !ok {
		t.Fatalf("write must not modify its argument")
	}

	first := store.Read(ctx)
	if port, ok := first.Configuration.NodePort(); !ok || port != 16110 {
		t.Fatalf("expected node port 16110, got %d %v", port, ok)
	}
	if _, ok := first.Configuration["extraPorts"].([]any); !ok {
		t.Fatalf("expected JSON array, got %T", first.Configuration["extraPorts"])
	}

	// A document read back and written again must read back unchanged.
	if err := store.Write(ctx, first); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second := store.Read(ctx)
	second.LastModified = first.LastModified
	if !reflect.DeepEqual(second, first) {
		t.Fatalf("rewrite changed the document:\n got %+v\nwant %+v", second, first)
	}
}

func TestDocumentStore_UnencodableConfigurationRejected(t *testing.T) {
	store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop())

	st := completeNodeState()
	st.Configuration["callback"] = func() {}
	if err := store.Write(context.Background(), st); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDocumentStore_CompleteInstallIsDetected(t *testing.T) {
	store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop())
	ctx := context.Background()

	if store.HasInstallation(ctx) {
		t.Fatalf("expected no installation before the first write")
	}
	if err := store.Write(ctx, completeNodeState()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !store.HasInstallation(ctx) {
		t.Fatalf("expected installation after write")
	}
	got := store.Read(ctx)
	if len(got.Profiles.Selected) != 1 || got.Profiles.Selected[0] != "kaspa-node" {
		t.Fatalf("unexpected selected profiles: %v", got.Profiles.Selected)
	}
}

func TestDocumentStore_CorruptDocument(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "truncated", data: `{"version":"1.0.0","phase":"comp`},
		{name: "not an object", data: `[1,2,3]`},
		{name: "null", data: `null`},
		{name: "missing services", data: `{"version":"1.0.0","installedAt":"2024-05-01T12:00:00Z","lastModified":"2024-05-01T12:00:00Z","phase":"complete","profiles":{"selected":[],"count":0},"configuration":{},"summary":{"total":0,"running":0,"stopped":0,"missing":0}}`},
		{name: "unknown phase", data: `{"version":"1.0.0","installedAt":"2024-05-01T12:00:00Z","lastModified":"2024-05-01T12:00:00Z","phase":"done","profiles":{"selected":[],"count":0},"configuration":{},"services":[],"summary":{"total":0,"running":0,"stopped":0,"missing":0}}`},
		{name: "summary without counts", data: `{"version":"1.0.0","installedAt":"2024-05-01T12:00:00Z","lastModified":"2024-05-01T12:00:00Z","phase":"complete","profiles":{"selected":[],"count":0},"configuration":{},"services":[],"summary":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryBackend()
			backend.SetRaw([]byte(tt.data))
			store := NewDocumentStore(backend, zerolog.Nop())

			if st := store.Read(context.Background()); st != nil {
				t.Fatalf("expected nil state, got %+v", st)
			}
			if store.HasInstallation(context.Background()) {
				t.Fatalf("expected no installation")
			}
			snap := store.Inspect(context.Background())
			if snap.Status != StatusCorrupt {
				t.Fatalf("expected corrupt status, got %s", snap.Status)
			}
			if !errors.Is(snap.Err, ErrCorruptState) {
				t.Fatalf("expected ErrCorruptState, got %v", snap.Err)
			}
		})
	}
}

func TestDocumentStore_ReadAcceptsStaleCountsAndAlias(t *testing.T) {
	backend := NewMemoryBackend()
	backend.SetRaw([]byte(`{
  "schemaVersion": "1.0.0",
  "installedAt": "2024-05-01T12:00:00Z",
  "lastModified": "2024-05-01T12:00:00Z",
  "phase": "installing",
  "profiles": {"selected": ["kaspa-node"], "count": 3},
  "configuration": {"network": "testnet-10"},
  "services": [],
  "summary": {"total": 9, "running": 0, "stopped": 0, "missing": 0}
}`))
	store := NewDocumentStore(backend, zerolog.Nop())

	st := store.Read(context.Background())
	if st == nil {
		t.Fatalf("expected hand-edited document to be readable")
	}
	if st.Version != "1.0.0" {
		t.Fatalf("expected schemaVersion alias to populate version, got %q", st.Version)
	}
	if st.Configuration.Network() != "testnet-10" {
		t.Fatalf("unexpected network %q", st.Configuration.Network())
	}
	if st.Profiles.Count != 1 {
		t.Fatalf("expected profile count recomputed to 1, got %d", st.Profiles.Count)
	}
	if st.Summary != (Summary{}) {
		t.Fatalf("expected summary recomputed from services, got %+v", st.Summary)
	}

	complete := PhaseComplete
	if err := store.Update(context.Background(), Patch{Phase: &complete}); err != nil {
		t.Fatalf("update of a hand-edited document: %v", err)
	}
	if got := store.Read(context.Background()); got == nil || got.Phase != PhaseComplete {
		t.Fatalf("expected phase complete after update, got %+v", got)
	}
}

func TestDocumentStore_InspectMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop())

	snap := store.Inspect(context.Background())
	if snap.Status != StatusMissing || snap.State != nil || snap.Err != nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestDocumentStore_WriteRejectsInvalid(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewDocumentStore(backend, zerolog.Nop())

	if err := store.Write(context.Background(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil state, got %v", err)
	}

	bad := completeNodeState()
	bad.Profiles.Count = 2
	bad.Summary.Running = 0

	err := store.Write(context.Background(), bad)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected validation error to wrap ErrInvalidArgument")
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", verr.Problems)
	}
	if _, err := backend.Load(context.Background()); err == nil {
		t.Fatalf("expected storage to be untouched")
	}
}

func TestDocumentStore_LastModifiedNeverDecreases(t *testing.T) {
	backend := NewMemoryBackend()
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	first := NewDocumentStore(backend, zerolog.Nop(), WithClock(fixedClock(later)))
	if err := first.Write(context.Background(), completeNodeState()); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A second writer with a lagging clock.
	second := NewDocumentStore(backend, zerolog.Nop(), WithClock(fixedClock(earlier)))
	if err := second.Write(context.Background(), completeNodeState()); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := second.Read(context.Background())
	if got.LastModified.Before(later) {
		t.Fatalf("expected lastModified >= %v, got %v", later, got.LastModified)
	}
}

func TestDocumentStore_PhaseTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Phase
		to      Phase
		wantErr bool
	}{
		{name: "advance", from: PhasePending, to: PhaseInstalling},
		{name: "finish", from: PhaseInstalling, to: PhaseComplete},
		{name: "complete to error", from: PhaseComplete, to: PhaseError},
		{name: "error to complete", from: PhaseError, to: PhaseComplete},
		{name: "back to installing", from: PhaseComplete, to: PhaseInstalling, wantErr: true},
		{name: "back to pending", from: PhaseInstalling, to: PhasePending, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop())
			st := completeNodeState()
			st.Phase = tt.from
			if err := store.Write(context.Background(), st); err != nil {
				t.Fatalf("seed write: %v", err)
			}

			st.Phase = tt.to
			err := store.Write(context.Background(), st)
			if tt.wantErr {
				if !errors.Is(err, ErrPhaseRegression) {
					t.Fatalf("expected ErrPhaseRegression, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDocumentStore_ResetAllowsStartOver(t *testing.T) {
	store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Write(ctx, completeNodeState()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if store.HasInstallation(ctx) {
		t.Fatalf("expected no installation after reset")
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("second reset should be a no-op: %v", err)
	}

	pending := completeNodeState()
	pending.Phase = PhasePending
	if err := store.Write(ctx, pending); err != nil {
		t.Fatalf("expected pending write after reset, got %v", err)
	}
}

func TestDocumentStore_Update(t *testing.T) {
	store := NewDocumentStore(NewMemoryBackend(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Update(ctx, Patch{}); !errors.Is(err, ErrNoInstallation) {
		t.Fatalf("expected ErrNoInstallation, got %v", err)
	}

	if err := store.Write(ctx, completeNodeState()); err != nil {
		t.Fatalf("write: %v", err)
	}

	services := []ServiceRecord{
		{Name: "kaspa-node", Profile: "kaspa-node", Running: true, Exists: true},
		{Name: "kasia-app", Profile: "kasia-app", Exists: true},
		{Name: "kasia-indexer", Profile: "kasia-indexer"},
	}
	err := store.Update(ctx, Patch{
		Profiles: []string{"kaspa-node", "kasia-app", "kasia-indexer"},
		Services: services,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got := store.Read(ctx)
	if got.Profiles.Count != 3 {
		t.Fatalf("expected 3 profiles, got %d", got.Profiles.Count)
	}
	want := Summary{Total: 3, Running: 1, Stopped: 1, Missing: 1}
	if got.Summary != want {
		t.Fatalf("expected recomputed summary %+v, got %+v", want, got.Summary)
	}
	if got.Configuration.Network() != "mainnet" {
		t.Fatalf("expected configuration to be kept")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kaspa-aio", "installation-state.json")
	writer := NewFileStore(path, zerolog.Nop())
	reader := NewFileStore(path, zerolog.Nop())

	if err := writer.Write(context.Background(), completeNodeState()); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := reader.Read(context.Background())
	if got == nil {
		t.Fatalf("expected the second process to see the document")
	}
	if got.Phase != PhaseComplete || got.Summary.Running != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
}
