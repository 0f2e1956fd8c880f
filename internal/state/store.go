package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/rs/zerolog"
)

// Status describes the outcome of reading the document.
type Status string

const (
	StatusPresent    Status = "present"
	StatusMissing    Status = "missing"
	StatusCorrupt    Status = "corrupt"
	StatusUnreadable Status = "unreadable"
)

// Snapshot is the explicit result of a read. State is set only when Status is present.
type Snapshot struct {
	State  *State
	Status Status
	Err    error
}

// DocumentStore implements Store on top of a Backend.
type DocumentStore struct {
	backend Backend
	logger  zerolog.Logger
	now     func() time.Time
	metrics *metrics.Metrics
	watches *registry

	writeMu   sync.Mutex
	lastStamp time.Time
}

// Option customizes a DocumentStore.
type Option func(*DocumentStore)

// WithClock overrides the clock used to stamp lastModified.
func WithClock(now func() time.Time) Option {
	return func(d *DocumentStore) {
		if now != nil {
			d.now = now
		}
	}
}

// WithMetrics records reads, writes and watch events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *DocumentStore) {
		d.metrics = m
	}
}

// NewDocumentStore returns a store over backend.
func NewDocumentStore(backend Backend, logger zerolog.Logger, opts ...Option) *DocumentStore {
	d := &DocumentStore{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.watches = newRegistry(d)
	return d
}

// NewFileStore returns a store for the JSON document at path.
func NewFileStore(path string, logger zerolog.Logger, opts ...Option) *DocumentStore {
	return NewDocumentStore(NewFileBackend(path, logger), logger, opts...)
}

// Read returns the current document, or nil when it is absent or invalid.
func (d *DocumentStore) Read(ctx context.Context) *State {
	return d.Inspect(ctx).State
}

// HasInstallation reports whether a valid document exists.
func (d *DocumentStore) HasInstallation(ctx context.Context) bool {
	return d.Read(ctx) != nil
}

// Inspect reads the document and reports why it is unavailable when it is.
// Missing and corrupt documents are ordinary outcomes, not errors.
func (d *DocumentStore) Inspect(ctx context.Context) Snapshot {
	snap := d.inspect(ctx)
	d.metrics.ObserveStateRead(string(snap.Status))

	event := d.logger.Debug()
	if snap.Status == StatusCorrupt || snap.Status == StatusUnreadable {
		event = d.logger.Warn()
	}
	if snap.Status != StatusPresent {
		event.Str("path", d.backend.Location()).
			Str("status", string(snap.Status)).
			Err(snap.Err).
			Msg("installation state unavailable")
	}
	return snap
}

func (d *DocumentStore) inspect(ctx context.Context) Snapshot {
	data, err := d.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{Status: StatusMissing}
		}
		return Snapshot{Status: StatusUnreadable, Err: err}
	}
	st, err := Decode(data)
	if err != nil {
		return Snapshot{Status: StatusCorrupt, Err: err}
	}
	return Snapshot{State: st, Status: StatusPresent}
}

// Write validates s and replaces the stored document with it. lastModified is
// stamped so it never decreases, and the phase may not move to a lower rank.
func (d *DocumentStore) Write(ctx context.Context, s *State) error {
	if s == nil {
		return fmt.Errorf("write installation state: nil state: %w", ErrInvalidArgument)
	}
	if err := Validate(s); err != nil {
		d.metrics.ObserveStateWrite("invalid")
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	doc := s.Clone()
	cfg, err := doc.Configuration.Normalize()
	if err != nil {
		d.metrics.ObserveStateWrite("invalid")
		return fmt.Errorf("write installation state: configuration: %w: %v", ErrInvalidArgument, err)
	}
	doc.Configuration = cfg
	stamp := d.now().UTC()
	if doc.LastModified.After(stamp) {
		stamp = doc.LastModified.UTC()
	}
	if d.lastStamp.After(stamp) {
		stamp = d.lastStamp
	}

	if current := d.inspect(ctx); current.State != nil {
		if current.State.Phase.rank() > doc.Phase.rank() {
			d.metrics.ObserveStateWrite("rejected")
			return fmt.Errorf("write installation state: %s -> %s: %w", current.State.Phase, doc.Phase, ErrPhaseRegression)
		}
		if current.State.LastModified.After(stamp) {
			stamp = current.State.LastModified.UTC()
		}
	}
	doc.LastModified = stamp

	data, err := Encode(doc)
	if err != nil {
		d.metrics.ObserveStateWrite("error")
		return fmt.Errorf("encode installation state: %w", err)
	}
	if err := d.backend.Save(ctx, data); err != nil {
		d.metrics.ObserveStateWrite("error")
		return fmt.Errorf("save installation state: %w", err)
	}
	d.lastStamp = stamp
	d.metrics.ObserveStateWrite("ok")

	d.logger.Debug().
		Str("path", d.backend.Location()).
		Str("phase", string(doc.Phase)).
		Int("services", len(doc.Services)).
		Msg("installation state written")
	return nil
}

// Update merges patch into the current document and writes the result.
func (d *DocumentStore) Update(ctx context.Context, patch Patch) error {
	current := d.Read(ctx)
	if current == nil {
		return fmt.Errorf("update installation state: %w", ErrNoInstallation)
	}
	patch.apply(current)
	return d.Write(ctx, current)
}

// Reset removes the document so the next installation starts over.
func (d *DocumentStore) Reset(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if err := d.backend.Remove(ctx); err != nil {
		return fmt.Errorf("reset installation state: %w", err)
	}
	d.lastStamp = time.Time{}
	d.logger.Info().Str("path", d.backend.Location()).Msg("installation state reset")
	return nil
}

// Watch subscribes fn to document changes. The returned function unsubscribes
// and is safe to call more than once.
func (d *DocumentStore) Watch(fn WatchFunc) func() {
	return d.watches.subscribe(fn)
}
