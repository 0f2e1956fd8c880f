package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 200 * time.Millisecond

// FileBackend keeps the document in a single JSON file.
type FileBackend struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
}

// FileOption customizes a FileBackend.
type FileOption func(*FileBackend)

// WithDebounce sets how long file events are coalesced before a change is reported.
func WithDebounce(d time.Duration) FileOption {
	return func(b *FileBackend) {
		if d > 0 {
			b.debounce = d
		}
	}
}

// NewFileBackend returns a backend for the document at path.
func NewFileBackend(path string, logger zerolog.Logger, opts ...FileOption) *FileBackend {
	b := &FileBackend{
		path:     path,
		debounce: defaultDebounce,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *FileBackend) Location() string {
	return b.path
}

func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(b.path)
}

// Save writes data to a temporary file in the same directory and renames it
// over the document so readers never observe a partial write.
func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".installation-state-*.json")
	if err != nil {
		return err
	}

	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Chmod(0o644); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.Rename(tempFile.Name(), b.path); err != nil {
		cleanup()
		return err
	}

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	return nil
}

func (b *FileBackend) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Watch observes the parent directory, since the document is replaced by
// rename and may not exist yet.
func (b *FileBackend) Watch(onChange func(), onError func(error)) (func() error, error) {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &fileWatch{
		watcher:  watcher,
		name:     filepath.Base(b.path),
		debounce: b.debounce,
		onChange: onChange,
		onError:  onError,
		logger:   b.logger,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()

	b.logger.Debug().Str("path", b.path).Msg("watching installation state")
	return w.stop, nil
}

type fileWatch struct {
	watcher  *fsnotify.Watcher
	name     string
	debounce time.Duration
	onChange func()
	onError  func(error)
	logger   zerolog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

func (w *fileWatch) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.logger.Trace().Str("event", event.Op.String()).Msg("installation state file event")
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("installation state watcher error")
			// Delivered off the loop so a subscriber may unsubscribe from its callback.
			go w.onError(err)
		}
	}
}

// schedule coalesces bursts of events into one change notification.
func (w *fileWatch) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *fileWatch) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if !stopped {
		w.onChange()
	}
}

func (w *fileWatch) stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		close(w.done)
		w.stopErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.stopErr
}
