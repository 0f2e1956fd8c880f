package state

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sync"
)

// MemoryBackend keeps the document in memory. It is used in tests and when
// the agent runs without a shared file.
type MemoryBackend struct {
	mu       sync.Mutex
	data     []byte
	present  bool
	nextID   int
	watchers map[int]memoryWatcher
}

type memoryWatcher struct {
	onChange func()
	onError  func(error)
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{watchers: make(map[int]memoryWatcher)}
}

func (b *MemoryBackend) Location() string {
	return "memory"
}

func (b *MemoryBackend) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present {
		return nil, fmt.Errorf("memory document: %w", fs.ErrNotExist)
	}
	return slices.Clone(b.data), nil
}

func (b *MemoryBackend) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.SetRaw(data)
	return nil
}

func (b *MemoryBackend) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.data = nil
	b.present = false
	b.mu.Unlock()
	b.notify()
	return nil
}

// SetRaw replaces the stored bytes without validation, as a hand edit would.
func (b *MemoryBackend) SetRaw(data []byte) {
	b.mu.Lock()
	b.data = slices.Clone(data)
	b.present = true
	b.mu.Unlock()
	b.notify()
}

// Fail reports err to every active watch.
func (b *MemoryBackend) Fail(err error) {
	for _, w := range b.snapshot() {
		w.onError(err)
	}
}

// Watchers returns the number of active watches.
func (b *MemoryBackend) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}

func (b *MemoryBackend) Watch(onChange func(), onError func(error)) (func() error, error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = memoryWatcher{onChange: onChange, onError: onError}
	b.mu.Unlock()

	var once sync.Once
	return func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
		return nil
	}, nil
}

func (b *MemoryBackend) snapshot() []memoryWatcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]memoryWatcher, 0, len(b.watchers))
	for _, w := range b.watchers {
		out = append(out, w)
	}
	return out
}

// notify runs callbacks outside the lock so they may read the document.
func (b *MemoryBackend) notify() {
	for _, w := range b.snapshot() {
		w.onChange()
	}
}
