package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// registry fans change notifications out to subscribers. The backend watch
// runs only while at least one subscriber is registered.
type registry struct {
	store *DocumentStore

	mu   sync.Mutex
	subs map[string]WatchFunc
	stop func() error
}

func newRegistry(store *DocumentStore) *registry {
	return &registry{
		store: store,
		subs:  make(map[string]WatchFunc),
	}
}

func (r *registry) subscribe(fn WatchFunc) func() {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	id := uuid.NewString()
	r.subs[id] = fn
	if r.stop == nil {
		stop, err := r.store.backend.Watch(r.changed, r.failed)
		if err != nil {
			delete(r.subs, id)
			r.mu.Unlock()
			r.store.logger.Error().Err(err).Str("path", r.store.backend.Location()).Msg("failed to watch installation state")
			r.store.metrics.ObserveWatchEvent("error")
			r.deliver(fn, nil, err)
			return func() {}
		}
		r.stop = stop
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(id) })
	}
}

func (r *registry) unsubscribe(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	var stop func() error
	if len(r.subs) == 0 && r.stop != nil {
		stop = r.stop
		r.stop = nil
	}
	r.mu.Unlock()

	if stop != nil {
		if err := stop(); err != nil {
			r.store.logger.Warn().Err(err).Msg("failed to stop installation state watch")
		}
	}
}

// active returns the number of subscribers.
func (r *registry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *registry) changed() {
	st := r.store.Read(context.Background())
	r.store.metrics.ObserveWatchEvent("change")
	r.broadcast(st, nil)
}

func (r *registry) failed(err error) {
	r.store.metrics.ObserveWatchEvent("error")
	r.broadcast(nil, err)
}

func (r *registry) broadcast(st *State, err error) {
	r.mu.Lock()
	subs := make([]WatchFunc, 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		// Each subscriber gets its own copy.
		r.deliver(fn, st.Clone(), err)
	}
}

func (r *registry) deliver(fn WatchFunc, st *State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.store.logger.Error().Interface("panic", rec).Msg("installation state subscriber panicked")
		}
	}()
	fn(st, err)
}
