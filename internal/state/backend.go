package state

import "context"

// Backend stores the raw document bytes. Load must return an error satisfying
// errors.Is(err, fs.ErrNotExist) when no document exists, and Save must
// replace the whole document atomically.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
	// Watch calls onChange after the document changes and onError when
	// watching fails. The returned stop function releases the watch.
	Watch(onChange func(), onError func(error)) (stop func() error, err error)
	// Location names the document for logs.
	Location() string
}
