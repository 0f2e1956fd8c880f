package navigation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

// DefaultMaxSnapshot is the largest serialised snapshot carried in a link.
const DefaultMaxSnapshot = 2000

const (
	keyAction   = "action"
	keyProfile  = "profile"
	keyService  = "service"
	keyReturnTo = "returnTo"
	keyState    = "state"
)

// Action is what the receiving UI should do.
type Action string

const (
	ActionAdd    Action = "add"
	ActionModify Action = "modify"
	ActionRemove Action = "remove"
	ActionView   Action = "view"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAdd, ActionModify, ActionRemove, ActionView:
		return true
	default:
		return false
	}
}

// Context is handed from one UI to the other through a link. Snapshot is a
// JSON object carried verbatim in compact form.
type Context struct {
	Action   Action
	Profile  string
	Service  string
	ReturnTo string
	Snapshot json.RawMessage
}

// NewSnapshot serialises v as a compact snapshot.
func NewSnapshot(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return compactObject(data)
}

// compactObject returns data compacted, or an error when it is not a single JSON object.
func compactObject(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	if buf.Len() == 0 || buf.Bytes()[0] != '{' {
		return nil, errors.New("snapshot is not a JSON object")
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Codec encodes contexts into links and back.
type Codec struct {
	logger      zerolog.Logger
	maxSnapshot int
}

// Option customizes a Codec.
type Option func(*Codec)

// WithMaxSnapshot changes the snapshot size ceiling.
func WithMaxSnapshot(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxSnapshot = n
		}
	}
}

// NewCodec returns a codec that logs skipped fields to logger.
func NewCodec(logger zerolog.Logger, opts ...Option) *Codec {
	c := &Codec{logger: logger, maxSnapshot: DefaultMaxSnapshot}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode sets ctx's fields as query parameters on base, replacing any that
// are already present. Unknown actions and oversized snapshots are left out.
func (c *Codec) Encode(base string, ctx Context) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	for _, key := range []string{keyAction, keyProfile, keyService, keyReturnTo, keyState} {
		q.Del(key)
	}

	switch {
	case ctx.Action == "":
	case ctx.Action.Valid():
		q.Set(keyAction, string(ctx.Action))
	default:
		c.logger.Warn().Str("action", string(ctx.Action)).Msg("dropping unknown navigation action")
	}
	setIf(q, keyProfile, ctx.Profile)
	setIf(q, keyService, ctx.Service)
	setIf(q, keyReturnTo, ctx.ReturnTo)

	if ctx.Snapshot != nil {
		encoded, err := compactObject(ctx.Snapshot)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Msg("skipping malformed navigation snapshot")
		case len(encoded) > c.maxSnapshot:
			c.logger.Warn().Int("size", len(encoded)).Int("limit", c.maxSnapshot).Msg("skipping oversized navigation snapshot")
		default:
			q.Set(keyState, string(encoded))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decode reads a context from rawURL's query. Unknown actions, oversized
// snapshots and malformed snapshots are skipped rather than rejected.
func (c *Codec) Decode(rawURL string) (Context, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Context{}, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()

	var ctx Context
	if action := Action(q.Get(keyAction)); action != "" {
		if action.Valid() {
			ctx.Action = action
		} else {
			c.logger.Debug().Str("action", string(action)).Msg("ignoring unknown navigation action")
		}
	}
	ctx.Profile = q.Get(keyProfile)
	ctx.Service = q.Get(keyService)
	ctx.ReturnTo = q.Get(keyReturnTo)

	if raw := q.Get(keyState); raw != "" {
		if len(raw) > c.maxSnapshot {
			c.logger.Warn().Int("size", len(raw)).Int("limit", c.maxSnapshot).Msg("ignoring oversized navigation snapshot")
			return ctx, nil
		}
		snapshot, err := compactObject([]byte(raw))
		if err != nil {
			c.logger.Warn().Err(err).Msg("ignoring malformed navigation snapshot")
			return ctx, nil
		}
		ctx.Snapshot = snapshot
	}

	return ctx, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
