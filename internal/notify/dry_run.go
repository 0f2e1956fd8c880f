package notify

import (
	"context"

	"github.com/nholik/aio-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs changes without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, source string, changes []transition.Change) error {
	for _, change := range changes {
		n.logger.Info().
			Str("source", sourceOrDefault(source)).
			Str("kind", string(change.Kind)).
			Str("name", change.Name).
			Str("profile", change.Profile).
			Str("previous", change.Previous).
			Str("current", change.Current).
			Str("severity", string(change.Severity)).
			Strs("reasons", change.Reasons).
			Msg("[DRY-RUN] Would notify")
	}
	return nil
}
