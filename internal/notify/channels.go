package notify

import (
	"github.com/rs/zerolog"
)

// Channels selects the delivery targets for change notifications.
type Channels struct {
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	DryRun          bool
}

// New assembles the notifier for the configured channels. With no channel
// configured the result drops everything; in dry-run mode it only logs.
func New(logger zerolog.Logger, channels Channels, opts ...Option) (Notifier, error) {
	targets := make([]Notifier, 0, 2)
	if channels.SlackWebhookURL != "" {
		targets = append(targets, NewSlackNotifier(logger, channels.SlackWebhookURL, opts...))
	}
	webhook, err := NewWebhookNotifier(logger, channels.WebhookURL, channels.WebhookTemplate, opts...)
	if err != nil {
		return nil, err
	}
	if webhook != nil {
		targets = append(targets, webhook)
	}

	var notifier Notifier
	switch len(targets) {
	case 0:
		if !channels.DryRun {
			return NewNoop(logger, "no notification channel configured; notifications disabled"), nil
		}
		notifier = NewNoop(logger, "")
	case 1:
		notifier = targets[0]
	default:
		notifier = NewMultiNotifier(targets...)
	}

	if channels.DryRun {
		logger.Warn().Msg("dry-run enabled; notifications will be logged only")
		return NewDryRunNotifier(logger, notifier), nil
	}
	return notifier, nil
}
