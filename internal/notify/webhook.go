package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/nholik/aio-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"source":"{{ .Source }}","generatedAt":"{{ .GeneratedAt.Format "2006-01-02T15:04:05Z07:00" }}","changes":{{ toJson .Changes }}}`

// WebhookPayload is the template context for webhook notifications.
type WebhookPayload struct {
	Source      string
	Changes     []transition.Change
	GeneratedAt time.Time
}

// WebhookNotifier sends change notifications to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *poster
	now      func() time.Time
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
// It returns nil when no URL is configured.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string, opts ...Option) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newPoster(logger, "webhook", webhookURL, newSettings(opts)),
		now:      time.Now,
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, source string, changes []transition.Change) error {
	if n == nil || len(changes) == 0 {
		return nil
	}
	source = sourceOrDefault(source)

	var buf bytes.Buffer
	payload := WebhookPayload{
		Source:      source,
		Changes:     changes,
		GeneratedAt: n.now().UTC(),
	}
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.poster.deliver(ctx, source, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("source", source).
		Int("changes", len(changes)).
		Msg("webhook notification sent")

	return nil
}
