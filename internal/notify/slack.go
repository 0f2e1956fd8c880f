package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nholik/aio-sentinel/internal/transition"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	slackMaxBlocks = 50
	// header block + context block in each message
	slackReservedBlocks = 2
	slackMaxChanges     = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts change summaries to a Slack incoming webhook.
type SlackNotifier struct {
	logger zerolog.Logger
	poster *poster
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...Option) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; slack notifications disabled")
	}
	return &SlackNotifier{
		logger: logger,
		poster: newPoster(logger, "slack", webhookURL, newSettings(opts)),
	}
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, source string, changes []transition.Change) error {
	if len(changes) == 0 {
		return nil
	}
	source = sourceOrDefault(source)

	messages := buildSlackMessages(source, changes)
	payloads := make([][]byte, 0, len(messages))
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		payloads = append(payloads, payload)
	}

	if err := n.poster.deliver(ctx, source, payloads...); err != nil {
		return err
	}

	n.logger.Debug().
		Str("source", source).
		Int("changes", len(changes)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessages(source string, changes []transition.Change) []slack.WebhookMessage {
	if len(changes) == 0 {
		return nil
	}

	total := len(changes)
	parts := (total + slackMaxChanges - 1) / slackMaxChanges
	messages := make([]slack.WebhookMessage, 0, parts)

	for start := 0; start < total; start += slackMaxChanges {
		end := min(start+slackMaxChanges, total)
		part := start/slackMaxChanges + 1
		messages = append(messages, buildSlackMessage(source, changes[start:end], total, part, parts))
	}
	return messages
}

func buildSlackMessage(source string, changes []transition.Change, total, part, parts int) slack.WebhookMessage {
	summary := fmt.Sprintf("Kaspa AIO %s: %d change(s)", source, total)
	if parts > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, part, parts)
	}

	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, summary, false, false))
	elements := []slack.MixedElement{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Installation: *%s*", source), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, worstSeverityLabel(changes), false, false),
	}
	if parts > 1 {
		elements = append(elements, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Batch: %d/%d", part, parts), false, false))
	}

	blocks := []slack.Block{header, slack.NewContextBlock("", elements...)}
	for _, change := range changes {
		blocks = append(blocks, buildChangeBlock(change))
	}

	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

func buildChangeBlock(change transition.Change) slack.Block {
	title := fmt.Sprintf("%s *%s* (%s): `%s` → `%s`",
		severityIcon(change.Severity), change.Name, change.Kind, label(change.Previous), label(change.Current))
	text := slack.NewTextBlockObject(slack.MarkdownType, title, false, false)

	fields := make([]*slack.TextBlockObject, 0, 2)
	if change.Profile != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Profile:*\n"+change.Profile, false, false))
	}
	if len(change.Reasons) > 0 {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Reasons:*\n"+strings.Join(change.Reasons, ", "), false, false))
	}
	if len(fields) == 0 {
		fields = nil
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func worstSeverityLabel(changes []transition.Change) string {
	worst := transition.SeverityOK
	for _, change := range changes {
		switch change.Severity {
		case transition.SeverityCritical:
			worst = transition.SeverityCritical
		case transition.SeverityWarning:
			if worst == transition.SeverityOK {
				worst = transition.SeverityWarning
			}
		}
	}
	return fmt.Sprintf("Severity: *%s*", worst)
}

func severityIcon(severity transition.Severity) string {
	switch severity {
	case transition.SeverityCritical:
		return ":red_circle:"
	case transition.SeverityWarning:
		return ":large_yellow_circle:"
	default:
		return ":large_green_circle:"
	}
}

func label(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
