package messaging

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
	"github.com/zulandar/relay/internal/models"
)

// Notifier pushes a human-facing notice outside the message store.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NewNotifier returns a Slack notifier for webhookURL, or a no-op notifier
// when the URL is empty.
func NewNotifier(webhookURL string) Notifier {
	if strings.TrimSpace(webhookURL) == "" {
		return nopNotifier{}
	}
	return &SlackNotifier{WebhookURL: webhookURL}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }

// SlackNotifier posts notices to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
}

// Notify posts text to the webhook.
func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	if err := slack.PostWebhookContext(ctx, n.WebhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("messaging: slack webhook: %w", err)
	}
	return nil
}

// NotifyMessage formats msg and sends it. Best-effort: errors are logged,
// not returned.
func NotifyMessage(ctx context.Context, n Notifier, msg models.Message) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("[%s] %s → %s: %s\n%s", msg.Priority, msg.From, msg.To, msg.Subject, msg.Body)
	if err := n.Notify(ctx, text); err != nil {
		log.Printf("notify: %v", err)
	}
}
