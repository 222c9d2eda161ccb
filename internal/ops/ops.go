// Package ops posts operational notifications to a Slack incoming webhook.
// All error visibility in this subsystem is operational; customers and
// garages only ever see a delivered email or nothing.
package ops

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

// Notifier sends best-effort operational messages. The zero value (no
// webhook configured) silently drops everything.
type Notifier struct {
	WebhookURL string
}

// Notify posts a formatted message. Best-effort: failures are logged, never
// returned, because an unreachable ops channel must not affect the
// pipeline.
func (n *Notifier) Notify(ctx context.Context, format string, args ...any) {
	if n == nil || n.WebhookURL == "" {
		return
	}
	msg := &slack.WebhookMessage{Text: fmt.Sprintf(format, args...)}
	if err := slack.PostWebhookContext(ctx, n.WebhookURL, msg); err != nil {
		log.Printf("ops: slack webhook failed: %v", err)
	}
}
