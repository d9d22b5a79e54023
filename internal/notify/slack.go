package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"
)

// postFunc matches slackapi.PostWebhookContext.
type postFunc func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Slack posts messages to an incoming webhook.
type Slack struct {
	webhookURL  string
	post        postFunc
	baseBackoff time.Duration
}

// NewSlack returns a Sender for a Slack incoming webhook URL.
func NewSlack(webhookURL string) *Slack {
	return &Slack{webhookURL: webhookURL, post: slackapi.PostWebhookContext, baseBackoff: time.Second}
}

// Name implements Sender.
func (s *Slack) Name() string { return "slack" }

// Send implements Sender. Rate-limited posts are retried after the delay
// Slack asks for.
func (s *Slack) Send(ctx context.Context, msg Message) error {
	payload := slackMessage(msg)
	for attempt := 0; ; attempt++ {
		err := s.post(ctx, s.webhookURL, payload)
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return fmt.Errorf("post webhook: %w", err)
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = backoff(attempt, s.baseBackoff)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// slackMessage converts a Message into a webhook payload with one attachment.
func slackMessage(msg Message) *slackapi.WebhookMessage {
	att := slackapi.Attachment{
		Title:    msg.Title,
		Text:     msg.Body,
		Color:    msg.Color,
		Fallback: msg.Title,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return &slackapi.WebhookMessage{
		Text:        msg.Title,
		Attachments: []slackapi.Attachment{att},
	}
}
