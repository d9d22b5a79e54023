package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// webhookExecutor is the subset of *discordgo.Session used here.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts messages to a channel webhook.
type Discord struct {
	webhookID   string
	token       string
	sess        webhookExecutor
	baseBackoff time.Duration
}

// NewDiscord returns a Sender for a Discord webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := ParseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution needs no bot token.
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &Discord{webhookID: id, token: token, sess: sess, baseBackoff: time.Second}, nil
}

// ParseDiscordWebhook extracts the webhook id and token from its URL.
func ParseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("notify: discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "webhooks" && i+2 < len(parts) {
			id, token = parts[i+1], parts[i+2]
			break
		}
	}
	if id == "" || token == "" {
		return "", "", fmt.Errorf("notify: discord webhook url %q has no /webhooks/<id>/<token>", raw)
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", "", fmt.Errorf("notify: discord webhook id %q is not numeric", id)
	}
	return id, token, nil
}

// Name implements Sender.
func (d *Discord) Name() string { return "discord" }

// Send implements Sender. HTTP 429 responses are retried with exponential
// backoff.
func (d *Discord) Send(ctx context.Context, msg Message) error {
	params := discordMessage(msg)
	for attempt := 0; ; attempt++ {
		_, err := d.sess.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil ||
			restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return fmt.Errorf("execute webhook: %w", err)
		}
		if err := sleep(ctx, backoff(attempt, d.baseBackoff)); err != nil {
			return err
		}
	}
}

// discordMessage converts a Message into webhook params with one embed.
func discordMessage(msg Message) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       parseHexColor(msg.Color),
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
}

// parseHexColor converts "#36a64f" to its integer value; invalid input is 0.
func parseHexColor(hex string) int {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
