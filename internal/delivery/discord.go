package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"misskeyrelay/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// discordMaxMsgLen is Discord's content limit, counted in characters.
const discordMaxMsgLen = 2000

// Discord executes a Discord webhook through the discordgo REST client.
type Discord struct {
	webhookID string
	token     string
	session   *discordgo.Session
}

// NewDiscord creates a sink for a Discord webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(rawURL string, client *http.Client) (*Discord, error) {
	id, token, err := ParseDiscordWebhookURL(rawURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if client == nil {
		client = SharedHTTPClient(0)
	}
	session.Client = client
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false
	return &Discord{webhookID: id, token: token, session: session}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Deliver(ctx context.Context, content string) domain.DeliveryResult {
	if n := utf8.RuneCountInString(content); n > discordMaxMsgLen {
		return domain.DeliveryResult{Err: fmt.Errorf("content is %d characters, discord limit is %d", n, discordMaxMsgLen)}
	}

	start := time.Now()
	msg, err := d.session.WebhookExecute(d.webhookID, d.token, true,
		&discordgo.WebhookParams{Content: content}, discordgo.WithContext(ctx))
	latency := time.Since(start)
	if err != nil {
		res := domain.DeliveryResult{Err: fmt.Errorf("execute discord webhook: %w", err), Latency: latency}
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil {
			res.StatusCode = restErr.Response.StatusCode
			res.Response = truncate(string(restErr.ResponseBody), maxResponseBody)
		}
		return res
	}

	res := domain.DeliveryResult{StatusCode: http.StatusOK, Latency: latency}
	if msg != nil {
		res.Response = msg.ID
	}
	return res
}

// ParseDiscordWebhookURL extracts the webhook id and token from a Discord
// webhook URL.
func ParseDiscordWebhookURL(rawURL string) (id, token string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "webhooks" && i+2 < len(parts) && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("not a discord webhook url (host %s)", u.Host)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
