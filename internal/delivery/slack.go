package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"misskeyrelay/internal/domain"

	"github.com/slack-go/slack"
)

// Slack posts to a Slack incoming webhook. Slack expects the text under
// "text" rather than "content".
type Slack struct {
	url    string
	client *http.Client
}

func NewSlack(url string, client *http.Client) *Slack {
	if client == nil {
		client = SharedHTTPClient(0)
	}
	return &Slack{url: url, client: client}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Deliver(ctx context.Context, content string) domain.DeliveryResult {
	start := time.Now()
	err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.client, &slack.WebhookMessage{Text: content})
	latency := time.Since(start)
	if err != nil {
		res := domain.DeliveryResult{Err: fmt.Errorf("post slack webhook: %w", err), Latency: latency}
		var statusErr slack.StatusCodeError
		var rateErr *slack.RateLimitedError
		switch {
		case errors.As(err, &statusErr):
			res.StatusCode = statusErr.Code
		case errors.As(err, &rateErr):
			res.StatusCode = http.StatusTooManyRequests
		}
		return res
	}
	return domain.DeliveryResult{StatusCode: http.StatusOK, Latency: latency}
}
