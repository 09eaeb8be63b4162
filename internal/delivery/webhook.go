// Package delivery posts formatted notes to the configured webhook.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"misskeyrelay/internal/domain"
)

const maxResponseBody = 1024

// Payload is the JSON body accepted by Discord-compatible webhooks.
type Payload struct {
	Content string `json:"content"`
}

// Webhook posts {"content": ...} to a URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a generic JSON webhook sink.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = SharedHTTPClient(0)
	}
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Name() string { return "webhook" }

// Deliver makes one POST attempt. Transport and status failures are
// reported in the result, never returned as a panic or exit.
func (w *Webhook) Deliver(ctx context.Context, content string) domain.DeliveryResult {
	body, err := json.Marshal(Payload{Content: content})
	if err != nil {
		return domain.DeliveryResult{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return domain.DeliveryResult{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := w.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return domain.DeliveryResult{Err: fmt.Errorf("post webhook: %w", err), Latency: latency}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res := domain.DeliveryResult{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		Latency:    latency,
	}
	if readErr != nil {
		readErr = fmt.Errorf("read response: %w", readErr)
	}
	switch {
	case !res.OK():
		res.Err = &StatusError{StatusCode: resp.StatusCode, Body: res.Response}
		if readErr != nil {
			res.Err = errors.Join(res.Err, readErr)
		}
	case readErr != nil:
		// The post was accepted; only the echo is incomplete.
		res.Response = readErr.Error()
	}
	return res
}

// StatusError is returned in a result when the endpoint answers non-2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
