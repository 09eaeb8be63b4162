package delivery

import (
	"errors"
	"fmt"
	"time"

	"misskeyrelay/internal/domain"
)

// Sink kinds accepted in webhook.kind.
const (
	KindWebhook = "webhook"
	KindDiscord = "discord"
	KindSlack   = "slack"
)

const userAgent = "misskeyrelay/1.0"

// ErrUnknownKind is returned by NewSink for an unsupported kind.
var ErrUnknownKind = errors.New("unknown webhook kind")

// SinkConfig selects and configures the delivery sink.
type SinkConfig struct {
	Kind    string
	URL     string
	Timeout time.Duration
}

// NewSink builds the sink for cfg.Kind. An empty kind means a generic JSON webhook.
func NewSink(cfg SinkConfig) (domain.Sink, error) {
	client := SharedHTTPClient(cfg.Timeout)
	switch cfg.Kind {
	case "", KindWebhook:
		return NewWebhook(cfg.URL, client), nil
	case KindDiscord:
		d, err := NewDiscord(cfg.URL, client)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindSlack:
		return NewSlack(cfg.URL, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
