package domain

import (
	"context"
	"time"
)

// DeliveryResult is the outcome of a single delivery attempt.
type DeliveryResult struct {
	StatusCode int
	Response   string
	Latency    time.Duration
	Err        error
}

// OK reports whether the endpoint accepted the payload with a 2xx status.
func (r DeliveryResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Sink delivers a formatted payload to an outbound endpoint. Deliver never
// panics on transport failures; they are reported through DeliveryResult.Err.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, content string) DeliveryResult
}
