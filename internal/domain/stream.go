package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoData reports that no frame arrived within the receive wait.
	ErrNoData = errors.New("no data available")
	// ErrClosed reports that the server closed the stream connection.
	ErrClosed = errors.New("stream closed by server")
)

// Stream is a live, subscribed connection to the streaming API.
type Stream interface {
	// Receive blocks for at most wait and returns the next text frame.
	Receive(ctx context.Context, wait time.Duration) ([]byte, error)
	Close() error
}
