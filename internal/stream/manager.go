// Package stream manages the websocket connection to the Misskey streaming API.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"misskeyrelay/internal/domain"
	"misskeyrelay/internal/misskey"

	"github.com/gorilla/websocket"
)

// Config configures the connection manager.
type Config struct {
	Scheme         string // "wss" unless testing against a plain server
	Host           string
	Token          string
	Channel        string // default: homeTimeline
	SubscriptionID string
	DialTimeout    time.Duration
	Logger         *slog.Logger
}

// Manager opens subscribed stream connections.
type Manager struct {
	url            string
	channel        string
	subscriptionID string
	dialer         *websocket.Dialer
	logger         *slog.Logger
}

// NewManager creates a connection manager.
func NewManager(cfg Config) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if cfg.Channel == "" {
		cfg.Channel = misskey.DefaultChannel
	}
	return &Manager{
		url:            misskey.StreamURL(cfg.Scheme, cfg.Host, cfg.Token),
		channel:        cfg.Channel,
		subscriptionID: cfg.SubscriptionID,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger: cfg.Logger,
	}
}

// Connect dials the streaming endpoint and subscribes to the configured
// channel. The returned connection is ready for Receive.
func (m *Manager) Connect(ctx context.Context) (*Conn, error) {
	ws, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to streaming api: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("connect to streaming api: %w", err)
	}
	m.logger.Info("connected to misskey streaming api")

	if err := ws.WriteJSON(misskey.NewConnectMessage(m.channel, m.subscriptionID)); err != nil {
		ws.Close()
		return nil, fmt.Errorf("connect to channel %s: %w", m.channel, err)
	}
	m.logger.Info("subscribed to channel", "channel", m.channel, "id", m.subscriptionID)

	c := &Conn{
		ws:     ws,
		frames: make(chan frame),
		done:   make(chan struct{}),
		logger: m.logger,
	}
	go c.readPump()
	return c, nil
}

// errReaderStopped is returned once the reader has already reported its
// terminal error.
var errReaderStopped = errors.New("read: stream reader stopped")

type frame struct {
	data []byte
	err  error
}

// Conn is a subscribed stream connection. A single reader goroutine pulls
// frames off the socket and hands them over one at a time, so a receive wait
// can expire without breaking the underlying websocket.
type Conn struct {
	ws     *websocket.Conn
	frames chan frame
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (c *Conn) readPump() {
	defer close(c.frames)
	for {
		typ, data, err := c.ws.ReadMessage()
		if err == nil && typ != websocket.TextMessage {
			continue
		}
		select {
		case c.frames <- frame{data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Receive returns the next text frame. It returns domain.ErrNoData when
// nothing arrives within wait and an error wrapping domain.ErrClosed when the
// server sent a close frame.
func (c *Conn) Receive(ctx context.Context, wait time.Duration) ([]byte, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, errReaderStopped
		}
		if f.err != nil {
			// 1006 is synthesized locally when the TCP connection drops
			// without a close frame; it is never sent by the server.
			var closeErr *websocket.CloseError
			if errors.As(f.err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
				return nil, fmt.Errorf("%w: %v", domain.ErrClosed, closeErr)
			}
			return nil, fmt.Errorf("read: %w", f.err)
		}
		return f.data, nil
	case <-timer.C:
		return nil, domain.ErrNoData
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the connection and stops the reader goroutine.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
