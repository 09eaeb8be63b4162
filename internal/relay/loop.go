// Package relay runs the read, filter, format, deliver cycle against a
// single stream connection.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"misskeyrelay/internal/domain"
	"misskeyrelay/internal/metrics"
	"misskeyrelay/internal/misskey"
	"misskeyrelay/internal/note"
)

const (
	defaultInterval = time.Second
	defaultIdleWait = 5 * time.Second
)

// ConnectFunc opens a subscribed stream.
type ConnectFunc func(ctx context.Context) (domain.Stream, error)

// LoopConfig holds the loop's dependencies and pacing policy.
type LoopConfig struct {
	Connect          ConnectFunc
	Filter           *note.Filter
	Formatter        *note.Formatter
	Sink             domain.Sink
	SubscriptionID   string
	Interval         time.Duration // sleep after each handled event and each idle read
	IdleWait         time.Duration // how long a receive waits before reporting no data
	ReconnectOnIdle  bool
	ReconnectOnClose bool
	Logger           *slog.Logger
}

// Loop relays qualifying notes from the stream to the sink, one frame at a time.
type Loop struct {
	connect          ConnectFunc
	filter           *note.Filter
	formatter        *note.Formatter
	sink             domain.Sink
	subscriptionID   string
	interval         time.Duration
	idleWait         time.Duration
	reconnectOnIdle  bool
	reconnectOnClose bool
	logger           *slog.Logger

	state atomic.Int32
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a relay loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = defaultIdleWait
	}
	return &Loop{
		connect:          cfg.Connect,
		filter:           cfg.Filter,
		formatter:        cfg.Formatter,
		sink:             cfg.Sink,
		subscriptionID:   cfg.SubscriptionID,
		interval:         cfg.Interval,
		idleWait:         cfg.IdleWait,
		reconnectOnIdle:  cfg.ReconnectOnIdle,
		reconnectOnClose: cfg.ReconnectOnClose,
		logger:           cfg.Logger,
		sleep:            sleepContext,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.logger.Debug("relay state", "state", s)
}

// Run connects and relays until the stream fails, the context is cancelled,
// or a (re)connect fails. Only connect failures are returned as errors; a
// terminal read error is logged and Run returns nil.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateTerminated)

	l.setState(StateConnecting)
	stream, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if stream != nil {
			stream.Close()
		}
		metrics.Collector.LogSummary(l.logger)
	}()
	l.setState(StateListening)
	l.logger.Info("relay listening", "subscription_id", l.subscriptionID, "sink", l.sink.Name())

	for {
		data, err := stream.Receive(ctx, l.idleWait)
		switch {
		case err == nil:
			if !l.handle(ctx, data) {
				continue
			}
			if l.sleep(ctx, l.interval) != nil {
				return nil
			}

		case errors.Is(err, domain.ErrNoData):
			metrics.IdleReads.Inc()
			if l.sleep(ctx, l.interval) != nil {
				return nil
			}
			if l.reconnectOnIdle {
				if stream, err = l.reconnect(ctx, stream); err != nil {
					return err
				}
			}

		case ctx.Err() != nil:
			l.logger.Info("relay stopping")
			return nil

		case errors.Is(err, domain.ErrClosed) && l.reconnectOnClose:
			l.logger.Warn("stream closed by server, reconnecting", "err", err)
			if l.sleep(ctx, l.interval) != nil {
				return nil
			}
			if stream, err = l.reconnect(ctx, stream); err != nil {
				return err
			}

		default:
			l.logger.Error("message receive error", "err", err)
			return nil
		}
	}
}

func (l *Loop) reconnect(ctx context.Context, old domain.Stream) (domain.Stream, error) {
	old.Close()
	l.setState(StateConnecting)
	metrics.Reconnects.Inc()

	stream, err := l.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}
	l.setState(StateListening)
	return stream, nil
}

// handle processes one frame. It returns false when the frame was not
// addressed to this relay's subscription, in which case no pacing applies.
func (l *Loop) handle(ctx context.Context, data []byte) bool {
	metrics.FramesReceived.Inc()

	ev, err := misskey.Decode(data)
	if err != nil {
		metrics.EventsMalformed.Inc()
		l.logger.Warn("skipping malformed event", "err", err)
		return false
	}
	if ev.ChannelID != l.subscriptionID {
		metrics.EventsSkipped.Inc()
		return false
	}
	if !l.filter.Qualifies(ev) {
		return true
	}

	metrics.NotesMatched.Inc()
	l.logger.Info("received target note", "note_id", ev.Note.ID, "files", len(ev.Note.Files))
	l.deliver(ctx, l.formatter.Format(ev.Note))
	return true
}

func (l *Loop) deliver(ctx context.Context, content string) {
	res := l.sink.Deliver(ctx, content)
	metrics.DeliveryLatency.Observe(res.Latency.Seconds())
	if res.OK() {
		metrics.DeliveriesOK.Inc()
		l.logger.Info("message sent successfully", "sink", l.sink.Name(), "status", res.StatusCode, "content", content)
		return
	}
	metrics.DeliveriesFail.Inc()
	l.logger.Error("failed to send message", "sink", l.sink.Name(), "status", res.StatusCode, "err", res.Err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
