// Package metrics keeps in-process counters for the relay loop. Nothing is
// exported over the network; the loop logs a summary when it terminates.
package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters and running averages.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	averages  sync.Map // name -> *Average
	startTime time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Average tracks the count and mean of observed values.
type Average struct {
	mu    sync.Mutex
	count int64
	sum   float64
}

// Observe records a value.
func (h *Average) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
}

// Count returns the number of observed values.
func (h *Average) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Mean returns the average observed value, or 0 when empty.
func (h *Average) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name string) *Counter {
	if v, ok := c.counters.Load(name); ok {
		return v.(*Counter)
	}
	actual, _ := c.counters.LoadOrStore(name, &Counter{})
	return actual.(*Counter)
}

// Average returns or creates a running average with the given name.
func (c *MetricsCollector) Average(name string) *Average {
	if v, ok := c.averages.Load(name); ok {
		return v.(*Average)
	}
	actual, _ := c.averages.LoadOrStore(name, &Average{})
	return actual.(*Average)
}

// Snapshot returns the current value of every counter keyed by name.
func (c *MetricsCollector) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	c.counters.Range(func(key, value any) bool {
		out[key.(string)] = value.(*Counter).Value()
		return true
	})
	return out
}

// LogSummary writes every counter and the mean of every average as one log line.
func (c *MetricsCollector) LogSummary(logger *slog.Logger) {
	snap := c.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := []any{"uptime", c.Uptime().Round(time.Second)}
	for _, name := range names {
		attrs = append(attrs, name, snap[name])
	}
	c.averages.Range(func(key, value any) bool {
		attrs = append(attrs, key.(string)+"_mean", value.(*Average).Mean())
		return true
	})
	logger.Info("relay summary", attrs...)
}

// --- Pre-defined metrics used by the relay loop ---

var (
	FramesReceived  = Collector.Counter("frames_received")
	EventsSkipped   = Collector.Counter("events_skipped")
	EventsMalformed = Collector.Counter("events_malformed")
	NotesMatched    = Collector.Counter("notes_matched")
	DeliveriesOK    = Collector.Counter("deliveries_ok")
	DeliveriesFail  = Collector.Counter("deliveries_failed")
	IdleReads       = Collector.Counter("idle_reads")
	Reconnects      = Collector.Counter("reconnects")

	DeliveryLatency = Collector.Average("delivery_latency_seconds")
)
