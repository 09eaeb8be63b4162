package metrics

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCounter_SameNameSameCounter(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("a").Inc()
	c.Counter("a").Inc()
	if got := c.Counter("a").Value(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestAverage_Mean(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Average("latency")
	if h.Mean() != 0 {
		t.Error("empty average mean should be 0")
	}
	h.Observe(0.5)
	h.Observe(1.5)
	if h.Mean() != 1 {
		t.Errorf("expected mean 1, got %f", h.Mean())
	}
	if h.Count() != 2 {
		t.Errorf("expected count 2, got %d", h.Count())
	}
	if c.Average("latency") != h {
		t.Error("same name should return the same average")
	}
}

func TestLogSummary(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("notes_matched").Inc()
	c.Average("delivery_latency_seconds").Observe(0.2)

	var buf bytes.Buffer
	c.LogSummary(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	if !strings.Contains(out, "notes_matched=1") {
		t.Errorf("summary missing counter: %s", out)
	}
	if !strings.Contains(out, "delivery_latency_seconds_mean=0.2") {
		t.Errorf("summary missing latency mean: %s", out)
	}
}
