package main

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"misskeyrelay/internal/config"
)

func TestNewLogger_Level(t *testing.T) {
	l := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}

	l = newLogger(config.LogConfig{Level: "warn", Format: "text"})
	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}

func TestRenderSystemd(t *testing.T) {
	unit := renderSystemd("/usr/local/bin/misskeyrelay", "/home/u/.misskeyrelay/config.yaml", "/home/u/.misskeyrelay/env")
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/misskeyrelay run --config /home/u/.misskeyrelay/config.yaml") {
		t.Errorf("unexpected ExecStart:\n%s", unit)
	}
	if !strings.Contains(unit, "EnvironmentFile=-/home/u/.misskeyrelay/env") {
		t.Errorf("missing EnvironmentFile:\n%s", unit)
	}
	if strings.Contains(unit, "{{") {
		t.Errorf("unreplaced placeholder:\n%s", unit)
	}
}

func TestRenderLaunchd(t *testing.T) {
	plist := renderLaunchd("/bin/misskeyrelay", "/cfg.yaml", "/log")
	if strings.Contains(plist, "{{") {
		t.Errorf("unreplaced placeholder:\n%s", plist)
	}
	if !strings.Contains(plist, "<string>"+launchdLabel+"</string>") {
		t.Error("missing label")
	}
}
