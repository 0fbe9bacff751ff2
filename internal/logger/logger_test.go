package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestInitAndLogging(t *testing.T) {
	Init("debug", "json")

	if L.Enabled(context.Background(), slog.LevelDebug) != true {
		t.Error("expected debug level to be enabled")
	}

	Info("test info message", "key", "value")
}

func TestContextLogger(t *testing.T) {
	Init("info", "text")

	customLogger := L.With("request_id", "12345")

	ctx := WithContext(context.Background(), customLogger)
	if extracted := FromContext(ctx); extracted != customLogger {
		t.Fatal("expected the stored logger back")
	}
	if FromContext(context.Background()) != L {
		t.Fatal("expected the global logger for a bare context")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseLevelStrict(t *testing.T) {
	if got, err := ParseLevel(" warn "); err != nil || got != slog.LevelWarn {
		t.Fatalf("ParseLevel(warn) = %v, %v", got, err)
	}
	if got, err := ParseLevel("off"); err != nil || got <= slog.LevelError {
		t.Fatalf("ParseLevel(off) = %v, %v", got, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInitTeesToExtraHandlers(t *testing.T) {
	ring := NewRing(10, slog.LevelWarn)
	Init("info", "text", ring)
	t.Cleanup(func() { Init("info", "text") })

	L.Info("not recorded")
	L.With(slog.String("service", "extractor")).Warn("slow", slog.Int("attempt", 2))

	got := ring.Drain()
	if len(got) != 1 {
		t.Fatalf("ring entries = %v", got)
	}
	if got[0] != "WARN extractor: slow attempt=2" {
		t.Fatalf("entry = %q", got[0])
	}
}

func TestRingBoundedAndNotifies(t *testing.T) {
	ring := NewRing(3, slog.LevelWarn)
	var notified atomic.Int32
	done := make(chan struct{}, 4)
	ring.OnFirst(func() {
		notified.Add(1)
		done <- struct{}{}
	})
	log := slog.New(ring)

	for _, msg := range []string{"a", "b", "c", "d"} {
		log.Error(msg)
	}
	<-done
	if ring.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ring.Len())
	}
	got := ring.Drain()
	if strings.Join(got, ",") != "ERROR b,ERROR c,ERROR d" {
		t.Fatalf("Drain = %v", got)
	}
	if ring.Len() != 0 {
		t.Fatal("ring should be empty after drain")
	}

	log.Warn("again")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a second notification after draining")
	}
	if notified.Load() != 2 {
		t.Fatalf("notified %d times, want 2", notified.Load())
	}
}

func TestRingLevel(t *testing.T) {
	ring := NewRing(0, slog.LevelWarn)
	log := slog.New(ring)
	log.Info("skipped")
	if ring.Len() != 0 {
		t.Fatal("info should not be recorded at warn")
	}
	ring.SetLevel(slog.LevelDebug)
	log.Debug("kept", slog.Group("req", slog.String("id", "x")))
	got := ring.Drain()
	if len(got) != 1 || got[0] != "DEBUG kept req.id=x" {
		t.Fatalf("Drain = %v", got)
	}
}

func TestRingAttrsKeepTheirGroup(t *testing.T) {
	ring := NewRing(0, slog.LevelInfo)
	log := slog.New(ring).With("a", 1).WithGroup("g").With("b", 2).WithGroup("h")
	log.Warn("m", "c", 3)
	got := ring.Drain()
	if len(got) != 1 || got[0] != "WARN m a=1 g.b=2 g.h.c=3" {
		t.Fatalf("Drain = %v", got)
	}
}

func TestRingTruncatesEntries(t *testing.T) {
	ring := NewRing(1, slog.LevelInfo)
	slog.New(ring).Info(strings.Repeat("é", MaxEntryLen))
	got := ring.Drain()
	if len(got[0]) > MaxEntryLen {
		t.Fatalf("entry length %d exceeds %d", len(got[0]), MaxEntryLen)
	}
}

func TestBatch(t *testing.T) {
	entries := []string{strings.Repeat("a", 6), strings.Repeat("b", 6), "c"}
	got := Batch(entries, 16)
	want := []string{"aaaaaa\n\nbbbbbb", "c"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Batch = %q, want %q", got, want)
	}
	if Batch(nil, 10) != nil {
		t.Fatal("expected nil for no entries")
	}
}
