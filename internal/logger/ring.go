package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// DefaultRingSize is the number of records a Ring keeps.
	DefaultRingSize = 100
	// MaxEntryLen bounds a single rendered record; it equals the longest
	// Telegram text message.
	MaxEntryLen = 4096
)

type ring struct {
	mu      sync.Mutex
	entries []string
	size    int
	notify  func()
	level   slog.LevelVar
}

// Ring is a slog handler that keeps the most recent records in memory so
// they can be delivered to the operator on request.
type Ring struct {
	r      *ring
	prefix string
	// attrs carry keys already qualified by the group open when they were
	// added.
	attrs []slog.Attr
	group string
}

// NewRing creates a ring holding up to size records at or above level.
func NewRing(size int, level slog.Level) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	r := &ring{size: size}
	r.level.Set(level)
	return &Ring{r: r}
}

// OnFirst registers fn to run, in its own goroutine, whenever a record is
// added to an empty ring.
func (h *Ring) OnFirst(fn func()) {
	h.r.mu.Lock()
	h.r.notify = fn
	h.r.mu.Unlock()
}

// SetLevel changes the minimum level recorded.
func (h *Ring) SetLevel(level slog.Level) { h.r.level.Set(level) }

// Level returns the minimum level recorded.
func (h *Ring) Level() slog.Level { return h.r.level.Level() }

// Len returns the number of buffered records.
func (h *Ring) Len() int {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	return len(h.r.entries)
}

// Drain removes and returns every buffered record, oldest first.
func (h *Ring) Drain() []string {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	out := h.r.entries
	h.r.entries = nil
	return out
}

func (h *Ring) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.r.level.Level()
}

func (h *Ring) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Level.String())
	b.WriteByte(' ')
	if h.prefix != "" {
		b.WriteString(h.prefix)
		b.WriteString(": ")
	}
	b.WriteString(rec.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == "service" && h.prefix == "" {
			return true
		}
		writeAttr(&b, h.group, a)
		return true
	})
	entry := truncate(b.String(), MaxEntryLen)

	h.r.mu.Lock()
	wasEmpty := len(h.r.entries) == 0
	if len(h.r.entries) >= h.r.size {
		h.r.entries = h.r.entries[1:]
	}
	h.r.entries = append(h.r.entries, entry)
	notify := h.r.notify
	h.r.mu.Unlock()

	if wasEmpty && notify != nil {
		go notify()
	}
	return nil
}

func (h *Ring) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == "service" && h.group == "" {
			out.prefix = a.Value.String()
			continue
		}
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		out.attrs = append(out.attrs, a)
	}
	return &out
}

func (h *Ring) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	if out.group != "" {
		out.group += "." + name
	} else {
		out.group = name
	}
	return &out
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, inner := range a.Value.Group() {
			writeAttr(b, key, inner)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Batch joins entries into messages of at most limit bytes, separating
// entries with a blank line.
func Batch(entries []string, limit int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, e := range entries {
		if cur.Len() > 0 && cur.Len()+len(e)+2 > limit {
			out = append(out, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
		cur.WriteString(e)
		cur.WriteString("\n\n")
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimRight(cur.String(), "\n"))
	}
	return out
}
