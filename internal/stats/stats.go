// Package stats counts distinct users of the website, the download
// endpoints and the bot since the last reset.
package stats

import (
	"fmt"
	"sync"

	"github.com/labstack/echo/v4"
)

// Counter identifies one of the tracked populations.
type Counter int

const (
	WebsiteVisitors Counter = iota
	AudioDownloaders
	VideoDownloaders
)

// Stats holds the distinct-visitor sets. The zero value is not usable; use New.
type Stats struct {
	mu       sync.Mutex
	visitors map[Counter]map[string]struct{}
	botUsers map[int64]struct{}
}

// New returns empty counters.
func New() *Stats {
	s := &Stats{}
	s.reset()
	return s
}

func (s *Stats) reset() {
	s.visitors = map[Counter]map[string]struct{}{
		WebsiteVisitors:  {},
		AudioDownloaders: {},
		VideoDownloaders: {},
	}
	s.botUsers = map[int64]struct{}{}
}

// RecordIP adds ip to the counter's set.
func (s *Stats) RecordIP(c Counter, ip string) {
	if ip == "" {
		return
	}
	s.mu.Lock()
	if set, ok := s.visitors[c]; ok {
		set[ip] = struct{}{}
	}
	s.mu.Unlock()
}

// RecordBotUser adds a Telegram user id.
func (s *Stats) RecordBotUser(id int64) {
	s.mu.Lock()
	s.botUsers[id] = struct{}{}
	s.mu.Unlock()
}

// Reset clears every counter.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

// Count returns the size of one IP set.
func (s *Stats) Count(c Counter) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors[c])
}

// BotUsers returns the number of distinct bot users.
func (s *Stats) BotUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.botUsers)
}

func (s *Stats) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("website visitors: %d\naudio downloaders: %d\nvideo downloaders: %d\nbot users: %d",
		len(s.visitors[WebsiteVisitors]),
		len(s.visitors[AudioDownloaders]),
		len(s.visitors[VideoDownloaders]),
		len(s.botUsers),
	)
}

// Middleware records the client address of every request under c.
func (s *Stats) Middleware(c Counter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s.RecordIP(c, ctx.RealIP())
			return next(ctx)
		}
	}
}
