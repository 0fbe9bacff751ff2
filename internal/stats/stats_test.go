package stats

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestStatsString(t *testing.T) {
	s := New()
	s.RecordIP(WebsiteVisitors, "10.0.0.1")
	s.RecordIP(WebsiteVisitors, "10.0.0.1")
	s.RecordIP(WebsiteVisitors, "10.0.0.2")
	s.RecordIP(AudioDownloaders, "10.0.0.1")
	s.RecordIP(VideoDownloaders, "")
	s.RecordBotUser(42)
	s.RecordBotUser(42)

	want := "website visitors: 2\naudio downloaders: 1\nvideo downloaders: 0\nbot users: 1"
	if got := s.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	s.Reset()
	if got := s.String(); got != "website visitors: 0\naudio downloaders: 0\nvideo downloaders: 0\nbot users: 0" {
		t.Fatalf("after reset String() = %q", got)
	}
}

func TestStatsConcurrent(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.RecordBotUser(int64(i % 10))
			s.RecordIP(VideoDownloaders, "1.1.1.1")
		}(i)
	}
	wg.Wait()
	if s.BotUsers() != 10 || s.Count(VideoDownloaders) != 1 {
		t.Fatalf("BotUsers=%d videos=%d", s.BotUsers(), s.Count(VideoDownloaders))
	}
}

func TestMiddlewareRecordsRealIP(t *testing.T) {
	s := New()
	e := echo.New()
	e.GET("/video", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, s.Middleware(VideoDownloaders))

	req := httptest.NewRequest(http.MethodGet, "/video", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.Count(VideoDownloaders) != 1 || s.Count(AudioDownloaders) != 0 {
		t.Fatalf("counts = %s", s)
	}
}
