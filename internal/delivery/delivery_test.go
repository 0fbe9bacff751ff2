package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/mediadrop/internal/idcache"
	"github.com/memohai/mediadrop/internal/media"
	"github.com/memohai/mediadrop/internal/resolve"
)

type fakeAcquirer struct {
	calls atomic.Int32
	err   error
	data  string
}

func (a *fakeAcquirer) Acquire(_ context.Context, src resolve.Source, kind media.Kind) (*media.Handle, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return media.NewHandle(kind, "Mock Title", int64(len(a.data)), io.NopCloser(strings.NewReader(a.data))), nil
}

type event struct {
	op   string
	text string
	id   int
}

type fakeChat struct {
	mu        sync.Mutex
	events    []event
	nextID    int
	uploadErr error
	deleteErr []error
	sentIDs   []string
	uploaded  []string
}

func (c *fakeChat) record(e event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *fakeChat) SendText(_ context.Context, _ int64, _ int, text string) (int, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()
	c.record(event{op: "send", text: text, id: id})
	return id, nil
}

func (c *fakeChat) EditText(_ context.Context, _ int64, messageID int, text string) error {
	c.record(event{op: "edit", text: text, id: messageID})
	return nil
}

func (c *fakeChat) Delete(_ context.Context, _ int64, messageID int) error {
	c.record(event{op: "delete", id: messageID})
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deleteErr) > 0 {
		err := c.deleteErr[0]
		c.deleteErr = c.deleteErr[1:]
		return err
	}
	return nil
}

func (c *fakeChat) Upload(_ context.Context, _ int64, _ int, h *media.Handle) (string, error) {
	name := h.TakeFilename()
	data, err := io.ReadAll(h)
	if err != nil {
		return "", err
	}
	c.record(event{op: "upload", text: name})
	if c.uploadErr != nil {
		return "", c.uploadErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploaded = append(c.uploaded, string(data))
	return fmt.Sprintf("file-%d", len(c.uploaded)), nil
}

func (c *fakeChat) SendCached(_ context.Context, _ int64, _ int, _ media.Kind, id string) error {
	c.record(event{op: "cached", text: id})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentIDs = append(c.sentIDs, id)
	return nil
}

func (c *fakeChat) ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.op)
	}
	return out
}

func newTestDeliverer(t *testing.T, acq Acquirer) (*Deliverer, *fakeChat, *idcache.Cache) {
	t.Helper()
	cache, err := idcache.Open(filepath.Join(t.TempDir(), idcache.FileName))
	require.NoError(t, err)
	chat := &fakeChat{}
	d := NewDeliverer(nil, NewPipeline(nil, acq, cache), chat, chat)
	d.cleanupBackoff = 0
	return d, chat, cache
}

func TestDeliverMissThenHit(t *testing.T) {
	acq := &fakeAcquirer{data: "payload"}
	d, chat, cache := newTestDeliverer(t, acq)
	req := Request{ChatID: 1, ReplyTo: 10, Link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Kind: media.Video}

	require.NoError(t, d.Deliver(context.Background(), req))
	assert.Equal(t, []string{"send", "upload", "delete"}, chat.ops())
	assert.Equal(t, "Downloading video...", chat.events[0].text)
	assert.Equal(t, "Mock Title.mp4", chat.events[1].text)
	assert.Equal(t, []string{"payload"}, chat.uploaded)

	id, ok := cache.Get("https://youtu.be/dQw4w9WgXcQ", media.Video)
	require.True(t, ok)
	assert.Equal(t, "file-1", id)

	req.Link = "https://youtu.be/dQw4w9WgXcQ"
	require.NoError(t, d.Deliver(context.Background(), req))
	assert.Equal(t, int32(1), acq.calls.Load(), "cache hit must not acquire")
	assert.Equal(t, []string{"file-1"}, chat.sentIDs)
	assert.ElementsMatch(t, []string{"send", "cached", "delete"}, chat.ops()[3:])
}

func TestDeliverKindNamespacesAreSeparate(t *testing.T) {
	acq := &fakeAcquirer{data: "x"}
	d, _, cache := newTestDeliverer(t, acq)
	cache.Set("https://youtu.be/abc", media.Video, "video-id")

	require.NoError(t, d.Deliver(context.Background(), Request{Link: "https://youtu.be/abc", Kind: media.Audio}))
	assert.Equal(t, int32(1), acq.calls.Load())
	got, ok := cache.Get("https://youtu.be/abc", media.Audio)
	assert.True(t, ok)
	assert.Equal(t, "file-1", got)
}

func TestDeliverBlankLink(t *testing.T) {
	acq := &fakeAcquirer{}
	d, chat, _ := newTestDeliverer(t, acq)

	require.NoError(t, d.Deliver(context.Background(), Request{Link: "   ", Kind: media.Audio}))
	require.Len(t, chat.events, 1)
	assert.Equal(t, UsageText(media.Audio), chat.events[0].text)
	assert.Contains(t, chat.events[0].text, "\t/audio https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.Equal(t, int32(0), acq.calls.Load())
}

func TestDeliverFailuresEditProgress(t *testing.T) {
	tests := []struct {
		name string
		link string
		err  error
		kind media.Kind
		want string
	}{
		{"invalid link", "https://example.com/x", nil, media.Video, textNotFound},
		{"not found", "https://youtu.be/abc", media.ErrNotFound, media.Video, textNotFound},
		{"live", "https://youtu.be/abc", media.ErrIsStream, media.Audio, textIsStream},
		{"too large video", "https://youtu.be/abc", media.ErrTooLarge, media.Video, "The video is too large"},
		{"too large track", "https://youtu.be/abc", media.ErrTooLarge, media.Audio, "The track is too large"},
		{"metadata", "https://youtu.be/abc", media.ErrMetadataFetchFailed, media.Video, textFetchError},
		{"data", "https://youtu.be/abc", fmt.Errorf("%w: boom", media.ErrDataFetchFailed), media.Video, textFetchError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, chat, cache := newTestDeliverer(t, &fakeAcquirer{err: tt.err})
			err := d.Deliver(context.Background(), Request{ChatID: 5, Link: tt.link, Kind: tt.kind})
			require.Error(t, err)
			assert.Equal(t, []string{"send", "edit"}, chat.ops())
			assert.Equal(t, tt.want, chat.events[1].text)
			assert.Equal(t, chat.events[0].id, chat.events[1].id)
			tracks, videos := cache.Len()
			assert.Zero(t, tracks+videos)
		})
	}
}

func TestDeliverUploadFailureKeepsProgress(t *testing.T) {
	d, chat, cache := newTestDeliverer(t, &fakeAcquirer{data: "x"})
	chat.uploadErr = errors.New("telegram: Request Entity Too Large")

	err := d.Deliver(context.Background(), Request{Link: "https://youtu.be/abc", Kind: media.Video})
	require.Error(t, err)
	assert.Equal(t, []string{"send", "upload"}, chat.ops())
	_, ok := cache.Get("https://youtu.be/abc", media.Video)
	assert.False(t, ok)
}

func TestDeliverCleanupRetries(t *testing.T) {
	d, chat, _ := newTestDeliverer(t, &fakeAcquirer{data: "x"})
	chat.deleteErr = []error{errors.New("flaky"), errors.New("flaky")}
	require.NoError(t, d.Deliver(context.Background(), Request{Link: "https://youtu.be/abc", Kind: media.Video}))
	assert.Equal(t, []string{"send", "upload", "delete", "delete", "delete"}, chat.ops())

	d2, chat2, _ := newTestDeliverer(t, &fakeAcquirer{data: "x"})
	chat2.deleteErr = []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}
	require.NoError(t, d2.Deliver(context.Background(), Request{Link: "https://youtu.be/abc", Kind: media.Video}))
	assert.Equal(t, []string{"send", "upload", "delete", "delete", "delete"}, chat2.ops())
}

func TestConcurrentHits(t *testing.T) {
	acq := &fakeAcquirer{data: "x"}
	d, chat, cache := newTestDeliverer(t, acq)
	cache.Set("https://youtu.be/abc", media.Audio, "cached-id")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Deliver(context.Background(), Request{Link: "https://youtu.be/abc", Kind: media.Audio}); err != nil {
				t.Errorf("Deliver: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(0), acq.calls.Load())
	assert.Len(t, chat.sentIDs, 20)
}

func TestPipelineAcquireSkipsCache(t *testing.T) {
	acq := &fakeAcquirer{data: "abc"}
	cache, err := idcache.Open(filepath.Join(t.TempDir(), idcache.FileName))
	require.NoError(t, err)
	cache.Set("https://youtu.be/abc", media.Video, "id")
	p := NewPipeline(nil, acq, cache)

	h, err := p.Acquire(context.Background(), "https://youtu.be/abc", media.Video)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, int32(1), acq.calls.Load())
	assert.Equal(t, int64(3), h.Size)

	_, err = p.Acquire(context.Background(), "nope", media.Video)
	assert.ErrorIs(t, err, media.ErrInvalidLink)
	assert.Equal(t, int32(1), acq.calls.Load())
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{media.ErrTooLarge, "The media is too big"},
		{media.ErrIsStream, "Livestreams can't be downloaded"},
		{media.ErrNotFound, "Invalid video ID, make sure the link is copied & pasted correctly"},
		{media.ErrInvalidLink, "Invalid link, make sure the link is copied & pasted correctly"},
		{media.ErrMetadataFetchFailed, "Server error"},
		{media.ErrDataFetchFailed, "Server error"},
	}
	for _, tt := range tests {
		status, text := HTTPError(fmt.Errorf("wrapped: %w", tt.err))
		if status != http.StatusBadRequest || text != tt.want {
			t.Fatalf("HTTPError(%v) = %d %q, want 400 %q", tt.err, status, text, tt.want)
		}
	}
}

func TestProgressText(t *testing.T) {
	if got := ProgressText(media.Audio); got != "Downloading audio..." {
		t.Fatalf("ProgressText(audio) = %q", got)
	}
	if got := ProgressText(media.Video); got != "Downloading video..." {
		t.Fatalf("ProgressText(video) = %q", got)
	}
}
