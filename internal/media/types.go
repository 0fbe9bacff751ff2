package media

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxFileSize is the largest asset the pipeline will try to acquire (1 GiB).
const MaxFileSize int64 = 1 << 30

// Kind selects between the audio and video rendition of a source.
type Kind int

const (
	Video Kind = iota
	Audio
)

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	default:
		return "video"
	}
}

// MimeType returns the content type used when uploading or serving the asset.
func (k Kind) MimeType() string {
	switch k {
	case Audio:
		return "audio/mpeg"
	default:
		return "video/mpeg"
	}
}

// Extension returns the container extension the extractor recodes to.
func (k Kind) Extension() string {
	switch k {
	case Audio:
		return "mp3"
	default:
		return "mp4"
	}
}

// ParseKind maps "audio"/"video" (any case) to a Kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "audio", "track":
		return Audio, nil
	case "video":
		return Video, nil
	default:
		return Video, fmt.Errorf("unknown media kind: %q", raw)
	}
}

// Handle is a successfully acquired asset. Body is single-consumption and
// must be closed by the owner once the upload finished or failed.
type Handle struct {
	Kind Kind
	// Size is the byte length reported by the extractor before transcoding,
	// or the buffered length when SizeExact is set.
	Size int64
	// SizeExact reports that Body yields exactly Size bytes.
	SizeExact bool
	Filename string
	Body     io.ReadCloser

	closeOnce sync.Once
	closeErr  error
}

// NewHandle builds a handle named "{title}.{ext}" whose size is an estimate.
func NewHandle(kind Kind, title string, size int64, body io.ReadCloser) *Handle {
	return &Handle{
		Kind:     kind,
		Size:     size,
		Filename: title + "." + kind.Extension(),
		Body:     body,
	}
}

// TakeFilename moves the filename out of the handle.
func (h *Handle) TakeFilename() string {
	name := h.Filename
	h.Filename = ""
	return name
}

// Read reads from the body.
func (h *Handle) Read(p []byte) (int, error) {
	return h.Body.Read(p)
}

// Close releases the body. Safe to call more than once.
func (h *Handle) Close() error {
	if h == nil || h.Body == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		h.closeErr = h.Body.Close()
	})
	return h.closeErr
}
