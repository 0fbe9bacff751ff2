// Package resolve turns user-supplied links into canonical source descriptors.
package resolve

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/memohai/mediadrop/internal/media"
)

// Site identifies which rule of the table produced a Source.
type Site int

const (
	SiteYouTube Site = iota + 1
	SiteInstagramReel
	SitePassthrough
)

func (s Site) String() string {
	switch s {
	case SiteYouTube:
		return "youtube"
	case SiteInstagramReel:
		return "instagram"
	case SitePassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Source is a canonical, retrievable asset location. The zero value is not
// a valid source; values are only produced by Resolve.
type Source struct {
	site Site
	uri  string
}

// Site reports the rule that matched.
func (s Source) Site() Site { return s.site }

// URI returns the canonical long-form URI.
func (s Source) URI() string { return s.uri }

// String renders the canonical URI; it is the cache key.
func (s Source) String() string { return s.uri }

// IsZero reports whether s was not produced by Resolve.
func (s Source) IsZero() bool { return s.uri == "" }

var youtubeHosts = map[string]bool{
	"www.youtube.com":   true,
	"youtube.com":       true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

var passthroughHosts = map[string]bool{
	"vm.tiktok.com": true,
	"vk.com":        true,
	"twitter.com":   true,
	"x.com":         true,
}

// Resolve parses text and rewrites it into its canonical form. Any input it
// cannot match yields an error wrapping media.ErrInvalidLink.
func Resolve(text string) (Source, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty link", media.ErrInvalidLink)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", media.ErrInvalidLink, err)
	}
	host := strings.ToLower(u.Hostname())
	path := u.EscapedPath()

	switch {
	case youtubeHosts[host] && path == "/watch":
		return youtube(u.Query().Get("v"))
	case youtubeHosts[host] && strings.HasPrefix(path, "/shorts/"):
		return youtube(firstSegment(strings.TrimPrefix(path, "/shorts/")))
	case host == "youtu.be":
		return youtube(firstSegment(strings.TrimPrefix(path, "/")))
	case host == "www.instagram.com" && strings.HasPrefix(path, "/reel/"):
		id := strings.TrimPrefix(path, "/reel/")
		if id == "" {
			return Source{}, fmt.Errorf("%w: missing reel id", media.ErrInvalidLink)
		}
		return Source{site: SiteInstagramReel, uri: "https://www.instagram.com/reel/" + id}, nil
	case passthroughHosts[host]:
		return Source{site: SitePassthrough, uri: "https://" + host + path}, nil
	default:
		return Source{}, fmt.Errorf("%w: unsupported link %q", media.ErrInvalidLink, raw)
	}
}

func youtube(id string) (Source, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#& ") {
		return Source{}, fmt.Errorf("%w: missing video id", media.ErrInvalidLink)
	}
	return Source{site: SiteYouTube, uri: "https://youtu.be/" + id}, nil
}

func firstSegment(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
