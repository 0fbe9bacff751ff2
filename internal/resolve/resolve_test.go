package resolve

import (
	"errors"
	"testing"

	"github.com/memohai/mediadrop/internal/media"
)

func TestResolveTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
		site  Site
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://youtu.be/dQw4w9WgXcQ", SiteYouTube},
		{"https://music.youtube.com/watch?v=abc&list=RD1", "https://youtu.be/abc", SiteYouTube},
		{"https://www.youtube.com/watch?feature=share&v=xyz", "https://youtu.be/xyz", SiteYouTube},
		{"https://m.youtube.com/watch?v=mobile1", "https://youtu.be/mobile1", SiteYouTube},
		{"https://www.youtube.com/shorts/short1", "https://youtu.be/short1", SiteYouTube},
		{"https://youtu.be/abc123", "https://youtu.be/abc123", SiteYouTube},
		{"https://youtu.be/abc123?si=tracking", "https://youtu.be/abc123", SiteYouTube},
		{"  https://youtu.be/trimmed \n", "https://youtu.be/trimmed", SiteYouTube},
		{"https://www.instagram.com/reel/C0de/", "https://www.instagram.com/reel/C0de/", SiteInstagramReel},
		{"https://vm.tiktok.com/ZM123/", "https://vm.tiktok.com/ZM123/", SitePassthrough},
		{"http://x.com/user/status/1", "https://x.com/user/status/1", SitePassthrough},
		{"https://twitter.com/user/status/2?s=20", "https://twitter.com/user/status/2", SitePassthrough},
		{"https://vk.com/video-1_2", "https://vk.com/video-1_2", SitePassthrough},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.input)
		if err != nil {
			t.Fatalf("Resolve(%q) unexpected error: %v", tt.input, err)
		}
		if got.String() != tt.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tt.input, got.String(), tt.want)
		}
		if got.Site() != tt.site {
			t.Fatalf("Resolve(%q) site = %v, want %v", tt.input, got.Site(), tt.site)
		}
	}
}

func TestResolveRejects(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"https://example.com/x",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=",
		"https://www.youtube.com/channel/UC1",
		"https://youtu.be/",
		"https://www.instagram.com/p/abc",
		"https://www.instagram.com/reel/",
		"youtu.be/abc",
		"not a link",
		"://broken",
		"https://%zz",
	}
	for _, input := range inputs {
		src, err := Resolve(input)
		if !errors.Is(err, media.ErrInvalidLink) {
			t.Fatalf("Resolve(%q) = %v, %v; want ErrInvalidLink", input, src, err)
		}
		if !src.IsZero() {
			t.Fatalf("Resolve(%q) returned a non-zero source on error", input)
		}
	}
}

func FuzzResolve(f *testing.F) {
	for _, seed := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/abc123",
		"https://example.com/x",
		"\x00\xff",
		"https://[::1",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		src, err := Resolve(input)
		if err != nil {
			if !errors.Is(err, media.ErrInvalidLink) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			return
		}
		if src.IsZero() {
			t.Fatalf("successful resolve returned zero source for %q", input)
		}
	})
}
