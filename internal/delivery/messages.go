package delivery

import (
	"errors"
	"net/http"

	"github.com/memohai/mediadrop/internal/media"
)

const (
	textNotFound   = "The provided link doesn't point to an existing video/track.\nMake sure the link is copied correctly and try again.\nKeep in mind that shortened links are not accepted."
	textIsStream   = "Live streams can't be downloaded while they're ongoing"
	textFetchError = "An unexpected error occured while downloading"
)

// UsageText is the reply to a media command sent without a link.
func UsageText(kind media.Kind) string {
	return "No link provided\nAn example of using the command:\n\t/" + kind.String() + " https://www.youtube.com/watch?v=dQw4w9WgXcQ"
}

// ProgressText is the temporary indicator shown while media is acquired.
func ProgressText(kind media.Kind) string {
	return "Downloading " + kind.String() + "..."
}

// MessageFor maps an acquisition error to the chat reply shown to the user.
func MessageFor(err error, kind media.Kind) string {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		if kind == media.Audio {
			return "The track is too large"
		}
		return "The video is too large"
	case errors.Is(err, media.ErrIsStream):
		return textIsStream
	case errors.Is(err, media.ErrNotFound), errors.Is(err, media.ErrInvalidLink):
		return textNotFound
	default:
		return textFetchError
	}
}

// HTTPError maps an acquisition error to the status and plain-text body of
// the direct download endpoints.
func HTTPError(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusBadRequest, "The media is too big"
	case errors.Is(err, media.ErrIsStream):
		return http.StatusBadRequest, "Livestreams can't be downloaded"
	case errors.Is(err, media.ErrNotFound):
		return http.StatusBadRequest, "Invalid video ID, make sure the link is copied & pasted correctly"
	case errors.Is(err, media.ErrInvalidLink):
		return http.StatusBadRequest, "Invalid link, make sure the link is copied & pasted correctly"
	default:
		return http.StatusBadRequest, "Server error"
	}
}
