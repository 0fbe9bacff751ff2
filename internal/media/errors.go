package media

import "errors"

// Error kinds produced by the resolver and the extractor. They are wrapped
// with operator detail and classified with errors.Is.
var (
	ErrInvalidLink         = errors.New("invalid link")
	ErrNotFound            = errors.New("media not found")
	ErrIsStream            = errors.New("media is an ongoing live stream")
	ErrTooLarge            = errors.New("media is too large")
	ErrMetadataFetchFailed = errors.New("metadata fetch failed")
	ErrDataFetchFailed     = errors.New("data fetch failed")
)

var errorKinds = []error{
	ErrInvalidLink,
	ErrNotFound,
	ErrIsStream,
	ErrTooLarge,
	ErrMetadataFetchFailed,
	ErrDataFetchFailed,
}

// KindOf returns the error kind sentinel err carries, or nil for errors
// that are not part of the taxonomy (transport failures and the like).
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
