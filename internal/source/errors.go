package source

import "errors"

var (
	ErrSourceFetch       = errors.New("source fetch failed")
	ErrUnsupportedFormat = errors.New("unsupported source format")
)
