package protocol

import "errors"

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)
