package runtime

import "errors"

var (
	ErrRuntime          = errors.New("runtime error")
	ErrInvalidReference = errors.New("invalid image reference")
	ErrUnsupportedOS    = errors.New("no package manager known for OS")
)
