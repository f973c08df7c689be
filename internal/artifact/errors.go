package artifact

import "errors"

var (
	ErrArtifactCollection = errors.New("artifact collection failed")
	ErrInvalidPattern     = errors.New("invalid exclude pattern")
	ErrUnsafePath         = errors.New("unsafe archive entry")
)
