package settings

import "errors"

var (
	ErrSettingsFile    = errors.New("cannot read settings file")
	ErrInvalidSettings = errors.New("invalid settings")
)
