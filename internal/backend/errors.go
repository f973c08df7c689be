package backend

import "errors"

var (
	ErrEnvironmentSetup   = errors.New("environment setup failed")
	ErrRuntimeUnavailable = errors.New("execution runtime unavailable")
	ErrExec               = errors.New("exec failed")
	ErrHandleDestroyed    = errors.New("environment already destroyed")
	ErrPathNotFound       = errors.New("path not found in environment")
)
