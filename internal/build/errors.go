package build

import "errors"

var (
	ErrStepExecution = errors.New("step execution failed")
	ErrTimeout       = errors.New("job timed out")
	ErrCancelled     = errors.New("job cancelled")
	ErrInternal      = errors.New("internal error")
	ErrPackageWrite  = errors.New("package write failed")
	ErrUnknownTarget = errors.New("unknown target")
)
