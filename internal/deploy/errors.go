package deploy

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("deploy: invalid request")
	ErrCacheBuild     = errors.New("deploy: build cache bootstrap failed")
	ErrHalt           = errors.New("deploy: halt failed")
	ErrTopology       = errors.New("deploy: topology write failed")
	ErrBuild          = errors.New("deploy: build failed")
	ErrStateBootstrap = errors.New("deploy: state bootstrap failed")
	ErrUpFailed       = errors.New("deploy: up failed")
	ErrInterrupted    = errors.New("deploy: interrupted")
)

// BuildError reports a compose build that exited non-zero.
type BuildError struct {
	ExitCode int32
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%v: exit=%d: %v", ErrBuild, e.ExitCode, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func (e *BuildError) Is(target error) bool {
	return target == ErrBuild
}

// ExitCode maps a Deploy result to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// interrupted reports whether err or ctx reflects a cancellation.
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// phaseError classifies err under kind, unless the failure was a cancellation.
func phaseError(ctx context.Context, kind error, err error) error {
	if interrupted(ctx, err) {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
