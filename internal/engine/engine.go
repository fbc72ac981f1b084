// Package engine is the container-runtime boundary. Deployment code talks to
// ContainerRuntime; DockerCLI drives docker and docker-compose through a
// tools.CommandRunner.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptySelection = errors.New("engine: no container ids given")

// Container is one entry of the runtime container list.
type Container struct {
	ID   string
	Name string
}

// ContainerRuntime is the set of runtime operations deployments depend on.
type ContainerRuntime interface {
	ImageExists(ctx context.Context, name string) (bool, error)
	BuildImage(ctx context.Context, tag, contextDir string) error
	Build(ctx context.Context, composeFile string) error
	Up(ctx context.Context, composeFile string) error
	Down(ctx context.Context, composeFile string) error
	ListContainers(ctx context.Context, all bool) ([]Container, error)
	KillContainers(ctx context.Context, ids []string) error
	RemoveContainers(ctx context.Context, ids []string) error
}

// ExitError reports a runtime command that ran and exited non-zero.
type ExitError struct {
	Op   string
	Code int32
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("engine: %s exited %d: %v", e.Op, e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode extracts the runtime exit code from err, or 0 when err carries none.
func ExitCode(err error) int32 {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 0
}

// Matching returns the containers whose name contains pattern, in list order.
// Compose decorates service names with project prefixes and replica
// suffixes, so this is a substring match.
func Matching(list []Container, pattern string) []Container {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	out := make([]Container, 0, len(list))
	for _, c := range list {
		if strings.Contains(c.Name, pattern) {
			out = append(out, c)
		}
	}
	return out
}

// IDs returns the container ids of list.
func IDs(list []Container) []string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids
}
