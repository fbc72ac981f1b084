package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/danmuck/deployctl/internal/tools"
)

const (
	DefaultDocker = "docker"
	listFormat    = "{{.ID}}\t{{.Names}}"
)

// DefaultCompose is the compose invocation prefix.
var DefaultCompose = []string{"docker-compose"}

// DockerConfig configures the docker CLI runtime.
type DockerConfig struct {
	Runner  tools.CommandRunner
	Sudo    bool
	Docker  string
	Compose []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// DockerCLI implements ContainerRuntime with the docker and compose binaries.
type DockerCLI struct {
	runner  tools.CommandRunner
	sudo    bool
	docker  string
	compose []string
	stdout  io.Writer
	stderr  io.Writer
}

var _ ContainerRuntime = (*DockerCLI)(nil)

func NewDockerCLI(cfg DockerConfig) *DockerCLI {
	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	docker := strings.TrimSpace(cfg.Docker)
	if docker == "" {
		docker = DefaultDocker
	}
	compose := normalizeArgv(cfg.Compose)
	if len(compose) == 0 {
		compose = append([]string{}, DefaultCompose...)
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &DockerCLI{
		runner:  runner,
		sudo:    cfg.Sudo,
		docker:  docker,
		compose: compose,
		stdout:  stdout,
		stderr:  stderr,
	}
}

func (d *DockerCLI) ImageExists(ctx context.Context, name string) (bool, error) {
	res, err := d.run(ctx, "images", tools.Command{
		Name:    d.docker,
		Args:    []string{"images", "-q", name},
		Capture: true,
		Quiet:   true,
	})
	if err != nil {
		return false, err
	}
	return res.Text() != "", nil
}

func (d *DockerCLI) BuildImage(ctx context.Context, tag, contextDir string) error {
	_, err := d.run(ctx, "build", tools.Command{
		Name: d.docker,
		Args: []string{"build", "-t", tag, contextDir},
	})
	return err
}

func (d *DockerCLI) Build(ctx context.Context, composeFile string) error {
	_, err := d.run(ctx, "compose build", d.composeCommand(composeFile, "build"))
	return err
}

func (d *DockerCLI) Up(ctx context.Context, composeFile string) error {
	_, err := d.run(ctx, "compose up", d.composeCommand(composeFile, "up"))
	return err
}

func (d *DockerCLI) Down(ctx context.Context, composeFile string) error {
	cmd := d.composeCommand(composeFile, "down", "-t", "0")
	cmd.Capture = true
	_, err := d.run(ctx, "compose down", cmd)
	return err
}

func (d *DockerCLI) ListContainers(ctx context.Context, all bool) ([]Container, error) {
	args := []string{"ps"}
	if all {
		args = append(args, "-a")
	}
	args = append(args, "--format", listFormat)
	res, err := d.run(ctx, "ps", tools.Command{
		Name:    d.docker,
		Args:    args,
		Capture: true,
		Quiet:   true,
	})
	if err != nil {
		return nil, err
	}
	return parseContainerList(res.Stdout), nil
}

func (d *DockerCLI) KillContainers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	_, err := d.run(ctx, "kill", tools.Command{
		Name:    d.docker,
		Args:    append([]string{"kill"}, ids...),
		Capture: true,
	})
	return err
}

func (d *DockerCLI) RemoveContainers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	_, err := d.run(ctx, "rm", tools.Command{
		Name:    d.docker,
		Args:    append([]string{"rm", "-f"}, ids...),
		Capture: true,
	})
	return err
}

func (d *DockerCLI) composeCommand(composeFile string, args ...string) tools.Command {
	full := make([]string, 0, len(d.compose)+2+len(args))
	full = append(full, d.compose[1:]...)
	full = append(full, "-f", composeFile)
	full = append(full, args...)
	return tools.Command{Name: d.compose[0], Args: full}
}

func (d *DockerCLI) run(ctx context.Context, op string, cmd tools.Command) (tools.Result, error) {
	cmd.Sudo = d.sudo
	if !cmd.Capture {
		cmd.Stdout = d.stdout
		cmd.Stderr = d.stderr
	}
	res, err := d.runner.Exec(ctx, cmd)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}
	code := res.ExitCode
	if code == 0 {
		code = 1
	}
	return res, &ExitError{Op: op, Code: code, Err: tools.Failure(cmd, res, err)}
}

func parseContainerList(out []byte) []Container {
	list := make([]Container, 0)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, names, _ := strings.Cut(line, "\t")
		if names == "" {
			fields := strings.Fields(line)
			id = fields[0]
			if len(fields) > 1 {
				names = fields[len(fields)-1]
			}
		}
		list = append(list, Container{ID: strings.TrimSpace(id), Name: strings.TrimSpace(names)})
	}
	return list
}

func normalizeArgv(in []string) []string {
	out := make([]string, 0, len(in))
	for _, arg := range in {
		if v := strings.TrimSpace(arg); v != "" {
			out = append(out, v)
		}
	}
	return out
}
