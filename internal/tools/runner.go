package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// ExitNotFound is reported when the binary could not be started.
	ExitNotFound int32 = 127
	sudoBinary         = "sudo"

	// DefaultWaitDelay bounds how long Exec waits after cancellation for the
	// child to exit and for its output pipes to close.
	DefaultWaitDelay = 5 * time.Second
	// StderrTailLimit caps the stderr bytes kept in Result.Stderr.
	StderrTailLimit = 64 << 10
)

// Command describes one host command invocation.
//
// Capture collects stdout into Result.Stdout instead of forwarding it to
// Stdout. Quiet suppresses the command echo in the log. Sudo prefixes the
// invocation with sudo.
type Command struct {
	Name    string
	Args    []string
	Sudo    bool
	Capture bool
	Quiet   bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// Result is the normalized outcome of one command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
}

// Text returns captured stdout with surrounding whitespace removed.
func (r Result) Text() string {
	return strings.TrimSpace(string(r.Stdout))
}

// CommandRunner abstracts shell command execution for runtime adapters.
type CommandRunner interface {
	Exec(ctx context.Context, cmd Command) (Result, error)
}

// Argv returns the full argument vector, including the sudo prefix.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+2)
	if c.Sudo {
		argv = append(argv, sudoBinary)
	}
	argv = append(argv, c.Name)
	argv = append(argv, c.Args...)
	return argv
}

// String renders the command shell-escaped, as it would be typed.
func (c Command) String() string {
	argv := c.Argv()
	return joinCommand(argv[0], argv[1:])
}

// ExecRunner executes commands on the local host.
//
// On cancellation the child receives SIGTERM. If it or a grandchild holding
// its output pipes is still around after WaitDelay, the child is killed and
// the pipes are closed so Exec returns.
type ExecRunner struct {
	Dir       string
	WaitDelay time.Duration
}

// tools command-runner implementation backed by os/exec.
func (r ExecRunner) Exec(ctx context.Context, c Command) (Result, error) {
	argv := c.Argv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: StderrTailLimit}
	switch {
	case c.Capture || c.Stdout == nil:
		cmd.Stdout = &stdout
	default:
		cmd.Stdout = c.Stdout
	}
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, c.Stderr)
	} else {
		cmd.Stderr = stderr
	}

	if !c.Quiet {
		log.Info().Str("cmd", c.String()).Msg("tools.exec")
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = 1
		return res, ctxErr
	}
	if err == nil {
		return res, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		log.Warn().Str("cmd", c.String()).Msg("tools.exec output left open by a background process")
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = int32(exitErr.ExitCode())
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = ExitNotFound
	}
	return res, err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		return n, nil
	}
	if over := len(t.buf) + n - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	return bytes.Clone(t.buf)
}

// Failure formats a failed command with its exit state and output.
func Failure(c Command, res Result, err error) error {
	return fmt.Errorf(
		"command failed cmd=%s args=%q exit=%d stdout=%q stderr=%q: %w",
		c.Name,
		strings.Join(c.Args, " "),
		res.ExitCode,
		strings.TrimSpace(string(res.Stdout)),
		strings.TrimSpace(string(res.Stderr)),
		err,
	)
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}
	if isShellSafe(value) {
		return value
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func isShellSafe(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if isAlnum {
			continue
		}
		switch c {
		case '-', '_', '.', '/', ':', '=', '@', ',', '+':
			continue
		}
		return false
	}
	return true
}
