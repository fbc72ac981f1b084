package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/deployctl/internal/tools"
	"github.com/danmuck/deployctl/internal/workspace"
	"github.com/rs/zerolog/log"
)

// Placeholders substituted in a bootstrap command.
const (
	PlaceholderContract  = "{contract}"
	PlaceholderNodes     = "{nodes}"
	PlaceholderStateRoot = "{state_root}"
	// PlaceholderSudoFlag expands to "--sudo" when elevated and is dropped otherwise.
	PlaceholderSudoFlag = "{sudo_flag}"
)

// DefaultBootstrapCommand seeds validator state with the project script.
var DefaultBootstrapCommand = []string{
	"python3",
	"scripts/setup_states.py",
	PlaceholderContract,
	PlaceholderNodes,
	PlaceholderSudoFlag,
}

var ErrInvalidBootstrapCommand = errors.New("deploy: invalid bootstrap command")

// StateBootstrapper populates per-node state directories 0..nodeCount-1 from
// a contract artifact.
type StateBootstrapper interface {
	SetupStates(ctx context.Context, contractPath string, nodeCount int, sudo bool) error
}

// CommandBootstrapper delegates state seeding to an external command.
type CommandBootstrapper struct {
	runner    tools.CommandRunner
	argv      []string
	stateRoot string
}

func NewCommandBootstrapper(runner tools.CommandRunner, argv []string, ws workspace.Workspace) (*CommandBootstrapper, error) {
	cleaned := make([]string, 0, len(argv))
	for _, arg := range argv {
		if v := strings.TrimSpace(arg); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidBootstrapCommand)
	}
	if strings.Contains(cleaned[0], "{") {
		return nil, fmt.Errorf("%w: placeholder not allowed in binary %q", ErrInvalidBootstrapCommand, cleaned[0])
	}
	if runner == nil {
		runner = tools.ExecRunner{Dir: ws.Dir}
	}
	return &CommandBootstrapper{
		runner:    runner,
		argv:      cleaned,
		stateRoot: ws.StateRoot,
	}, nil
}

func (b *CommandBootstrapper) SetupStates(ctx context.Context, contractPath string, nodeCount int, sudo bool) error {
	cmd := tools.Command{
		Name: b.argv[0],
		Args: b.expand(contractPath, nodeCount, sudo),
	}
	res, err := b.runner.Exec(ctx, cmd)
	if err != nil {
		if interrupted(ctx, err) {
			return err
		}
		return tools.Failure(cmd, res, err)
	}
	return nil
}

func (b *CommandBootstrapper) expand(contractPath string, nodeCount int, sudo bool) []string {
	replacer := strings.NewReplacer(
		PlaceholderContract, contractPath,
		PlaceholderNodes, strconv.Itoa(nodeCount),
		PlaceholderStateRoot, b.stateRoot,
	)
	args := make([]string, 0, len(b.argv)-1)
	for _, arg := range b.argv[1:] {
		if arg == PlaceholderSudoFlag {
			if sudo {
				args = append(args, "--sudo")
			}
			continue
		}
		args = append(args, replacer.Replace(arg))
	}
	return args
}

// StateManager owns the lifecycle of the per-node state tree.
type StateManager struct {
	ws           workspace.Workspace
	bootstrapper StateBootstrapper
	runner       tools.CommandRunner
}

func NewStateManager(ws workspace.Workspace, bootstrapper StateBootstrapper, runner tools.CommandRunner) *StateManager {
	if runner == nil {
		runner = tools.ExecRunner{Dir: ws.Dir}
	}
	return &StateManager{ws: ws, bootstrapper: bootstrapper, runner: runner}
}

// Reset deletes the whole state root and reseeds it for nodeCount nodes.
// The deletion is not undone if seeding fails.
func (m *StateManager) Reset(ctx context.Context, contractPath string, nodeCount int, sudo bool) error {
	if err := m.removeRoot(ctx, sudo); err != nil {
		return err
	}
	log.Info().Str("state_root", m.ws.StateRoot).Int("nodes", nodeCount).Msg("deploy.state seeding")
	if err := m.bootstrapper.SetupStates(ctx, contractPath, nodeCount, sudo); err != nil {
		return err
	}
	return m.verify(nodeCount)
}

// removeRoot deletes the state tree. Containers may leave root-owned files
// behind, so elevated runs delete through sudo.
func (m *StateManager) removeRoot(ctx context.Context, sudo bool) error {
	root := m.ws.StateRoot
	if _, err := os.Lstat(root); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	log.Info().Str("state_root", root).Bool("sudo", sudo).Msg("deploy.state removing")

	if sudo {
		cmd := tools.Command{Name: "rm", Args: []string{"-rf", root}, Sudo: true}
		if res, err := m.runner.Exec(ctx, cmd); err != nil {
			if interrupted(ctx, err) {
				return err
			}
			return tools.Failure(cmd, res, err)
		}
	} else if err := os.RemoveAll(root); err != nil {
		return err
	}

	if _, err := os.Lstat(root); !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state root %s still present after removal", root)
	}
	return nil
}

func (m *StateManager) verify(nodeCount int) error {
	for i := 0; i < nodeCount; i++ {
		path := m.ws.StatePath(i)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("node %d state missing after bootstrap: %w", i, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("node %d state %s is not a directory", i, path)
		}
	}
	return nil
}
