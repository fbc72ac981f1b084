package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/danmuck/deployctl/internal/engine"
	"github.com/danmuck/deployctl/internal/testutil/testlog"
	"github.com/danmuck/deployctl/internal/tools"
	"github.com/danmuck/deployctl/internal/workspace"
	"github.com/stretchr/testify/require"
)

// eventLog is shared by every fake so cross-component ordering is observable.
type eventLog struct {
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) index(prefix string) int {
	for i, e := range l.events {
		if strings.HasPrefix(e, prefix) {
			return i
		}
	}
	return -1
}

func (l *eventLog) has(prefix string) bool {
	return l.index(prefix) >= 0
}

type fakeRuntime struct {
	log         *eventLog
	images      map[string]bool
	running     []engine.Container
	stopped     []engine.Container
	dockerfiles map[string]string

	imageErr error
	buildErr error
	upErr    error
	downErr  error
	killErr  error
	rmErr    error
	onBuild  func()
}

var _ engine.ContainerRuntime = (*fakeRuntime)(nil)

func newFakeRuntime(log *eventLog) *fakeRuntime {
	return &fakeRuntime{
		log:         log,
		images:      map[string]bool{},
		dockerfiles: map[string]string{},
	}
}

func (f *fakeRuntime) ImageExists(_ context.Context, name string) (bool, error) {
	f.log.add("image-exists %s", name)
	return f.images[name], nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, tag, contextDir string) error {
	f.log.add("build-image %s", tag)
	if f.imageErr != nil {
		return f.imageErr
	}
	data, err := os.ReadFile(filepath.Join(contextDir, "Dockerfile"))
	if err != nil {
		return err
	}
	f.dockerfiles[tag] = string(data)
	f.images[tag] = true
	return nil
}

func (f *fakeRuntime) Build(_ context.Context, composeFile string) error {
	f.log.add("compose-build %s", composeFile)
	if f.onBuild != nil {
		f.onBuild()
	}
	return f.buildErr
}

func (f *fakeRuntime) Up(_ context.Context, composeFile string) error {
	f.log.add("compose-up %s", composeFile)
	return f.upErr
}

func (f *fakeRuntime) Down(_ context.Context, composeFile string) error {
	f.log.add("compose-down %s", composeFile)
	return f.downErr
}

func (f *fakeRuntime) ListContainers(_ context.Context, all bool) ([]engine.Container, error) {
	if all {
		f.log.add("ps -a")
		return append(slices.Clone(f.running), f.stopped...), nil
	}
	f.log.add("ps")
	return slices.Clone(f.running), nil
}

func (f *fakeRuntime) KillContainers(_ context.Context, ids []string) error {
	f.log.add("kill %s", strings.Join(ids, ","))
	if f.killErr != nil {
		return f.killErr
	}
	var keep []engine.Container
	for _, c := range f.running {
		if slices.Contains(ids, c.ID) {
			f.stopped = append(f.stopped, c)
			continue
		}
		keep = append(keep, c)
	}
	f.running = keep
	return nil
}

func (f *fakeRuntime) RemoveContainers(_ context.Context, ids []string) error {
	f.log.add("rm %s", strings.Join(ids, ","))
	if f.rmErr != nil {
		return f.rmErr
	}
	drop := func(c engine.Container) bool { return slices.Contains(ids, c.ID) }
	f.running = slices.DeleteFunc(f.running, drop)
	f.stopped = slices.DeleteFunc(f.stopped, drop)
	return nil
}

// fakeBootstrapper creates empty node directories the way the seeding script
// would.
type fakeBootstrapper struct {
	log *eventLog
	ws  workspace.Workspace
	err error
	// skip leaves one node directory out to simulate a partial seed.
	skip int
}

func (b *fakeBootstrapper) SetupStates(_ context.Context, contractPath string, nodeCount int, sudo bool) error {
	b.log.add("setup-states %s %d sudo=%t", filepath.Base(contractPath), nodeCount, sudo)
	if b.err != nil {
		return b.err
	}
	for i := 0; i < nodeCount; i++ {
		if b.skip > 0 && i == b.skip {
			continue
		}
		if err := os.MkdirAll(b.ws.StatePath(i), 0o755); err != nil {
			return err
		}
	}
	return nil
}

type fakeRunner struct {
	commands []tools.Command
	err      error
	onExec   func(tools.Command)
}

func (r *fakeRunner) Exec(_ context.Context, cmd tools.Command) (tools.Result, error) {
	r.commands = append(r.commands, cmd)
	if r.onExec != nil {
		r.onExec(cmd)
	}
	if r.err != nil {
		return tools.Result{ExitCode: 1, Stderr: []byte("boom")}, r.err
	}
	return tools.Result{}, nil
}

type harness struct {
	ws        workspace.Workspace
	log       *eventLog
	runtime   *fakeRuntime
	boot      *fakeBootstrapper
	orch      *Orchestrator
	contract  string
	sudoCalls []bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testlog.Start(t)

	ws, err := workspace.New(t.TempDir(), workspace.DefaultLayout())
	require.NoError(t, err)

	contract := filepath.Join(ws.Dir, "contract.ao")
	require.NoError(t, os.WriteFile(contract, []byte("ao"), 0o644))

	h := &harness{ws: ws, log: &eventLog{}, contract: contract}
	h.runtime = newFakeRuntime(h.log)
	h.boot = &fakeBootstrapper{log: h.log, ws: ws}

	orch, err := New(Config{
		Workspace:    ws,
		Runtime:      h.runtimeFor,
		Bootstrapper: h.boot,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) runtimeFor(sudo bool) engine.ContainerRuntime {
	h.sudoCalls = append(h.sudoCalls, sudo)
	return h.runtime
}

func (h *harness) request(n int, phase Phase) Request {
	return Request{ContractPath: h.contract, NodeCount: n, Phase: phase}
}

func (h *harness) stateEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.ws.StateRoot)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
