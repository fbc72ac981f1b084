package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/deployctl/internal/engine"
	"github.com/danmuck/deployctl/internal/tools"
	"github.com/danmuck/deployctl/internal/topology"
	"github.com/danmuck/deployctl/internal/workspace"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNilDependency = errors.New("deploy: required dependency is nil")

// RuntimeFactory returns the container runtime for one privilege level.
type RuntimeFactory func(sudo bool) engine.ContainerRuntime

// Config wires an Orchestrator.
type Config struct {
	Workspace       workspace.Workspace
	Names           topology.Names
	CacheImages     []string
	CacheDockerfile string
	Runtime         RuntimeFactory
	Bootstrapper    StateBootstrapper
	Runner          tools.CommandRunner
}

// Orchestrator sequences one redeploy. It is not safe for concurrent Deploy
// calls against the same workspace.
type Orchestrator struct {
	ws          workspace.Workspace
	names       topology.Names
	cacheImages []string
	dockerfile  string
	runtime     RuntimeFactory
	states      *StateManager
	generator   topology.Generator
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("%w: runtime factory", ErrNilDependency)
	}
	if cfg.Bootstrapper == nil {
		return nil, fmt.Errorf("%w: state bootstrapper", ErrNilDependency)
	}
	names := cfg.Names
	if names == (topology.Names{}) {
		names = topology.DefaultNames()
	}
	cacheImages := cfg.CacheImages
	if cacheImages == nil {
		cacheImages = DefaultCacheImages
	}
	return &Orchestrator{
		ws:          cfg.Workspace,
		names:       names,
		cacheImages: append([]string{}, cacheImages...),
		dockerfile:  cfg.CacheDockerfile,
		runtime:     cfg.Runtime,
		states:      NewStateManager(cfg.Workspace, cfg.Bootstrapper, cfg.Runner),
		generator:   topology.NewGenerator(cfg.Workspace, names),
	}, nil
}

// Render returns the topology document req would deploy, without side effects.
func (o *Orchestrator) Render(req Request) ([]byte, error) {
	req, err := o.normalize(req)
	if err != nil {
		return nil, err
	}
	topo, err := o.generator.Generate(req.topologyRequest())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return topology.Render(topo)
}

// Halt tears down any earlier deployment without starting a new one.
func (o *Orchestrator) Halt(ctx context.Context, sudo bool) (HaltReport, error) {
	report, err := NewHaltController(o.runtime(sudo), o.ws, o.names.Prefix).Halt(ctx)
	if err != nil {
		return report, phaseError(ctx, ErrHalt, err)
	}
	return report, nil
}

// Deploy runs caches -> halt -> topology -> build -> state reset -> up.
// The request is validated before any command runs.
func (o *Orchestrator) Deploy(ctx context.Context, req Request) error {
	req, err := o.normalize(req)
	if err != nil {
		return err
	}
	topo, err := o.generator.Generate(req.topologyRequest())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	logger := log.With().Str("run_id", uuid.NewString()).Logger()
	logger.Info().
		Str("contract", req.ContractPath).
		Int("nodes", req.NodeCount).
		Str("backend", string(req.Backend)).
		Str("phase", req.Phase.String()).
		Bool("sudo", req.Sudo).
		Msg("deploy.start")

	runtime := o.runtime(req.Sudo)

	step(logger, "caches")
	cache := NewCacheBootstrapper(runtime, o.ws.CacheContextDir, o.dockerfile)
	if err := cache.EnsureAll(ctx, o.cacheImages); err != nil {
		return phaseError(ctx, ErrCacheBuild, err)
	}

	step(logger, "halt")
	if _, err := NewHaltController(runtime, o.ws, o.names.Prefix).Halt(ctx); err != nil {
		return phaseError(ctx, ErrHalt, err)
	}

	step(logger, "topology")
	if err := o.writeTopology(topo); err != nil {
		return fmt.Errorf("%w: %w", ErrTopology, err)
	}

	if req.Phase.Builds() {
		step(logger, "build")
		if err := runtime.Build(ctx, o.ws.ComposeFile); err != nil {
			if interrupted(ctx, err) {
				return fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
			return &BuildError{ExitCode: engine.ExitCode(err), Err: err}
		}
	}

	step(logger, "state")
	if err := o.states.Reset(ctx, req.ContractPath, req.NodeCount, req.Sudo); err != nil {
		return phaseError(ctx, ErrStateBootstrap, err)
	}

	if req.Phase.RunsUp() {
		step(logger, "up")
		if err := runtime.Up(ctx, o.ws.ComposeFile); err != nil {
			return phaseError(ctx, ErrUpFailed, err)
		}
	}

	logger.Info().Msg("deploy.complete")
	return nil
}

// normalize validates req against this workspace. The contract must survive
// the state and cache cleanup of the run that mounts it.
func (o *Orchestrator) normalize(req Request) (Request, error) {
	req, err := req.Normalize()
	if err != nil {
		return Request{}, err
	}
	if o.ws.Disposable(req.ContractPath) {
		return Request{}, fmt.Errorf("%w: contract %q lies in a directory removed on every deploy", ErrInvalidRequest, req.ContractPath)
	}
	return req, nil
}

func (o *Orchestrator) writeTopology(topo topology.Topology) error {
	data, err := topology.Render(topo)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(o.ws.ComposeFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(o.ws.ComposeFile, data, 0o644)
}

func step(logger zerolog.Logger, name string) {
	logger.Info().Str("step", name).Msg("deploy.step")
}
