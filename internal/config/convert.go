package config

import (
	"github.com/danmuck/deployctl/internal/engine"
	"github.com/danmuck/deployctl/internal/topology"
	"github.com/danmuck/deployctl/internal/tools"
	"github.com/danmuck/deployctl/internal/workspace"
)

func (c Config) Layout() workspace.Layout {
	return workspace.Layout{
		ComposeFile:     c.Workspace.ComposeFile,
		StateRoot:       c.Workspace.StateRoot,
		StatePattern:    c.Workspace.StatePattern,
		BuildContext:    c.Workspace.BuildContext,
		Dockerfile:      c.Workspace.Dockerfile,
		CacheContextDir: c.Workspace.CacheContextDir,
	}
}

// ResolveWorkspace resolves the configured layout. dir overrides
// Workspace.Dir when non-empty.
func (c Config) ResolveWorkspace(dir string) (workspace.Workspace, error) {
	if dir == "" {
		dir = c.Workspace.Dir
	}
	return workspace.New(dir, c.Layout())
}

func (c Config) TopologyNames() topology.Names {
	return topology.Names{
		Prefix:     c.Names.Prefix,
		Image:      c.Names.Image,
		Proxy:      c.Names.Proxy,
		ProxyImage: c.Names.ProxyImage,
	}
}

// DockerConfig returns the runtime settings for one privilege level.
func (c Config) DockerConfig(runner tools.CommandRunner, sudo bool) engine.DockerConfig {
	return engine.DockerConfig{
		Runner:  runner,
		Sudo:    sudo,
		Docker:  c.Runtime.Docker,
		Compose: append([]string{}, c.Runtime.Compose...),
	}
}
