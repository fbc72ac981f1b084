// Package workspace resolves the on-disk layout one deployment owns: the
// topology document, the per-node state tree, the validator build context and
// the scratch directory used for cache image builds.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultComposeFile     = "docker-compose.yml"
	DefaultStateRoot       = "validator-states"
	DefaultStatePattern    = "validator%d"
	DefaultBuildContext    = "packages"
	DefaultDockerfile      = "arb-validator.Dockerfile"
	DefaultCacheContextDir = ".tmp"
)

var ErrInvalidLayout = errors.New("workspace: invalid layout")

// Layout is the relative shape of a workspace as configured.
type Layout struct {
	ComposeFile     string
	StateRoot       string
	StatePattern    string
	BuildContext    string
	Dockerfile      string
	CacheContextDir string
}

// DefaultLayout mirrors the layout expected by the validator images.
func DefaultLayout() Layout {
	return Layout{
		ComposeFile:     DefaultComposeFile,
		StateRoot:       DefaultStateRoot,
		StatePattern:    DefaultStatePattern,
		BuildContext:    DefaultBuildContext,
		Dockerfile:      DefaultDockerfile,
		CacheContextDir: DefaultCacheContextDir,
	}
}

// Workspace is an absolute, resolved deployment layout rooted at Dir.
type Workspace struct {
	Dir             string
	ComposeFile     string
	StateRoot       string
	StatePattern    string
	BuildContext    string
	Dockerfile      string
	CacheContextDir string
}

// New resolves layout against dir. An empty dir resolves to the process
// working directory once, here.
func New(dir string, layout Layout) (Workspace, error) {
	root := strings.TrimSpace(dir)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Workspace{}, err
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, err
	}
	if err := validateLayout(layout); err != nil {
		return Workspace{}, err
	}

	ws := Workspace{
		Dir:             abs,
		ComposeFile:     resolve(abs, layout.ComposeFile),
		StateRoot:       resolve(abs, layout.StateRoot),
		StatePattern:    layout.StatePattern,
		BuildContext:    resolve(abs, layout.BuildContext),
		Dockerfile:      strings.TrimSpace(layout.Dockerfile),
		CacheContextDir: resolve(abs, layout.CacheContextDir),
	}
	if err := ws.validateDisposable(); err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

type namedPath struct {
	name string
	path string
}

// validateDisposable rejects layouts where a tree deleted on every run
// (state root, cache scratch dir) would take a managed path with it.
func (w Workspace) validateDisposable() error {
	disposable := []namedPath{
		{"state_root", w.StateRoot},
		{"cache_context_dir", w.CacheContextDir},
	}
	protected := []namedPath{
		{"workspace dir", w.Dir},
		{"build_context", w.BuildContext},
		{"compose_file", w.ComposeFile},
	}
	for _, d := range disposable {
		for _, p := range protected {
			if within(d.path, p.path) {
				return fmt.Errorf("%w: %s=%q would remove %s %q", ErrInvalidLayout, d.name, d.path, p.name, p.path)
			}
		}
	}
	if within(w.StateRoot, w.CacheContextDir) || within(w.CacheContextDir, w.StateRoot) {
		return fmt.Errorf("%w: state_root=%q and cache_context_dir=%q overlap", ErrInvalidLayout, w.StateRoot, w.CacheContextDir)
	}
	return nil
}

// Disposable reports whether path lies in a tree a deploy deletes.
func (w Workspace) Disposable(path string) bool {
	return within(w.StateRoot, path) || within(w.CacheContextDir, path)
}

// within reports whether p is root or lies below it.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// StatePath returns the state directory of node index.
func (w Workspace) StatePath(index int) string {
	return filepath.Join(w.StateRoot, fmt.Sprintf(w.StatePattern, index))
}

// HasTopology reports whether a topology document from an earlier run exists.
func (w Workspace) HasTopology() bool {
	info, err := os.Stat(w.ComposeFile)
	return err == nil && info.Mode().IsRegular()
}

func validateLayout(layout Layout) error {
	for name, v := range map[string]string{
		"compose_file":      layout.ComposeFile,
		"state_root":        layout.StateRoot,
		"build_context":     layout.BuildContext,
		"dockerfile":        layout.Dockerfile,
		"cache_context_dir": layout.CacheContextDir,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidLayout, name)
		}
	}
	if strings.Count(layout.StatePattern, "%d") != 1 || strings.Count(layout.StatePattern, "%") != 1 {
		return fmt.Errorf("%w: state_pattern=%q must contain exactly one %%d", ErrInvalidLayout, layout.StatePattern)
	}
	if strings.ContainsRune(layout.StatePattern, os.PathSeparator) {
		return fmt.Errorf("%w: state_pattern=%q must name a single directory", ErrInvalidLayout, layout.StatePattern)
	}
	return nil
}

func resolve(root, p string) string {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
