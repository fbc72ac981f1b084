package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/deployctl/internal/topology"
)

// Phase selects which runtime phases a deploy executes.
type Phase int

const (
	PhaseBuildAndUp Phase = iota
	PhaseBuildOnly
	PhaseUpOnly
)

// NewPhase converts the --build/--up flag pair. Setting both is rejected.
func NewPhase(buildOnly, upOnly bool) (Phase, error) {
	switch {
	case buildOnly && upOnly:
		return 0, fmt.Errorf("%w: build-only and up-only are mutually exclusive", ErrInvalidRequest)
	case buildOnly:
		return PhaseBuildOnly, nil
	case upOnly:
		return PhaseUpOnly, nil
	default:
		return PhaseBuildAndUp, nil
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseBuildAndUp:
		return "build+up"
	case PhaseBuildOnly:
		return "build"
	case PhaseUpOnly:
		return "up"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Builds reports whether the compose build phase runs.
func (p Phase) Builds() bool {
	return p == PhaseBuildAndUp || p == PhaseBuildOnly
}

// RunsUp reports whether the compose up phase runs.
func (p Phase) RunsUp() bool {
	return p == PhaseBuildAndUp || p == PhaseUpOnly
}

func (p Phase) valid() bool {
	return p == PhaseBuildAndUp || p == PhaseBuildOnly || p == PhaseUpOnly
}

// Request is one deploy invocation.
type Request struct {
	ContractPath string
	NodeCount    int
	Backend      topology.Backend
	Sudo         bool
	Phase        Phase
}

// Normalize validates r and returns a copy with an absolute contract path.
// It has no side effects besides a stat of the contract.
func (r Request) Normalize() (Request, error) {
	if r.NodeCount < 1 {
		return Request{}, fmt.Errorf("%w: node count must be at least 1, got %d", ErrInvalidRequest, r.NodeCount)
	}
	if !r.Phase.valid() {
		return Request{}, fmt.Errorf("%w: unknown phase %d", ErrInvalidRequest, int(r.Phase))
	}
	if strings.TrimSpace(string(r.Backend)) == "" {
		r.Backend = topology.DefaultBackend
	}
	if err := r.Backend.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	contract := strings.TrimSpace(r.ContractPath)
	if contract == "" {
		return Request{}, fmt.Errorf("%w: contract path required", ErrInvalidRequest)
	}
	abs, err := filepath.Abs(contract)
	if err != nil {
		return Request{}, fmt.Errorf("%w: contract path %q: %w", ErrInvalidRequest, contract, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Request{}, fmt.Errorf("%w: contract %q: %w", ErrInvalidRequest, abs, err)
	}
	if info.IsDir() {
		return Request{}, fmt.Errorf("%w: contract %q is a directory", ErrInvalidRequest, abs)
	}
	r.ContractPath = abs
	return r, nil
}

func (r Request) topologyRequest() topology.Request {
	return topology.Request{
		NodeCount:    r.NodeCount,
		ContractPath: r.ContractPath,
		Backend:      r.Backend,
	}
}
