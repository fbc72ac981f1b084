package deploy

import (
	"context"
	"strings"

	"github.com/danmuck/deployctl/internal/engine"
	"github.com/danmuck/deployctl/internal/workspace"
	"github.com/rs/zerolog/log"
)

// HaltReport records what one halt actually touched.
type HaltReport struct {
	ComposeDown bool
	Killed      []string
	Removed     []string
}

// Mutated reports whether the halt issued any state-changing runtime command.
func (r HaltReport) Mutated() bool {
	return r.ComposeDown || len(r.Killed) > 0 || len(r.Removed) > 0
}

// HaltController tears down earlier deployments of this tool.
type HaltController struct {
	runtime engine.ContainerRuntime
	ws      workspace.Workspace
	pattern string
}

// NewHaltController matches containers whose name contains pattern.
func NewHaltController(runtime engine.ContainerRuntime, ws workspace.Workspace, pattern string) *HaltController {
	return &HaltController{
		runtime: runtime,
		ws:      ws,
		pattern: strings.TrimSpace(pattern),
	}
}

// Halt brings down the compose project recorded in the workspace, if any,
// then kills and force-removes every container matching the naming
// convention whether or not a document was present.
func (h *HaltController) Halt(ctx context.Context) (HaltReport, error) {
	var report HaltReport

	if h.ws.HasTopology() {
		err := h.runtime.Down(ctx, h.ws.ComposeFile)
		if err != nil {
			if interrupted(ctx, err) {
				return report, err
			}
			// A stale document must not block the container sweep below.
			log.Warn().Err(err).Str("compose", h.ws.ComposeFile).Msg("deploy.halt compose down failed")
		}
		report.ComposeDown = true
	}

	running, err := h.runtime.ListContainers(ctx, false)
	if err != nil {
		return report, err
	}
	if matched := engine.Matching(running, h.pattern); len(matched) > 0 {
		ids := engine.IDs(matched)
		if err := h.runtime.KillContainers(ctx, ids); err != nil {
			if interrupted(ctx, err) {
				return report, err
			}
			log.Warn().Err(err).Strs("ids", ids).Msg("deploy.halt kill failed")
		} else {
			report.Killed = ids
		}
	}

	all, err := h.runtime.ListContainers(ctx, true)
	if err != nil {
		return report, err
	}
	if matched := engine.Matching(all, h.pattern); len(matched) > 0 {
		ids := engine.IDs(matched)
		if err := h.runtime.RemoveContainers(ctx, ids); err != nil {
			return report, err
		}
		report.Removed = ids
	}

	log.Info().
		Bool("compose_down", report.ComposeDown).
		Int("killed", len(report.Killed)).
		Int("removed", len(report.Removed)).
		Msg("deploy.halt complete")
	return report, nil
}
