package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/deployctl/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhase(t *testing.T) {
	cases := []struct {
		build, up bool
		want      Phase
		builds    bool
		runsUp    bool
	}{
		{false, false, PhaseBuildAndUp, true, true},
		{true, false, PhaseBuildOnly, true, false},
		{false, true, PhaseUpOnly, false, true},
	}
	for _, tc := range cases {
		got, err := NewPhase(tc.build, tc.up)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.builds, got.Builds(), got.String())
		assert.Equal(t, tc.runsUp, got.RunsUp(), got.String())
	}
}

func TestNormalizeDefaultsAndResolves(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.ao"), []byte("ao"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	req, err := Request{ContractPath: "c.ao", NodeCount: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, topology.DefaultBackend, req.Backend)
	assert.True(t, filepath.IsAbs(req.ContractPath))
	assert.Equal(t, "c.ao", filepath.Base(req.ContractPath))
}

func TestNormalizeRejects(t *testing.T) {
	dir := t.TempDir()
	contract := filepath.Join(dir, "c.ao")
	require.NoError(t, os.WriteFile(contract, []byte("ao"), 0o644))

	cases := map[string]Request{
		"zero nodes":   {ContractPath: contract, NodeCount: 0},
		"no contract":  {NodeCount: 1},
		"missing file": {ContractPath: filepath.Join(dir, "nope.ao"), NodeCount: 1},
		"directory":    {ContractPath: dir, NodeCount: 1},
		"backend":      {ContractPath: contract, NodeCount: 1, Backend: "wasm"},
		"phase":        {ContractPath: contract, NodeCount: 1, Phase: Phase(4)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := req.Normalize()
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(ErrInvalidRequest))
	assert.Equal(t, 1, ExitCode(&BuildError{ExitCode: 137, Err: errors.New("killed")}))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("%w: %w", ErrInterrupted, errors.New("signal"))))
}
