// File: cmd/runs_test.go
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/rglaunch/internal/gitcheck"
	"github.com/xkilldash9x/rglaunch/internal/ledger"
	"github.com/xkilldash9x/rglaunch/internal/preset"
)

func listRuns(t *testing.T, e *env) []*ledger.Record {
	t.Helper()
	out, err := e.execute(t, "runs", "list", "--json")
	require.NoError(t, err)
	var records []*ledger.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	return records
}

func TestRunsAndLogs(t *testing.T) {
	e := newEnv(t)
	_, err := e.execute(t, "run", "toy", "false", "3wrobot_kin")
	require.NoError(t, err)
	_, err = e.execute(t, "run", "toy", "true", "fail", "-r")
	require.Error(t, err)

	records := listRuns(t, e)
	require.Len(t, records, 2)
	failed, passed := records[0], records[1]
	assert.Equal(t, ledger.StatusFailed, failed.Status)
	assert.Equal(t, "ros", failed.Variant)
	assert.Equal(t, ledger.StatusSuccessful, passed.Status)

	t.Run("list", func(t *testing.T) {
		out, err := e.execute(t, "runs", "list")
		require.NoError(t, err)
		assert.Contains(t, out, passed.ShortID())
		assert.Contains(t, out, "toy (ros)")
		assert.Contains(t, out, "disallow_uncommitted=false system=3wrobot_kin")
	})

	t.Run("show by prefix", func(t *testing.T) {
		out, err := e.execute(t, "runs", "show", failed.ShortID())
		require.NoError(t, err)
		assert.Contains(t, out, "id:          "+failed.ID)
		assert.Contains(t, out, "exit code:   3")
		assert.Contains(t, out, "last error:  ValueError: cannot stabilize fail")
		assert.Contains(t, out, "search path: "+e.root)
	})

	t.Run("show unknown", func(t *testing.T) {
		_, err := e.execute(t, "runs", "show", "zzzz")
		assert.ErrorIs(t, err, ledger.ErrRunNotFound)
	})

	t.Run("logs", func(t *testing.T) {
		out, err := e.execute(t, "logs", passed.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "argv disallow_uncommitted=false system=3wrobot_kin"), out)
		assert.Contains(t, out, "PYTHONPATH="+e.root)
	})

	t.Run("follow a finished run", func(t *testing.T) {
		out, err := e.execute(t, "logs", failed.ShortID(), "-f")
		require.NoError(t, err)
		assert.Contains(t, out, "ValueError: cannot stabilize fail")
	})
}

func TestPresetsCommand(t *testing.T) {
	e := newEnv(t)

	t.Run("list", func(t *testing.T) {
		out, err := e.execute(t, "presets", "list")
		require.NoError(t, err)
		for _, name := range []string{"calf", "nominal", "ppo", "reinforce", "toy"} {
			assert.Contains(t, out, name)
		}
		assert.Contains(t, out, "disallow_uncommitted system")
	})

	t.Run("show", func(t *testing.T) {
		out, err := e.execute(t, "presets", "show", "ppo")
		require.NoError(t, err)
		assert.Contains(t, out, "source:      builtin:ppo.yaml")
		assert.Contains(t, out, "  initial_conditions=ic_${system}_stochastic\n")
		assert.Contains(t, out, "seeds:       1,2,3")
		assert.Contains(t, out, "variant ros:")
	})

	t.Run("show unknown", func(t *testing.T) {
		_, err := e.execute(t, "presets", "show", "nope")
		assert.ErrorIs(t, err, preset.ErrUnknownPreset)
	})
}

func TestCheckCommand(t *testing.T) {
	t.Run("not a repository", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.execute(t, "check")
		assert.ErrorIs(t, err, gitcheck.ErrNotRepository)
	})

	t.Run("dirty tree", func(t *testing.T) {
		e := newEnv(t)
		_, err := git.PlainInit(e.workdir, false)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(e.workdir, "train.py"), []byte("pass\n"), 0o644))

		out, err := e.execute(t, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "1 uncommitted paths")
		assert.Contains(t, out, "train.py")

		_, err = e.execute(t, "check", "--strict")
		assert.ErrorIs(t, err, gitcheck.ErrDirtyTree)
	})
}

func TestVersionCommand(t *testing.T) {
	e := newEnv(t)
	out, err := e.execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rglaunch "+Version)

	out, err = e.execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestConfigErrors(t *testing.T) {
	e := newEnv(t)

	t.Run("missing explicit config file", func(t *testing.T) {
		e := &env{root: e.root, workdir: e.workdir, configPath: filepath.Join(e.root, "missing.yaml")}
		_, err := e.execute(t, "presets", "list")
		assert.ErrorContains(t, err, "error reading config file")
	})

	t.Run("invalid config", func(t *testing.T) {
		path := filepath.Join(e.root, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ledger:\n  backend: mongo\n"), 0o644))
		bad := &env{root: e.root, workdir: e.workdir, configPath: path}
		_, err := bad.execute(t, "presets", "list")
		assert.ErrorContains(t, err, "unknown backend")
	})
}
