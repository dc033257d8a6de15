// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/rglaunch/internal/service"
)

const toyPreset = `name: toy
description: Minimal preset for command tests.
params:
  - name: disallow_uncommitted
    kind: bool
    default: true
  - name: system
    kind: string
    default: ""
overrides:
  disallow_uncommitted: ${disallow_uncommitted}
  system: ${system}
  initial_conditions: ic_${system}_stochastic
variants:
  ros:
    overrides:
      simulator: ros
`

const helperTraceback = "Traceback (most recent call last):\n  File \"run.py\", line 9, in <module>\nValueError: cannot stabilize fail\n"

// TestHelperProcess plays the trainer for the command tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}
	fmt.Fprintf(os.Stdout, "argv %s\n", strings.Join(args, " "))
	fmt.Fprintf(os.Stdout, "PYTHONPATH=%s\n", os.Getenv("PYTHONPATH"))
	for _, a := range args {
		if a == "system=fail" {
			fmt.Fprint(os.Stderr, helperTraceback)
			os.Exit(3)
		}
	}
	os.Exit(0)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// env is an isolated launcher installation: config file, presets, trainer dir.
type env struct {
	root       string
	workdir    string
	configPath string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	root := t.TempDir()
	e := &env{
		root:       root,
		workdir:    filepath.Join(root, "trainer"),
		configPath: filepath.Join(root, "rglaunch.yaml"),
	}
	presets := filepath.Join(root, "presets")
	require.NoError(t, os.MkdirAll(e.workdir, 0o755))
	require.NoError(t, os.MkdirAll(presets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(presets, "toy.yaml"), []byte(toyPreset), 0o644))

	cfg := map[string]any{
		"logger": map[string]any{"level": "error"},
		"launcher": map[string]any{
			"command":      []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
			"workdir":      e.workdir,
			"presets_dir":  presets,
			"log_dir":      filepath.Join(root, "logs"),
			"grace_period": "1s",
		},
		"ledger":    map[string]any{"backend": "file", "dir": filepath.Join(root, "state")},
		"preflight": map[string]any{"enabled": false},
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.configPath, data, 0o644))
	return e
}

// execute runs the command line against the environment and returns everything
// written to stdout and stderr.
func (e *env) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(service.NewComponentFactory())
	var out lockedBuffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
