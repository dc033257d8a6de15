package launcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xkilldash9x/rglaunch/internal/overrides"
)

// Plan is everything needed to start one trainer process.
type Plan struct {
	Command       []string
	Flags         Flags
	Overrides     *overrides.Set
	Workdir       string
	SearchPathVar string
}

// Argv is the full argument vector: command prefix, flag tokens, then overrides.
func (p Plan) Argv() []string {
	argv := append([]string(nil), p.Command...)
	argv = append(argv, p.Flags.Tokens()...)
	return append(argv, p.Overrides.Tokens()...)
}

// SearchPath is the parent directory of the working directory, which is where
// the trainer looks for sibling packages.
func (p Plan) SearchPath() (string, error) {
	wd := p.Workdir
	if wd == "" {
		wd = "."
	}
	abs, err := filepath.Abs(wd)
	if err != nil {
		return "", fmt.Errorf("resolving workdir %q: %w", wd, err)
	}
	return filepath.Dir(abs), nil
}

// Environ returns base with the search path variable set. Any existing value
// of the variable is replaced, not extended.
func (p Plan) Environ(base []string) ([]string, error) {
	sp, err := p.SearchPath()
	if err != nil {
		return nil, err
	}
	if p.SearchPathVar == "" {
		return append([]string(nil), base...), nil
	}

	prefix := p.SearchPathVar + "="
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	return append(env, prefix+sp), nil
}
