// Package matrix runs a list of preset invocations with bounded concurrency.
package matrix

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SmokeOverrides shrink a run to a few seconds of simulated time. They are
// appended to every entry of a smoke matrix.
var SmokeOverrides = []string{
	"simulator.time_final=1",
	"controller.sampling_time=0.5",
	"scenario.N_episodes=2",
	"scenario.N_iterations=1",
	"disallow_uncommitted=false",
}

// ErrEmptyMatrix is returned for a matrix file without runs.
var ErrEmptyMatrix = errors.New("matrix has no runs")

// Entry is one preset invocation of a matrix.
type Entry struct {
	Name         string   `yaml:"name"`
	Preset       string   `yaml:"preset"`
	Args         []string `yaml:"args"`
	Variant      string   `yaml:"variant"`
	Set          []string `yaml:"set"`
	Seeds        []int    `yaml:"seeds"`
	SingleThread bool     `yaml:"single_thread"`
}

// Label names the entry in reports: its name, or the preset and arguments.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	parts := append([]string{e.Preset}, e.Args...)
	if e.Variant != "" {
		parts = append(parts, e.Variant)
	}
	return strings.Join(parts, "_")
}

// File is a matrix definition.
type File struct {
	// Smoke appends SmokeOverrides and forces single-threaded runs.
	Smoke bool    `yaml:"smoke"`
	Runs  []Entry `yaml:"runs"`
}

// Parse decodes a matrix definition. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding matrix: %w", err)
	}
	if len(f.Runs) == 0 {
		return nil, ErrEmptyMatrix
	}
	for i, e := range f.Runs {
		if e.Preset == "" {
			return nil, fmt.Errorf("run %d: preset is required", i+1)
		}
	}
	return &f, nil
}

// Load reads and parses the matrix file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading matrix: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Entries returns the runs to execute. With smoke set, or when the file asks
// for it, every entry gets the smoke overrides and runs single-threaded.
func (f *File) Entries(smoke bool) []Entry {
	smoke = smoke || f.Smoke
	out := make([]Entry, 0, len(f.Runs))
	for _, e := range f.Runs {
		e.Args = append([]string(nil), e.Args...)
		e.Set = append([]string(nil), e.Set...)
		if smoke {
			e.Set = append(e.Set, SmokeOverrides...)
			e.SingleThread = true
		}
		out = append(out, e)
	}
	return out
}

// Outcome is the result of one entry.
type Outcome struct {
	Index    int
	Entry    Entry
	RunID    string
	ExitCode int
	Duration time.Duration
	// LastError is the trainer's final exception line, when one was seen.
	LastError string
	// Err is a launcher-side failure: the trainer never ran or could not be waited for.
	Err error
	// Skipped is set for entries that never started because the matrix was cancelled.
	Skipped bool
}

// Passed reports whether the trainer ran and exited with code 0.
func (o Outcome) Passed() bool {
	return o.Err == nil && !o.Skipped && o.ExitCode == 0
}

// Summary counts outcomes by result.
type Summary struct {
	Total, Passed, Failed, Skipped int
	Duration                       time.Duration
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			s.Skipped++
		case o.Passed():
			s.Passed++
		default:
			s.Failed++
		}
		s.Duration += o.Duration
	}
	return s
}
