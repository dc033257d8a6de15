package reporting

import (
	"fmt"
	"io"
	"slices"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/rglaunch/internal/matrix"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonRun struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Preset     string   `json:"preset"`
	Args       []string `json:"args,omitempty"`
	Variant    string   `json:"variant,omitempty"`
	Status     string   `json:"status"`
	RunID      string   `json:"run_id,omitempty"`
	ExitCode   int      `json:"exit_code"`
	DurationMS int64    `json:"duration_ms"`
	Message    string   `json:"message,omitempty"`
}

type jsonReport struct {
	Suite   string    `json:"suite"`
	Total   int       `json:"total"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
	Runs    []jsonRun `json:"runs"`
}

// JSONReporter writes all outcomes as one JSON document on Close.
type JSONReporter struct {
	writer   io.WriteCloser
	suite    string
	mu       sync.Mutex
	outcomes []matrix.Outcome
}

func NewJSONReporter(writer io.WriteCloser, suite string) *JSONReporter {
	return &JSONReporter{writer: writer, suite: suite}
}

func (r *JSONReporter) Write(o matrix.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := slices.Clone(r.outcomes)
	sortByIndex(ordered)
	s := matrix.Summarize(ordered)

	report := jsonReport{
		Suite:   r.suite,
		Total:   s.Total,
		Passed:  s.Passed,
		Failed:  s.Failed,
		Skipped: s.Skipped,
		Runs:    make([]jsonRun, 0, len(ordered)),
	}
	for _, o := range ordered {
		run := jsonRun{
			Index:      o.Index,
			Name:       o.Entry.Label(),
			Preset:     o.Entry.Preset,
			Args:       o.Entry.Args,
			Variant:    o.Entry.Variant,
			Status:     status(o),
			RunID:      o.RunID,
			ExitCode:   o.ExitCode,
			DurationMS: o.Duration.Milliseconds(),
		}
		if !o.Passed() {
			run.Message = failureMessage(o)
		}
		report.Runs = append(report.Runs, run)
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(report)
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode JSON report: %w", encodeErr)
	}
	return closeErr
}
