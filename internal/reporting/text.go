package reporting

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/xkilldash9x/rglaunch/internal/matrix"
)

// TextReporter prints a line per outcome as it arrives and a summary table on Close.
type TextReporter struct {
	writer   io.WriteCloser
	mu       sync.Mutex
	outcomes []matrix.Outcome
}

func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

func (r *TextReporter) Write(o matrix.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)

	line := fmt.Sprintf("%s %s (%s)", status(o), o.Entry.Label(), o.Duration.Round(time.Millisecond))
	if !o.Passed() {
		line += ": " + failureMessage(o)
	}
	_, err := fmt.Fprintln(r.writer, line)
	return err
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := slices.Clone(r.outcomes)
	sortByIndex(ordered)

	tw := tabwriter.NewWriter(r.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "#\tRUN\tRESULT\tEXIT\tDURATION\tRUN ID")
	for _, o := range ordered {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", o.Index+1, o.Entry.Label(), status(o), o.ExitCode, o.Duration.Round(time.Second), shortID(o.RunID))
	}
	s := matrix.Summarize(ordered)
	fmt.Fprintf(tw, "\n%d runs: %d passed, %d failed, %d skipped\n", s.Total, s.Passed, s.Failed, s.Skipped)

	flushErr := tw.Flush()
	closeErr := r.writer.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func sortByIndex(outcomes []matrix.Outcome) {
	slices.SortStableFunc(outcomes, func(a, b matrix.Outcome) int { return a.Index - b.Index })
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
