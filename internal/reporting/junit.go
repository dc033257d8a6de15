package reporting

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/matrix"
	"github.com/xkilldash9x/rglaunch/internal/observability"
)

// JUnitReporter collects outcomes and writes a JUnit XML document on Close, one
// testcase per matrix entry. It is safe for concurrent use.
type JUnitReporter struct {
	writer   io.WriteCloser
	suite    string
	started  time.Time
	logger   *zap.Logger
	mu       sync.Mutex
	outcomes []matrix.Outcome
}

// NewJUnitReporter creates a reporter that writes a single testsuite named suite.
func NewJUnitReporter(writer io.WriteCloser, suite string) *JUnitReporter {
	return &JUnitReporter{
		writer:  writer,
		suite:   suite,
		started: time.Now(),
		logger:  observability.GetLogger().Named("junit_reporter"),
	}
}

func (r *JUnitReporter) Write(o matrix.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

// Close renders the document and closes the writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.document()
	doc.Indent(2)
	_, writeErr := doc.WriteTo(r.writer)
	closeErr := r.writer.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write JUnit report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Debug("Wrote JUnit report.", zap.Int("testcases", len(r.outcomes)))
	return nil
}

func (r *JUnitReporter) document() *etree.Document {
	ordered := make([]matrix.Outcome, len(r.outcomes))
	copy(ordered, r.outcomes)
	sortByIndex(ordered)

	var failures, errs, skipped int
	var total time.Duration
	for _, o := range ordered {
		total += o.Duration
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			errs++
		case !o.Passed():
			failures++
		}
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", r.suite)
	suite.CreateAttr("tests", strconv.Itoa(len(ordered)))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("errors", strconv.Itoa(errs))
	suite.CreateAttr("skipped", strconv.Itoa(skipped))
	suite.CreateAttr("time", seconds(total))
	suite.CreateAttr("timestamp", r.started.UTC().Format(time.RFC3339))

	for _, o := range ordered {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", o.Entry.Label())
		tc.CreateAttr("classname", r.suite+"."+o.Entry.Preset)
		tc.CreateAttr("time", seconds(o.Duration))

		switch {
		case o.Skipped:
			tc.CreateElement("skipped").CreateAttr("message", failureMessage(o))
		case o.Err != nil:
			e := tc.CreateElement("error")
			e.CreateAttr("message", failureMessage(o))
			e.CreateAttr("type", "launch")
		case !o.Passed():
			f := tc.CreateElement("failure")
			f.CreateAttr("message", failureMessage(o))
			f.CreateAttr("type", "exit")
			if o.LastError != "" {
				f.SetText(o.LastError)
			}
		}
		if o.RunID != "" {
			tc.CreateElement("system-out").SetText("run " + o.RunID)
		}
	}
	return doc
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
