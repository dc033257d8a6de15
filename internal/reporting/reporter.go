// Package reporting writes matrix outcomes in machine and human readable formats.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/rglaunch/internal/matrix"
)

// Reporter receives matrix outcomes as runs finish.
type Reporter interface {
	// Write records a single outcome.
	Write(o matrix.Outcome) error
	// Close finalizes the report and closes the underlying output.
	Close() error
}

// Formats accepted by New.
const (
	FormatText  = "text"
	FormatJUnit = "junit"
	FormatJSON  = "json"
)

type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to standard output.
func New(format, outputPath, suite string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case FormatText:
		return NewTextReporter(writer), nil
	case FormatJUnit:
		return NewJUnitReporter(writer, suite), nil
	case FormatJSON:
		return NewJSONReporter(writer, suite), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Multi fans outcomes out to several reporters.
type Multi []Reporter

func (m Multi) Write(o matrix.Outcome) error {
	var first error
	for _, r := range m {
		if err := r.Write(o); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// status is the one-word result of an outcome.
func status(o matrix.Outcome) string {
	switch {
	case o.Skipped:
		return "SKIP"
	case o.Passed():
		return "PASS"
	default:
		return "FAIL"
	}
}

// failureMessage describes why an outcome did not pass.
func failureMessage(o matrix.Outcome) string {
	switch {
	case o.Err != nil && o.Skipped:
		return "not started: " + o.Err.Error()
	case o.Err != nil:
		return o.Err.Error()
	case o.LastError != "":
		return fmt.Sprintf("exit code %d: %s", o.ExitCode, o.LastError)
	default:
		return fmt.Sprintf("exit code %d", o.ExitCode)
	}
}
