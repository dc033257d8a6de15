package runlog

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	tracebackHeader = regexp.MustCompile(`^Traceback \(most recent call last\):`)
	// Exception lines look like "ValueError: ..." or "torch.cuda.OutOfMemoryError: ...".
	exceptionLine = regexp.MustCompile(`^[A-Za-z_][\w.]*(Error|Exception|Interrupt|Exit)\b`)
)

// Scanner watches a stream of trainer output for Python tracebacks and keeps the
// exception line of the most recent one. It is not safe for concurrent use.
type Scanner struct {
	partial   []byte
	inTrace   bool
	lastError string
}

func (s *Scanner) Write(p []byte) (int, error) {
	data := append(s.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.line(strings.TrimRight(string(data[:i]), "\r"))
		data = data[i+1:]
	}
	s.partial = append(s.partial[:0], data...)
	return len(p), nil
}

// Flush processes a trailing line that was not terminated by a newline.
func (s *Scanner) Flush() {
	if len(s.partial) > 0 {
		s.line(strings.TrimRight(string(s.partial), "\r"))
		s.partial = s.partial[:0]
	}
}

// LastError returns the exception line of the last traceback seen.
func (s *Scanner) LastError() string {
	return s.lastError
}

func (s *Scanner) line(text string) {
	switch {
	case tracebackHeader.MatchString(text):
		s.inTrace = true
	case !s.inTrace:
	case text == "" || text[0] == ' ' || text[0] == '\t':
		// Frame lines are indented.
	case exceptionLine.MatchString(text):
		s.lastError = text
		s.inTrace = false
	default:
		// Chained tracebacks print a sentence between traces.
		s.inTrace = false
	}
}
