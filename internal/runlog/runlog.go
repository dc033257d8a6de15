// Package runlog stores trainer output per run and reads it back.
package runlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hpcloud/tail"
)

// Path is the log file for run id inside dir.
func Path(dir, id string) string {
	return filepath.Join(dir, id+".log")
}

// File is an open run log. Writes are safe for concurrent use, so the same File
// can receive both output streams of the trainer.
type File struct {
	mu      sync.Mutex
	f       *os.File
	scanner *Scanner
}

// Create opens a fresh log for run id, creating dir as needed.
func Create(dir, id string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(Path(dir, id), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	return &File{f: f, scanner: &Scanner{}}, nil
}

func (l *File) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.scanner.Write(p)
	return l.f.Write(p)
}

// Path is the location of the log on disk.
func (l *File) Path() string { return l.f.Name() }

// LastError is the final line of the last Python traceback written, if any.
func (l *File) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scanner.LastError()
}

func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scanner.Flush()
	return l.f.Close()
}

// FollowOptions tune Follow.
type FollowOptions struct {
	// Follow keeps reading as the file grows. Without it Follow stops at end of file.
	Follow bool
	// Done reports that the writer has finished. Once it returns true, Follow
	// returns after the file has been quiet for Settle.
	Done func() bool
	// PollInterval is how often Done is consulted.
	PollInterval time.Duration
	Settle       time.Duration
}

// Follow copies the log at path to w line by line until ctx is cancelled, the end
// of the file is reached (without opts.Follow) or opts.Done reports completion.
func Follow(ctx context.Context, path string, w io.Writer, opts FollowOptions) error {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Settle <= 0 {
		opts.Settle = 300 * time.Millisecond
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    opts.Follow,
		ReOpen:    false,
		MustExist: true,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var settle <-chan time.Time
	var settleTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return fmt.Errorf("reading run log: %w", line.Err)
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				return err
			}
			if settleTimer != nil {
				settleTimer.Reset(opts.Settle)
			}

		case <-ticker.C:
			if settleTimer == nil && opts.Done != nil && opts.Done() {
				settleTimer = time.NewTimer(opts.Settle)
				settle = settleTimer.C
			}

		case <-settle:
			return nil
		}
	}
}
