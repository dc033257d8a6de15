package runlog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const traceback = `Episode 1 finished
Traceback (most recent call last):
  File "run.py", line 12, in <module>
    launch()
  File "regelum/scenario.py", line 301, in run
    raise ValueError("N_episodes must be positive")
ValueError: N_episodes must be positive
`

func TestScanner(t *testing.T) {
	t.Run("captures the exception line", func(t *testing.T) {
		var s Scanner
		_, _ = s.Write([]byte(traceback))
		assert.Equal(t, "ValueError: N_episodes must be positive", s.LastError())
	})

	t.Run("handles writes split mid-line", func(t *testing.T) {
		var s Scanner
		for _, chunk := range []string{"Trace", "back (most recent call last):\n  File \"x\"", "\nKeyError: 'sys", "tem'\n"} {
			_, _ = s.Write([]byte(chunk))
		}
		assert.Equal(t, "KeyError: 'system'", s.LastError())
	})

	t.Run("keeps the last of chained tracebacks", func(t *testing.T) {
		var s Scanner
		_, _ = s.Write([]byte(traceback))
		_, _ = s.Write([]byte("\nDuring handling of the above exception, another exception occurred:\n\n"))
		_, _ = s.Write([]byte("Traceback (most recent call last):\n  File \"y\"\nhydra.errors.InstantiationException: bad target"))
		s.Flush()
		assert.Equal(t, "hydra.errors.InstantiationException: bad target", s.LastError())
	})

	t.Run("ignores error words outside tracebacks", func(t *testing.T) {
		var s Scanner
		_, _ = s.Write([]byte("ValueError: not from a traceback\nloss=0.31\n"))
		assert.Empty(t, s.LastError())
	})
}

func TestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	f, err := Create(dir, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Path(dir, "run-1"), f.Path())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fmt.Fprintf(f, "worker %d\n", i)
		}(i)
	}
	wg.Wait()
	_, err = f.Write([]byte(traceback))
	require.NoError(t, err)

	assert.Equal(t, "ValueError: N_episodes must be positive", f.LastError())
	require.NoError(t, f.Close())

	content, err := os.ReadFile(Path(dir, "run-1"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "worker 3")
	assert.Contains(t, string(content), "Episode 1 finished")
}

func writeLog(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestFollow(t *testing.T) {
	t.Run("prints an existing log and stops at the end", func(t *testing.T) {
		path := writeLog(t, "line one\nline two\n")

		var out bytes.Buffer
		require.NoError(t, Follow(context.Background(), path, &out, FollowOptions{}))
		assert.Equal(t, "line one\nline two\n", out.String())
	})

	t.Run("missing file", func(t *testing.T) {
		err := Follow(context.Background(), filepath.Join(t.TempDir(), "nope.log"), &bytes.Buffer{}, FollowOptions{})
		assert.Error(t, err)
	})

	t.Run("follows until the run is done", func(t *testing.T) {
		path := writeLog(t, "start\n")
		var done atomic.Bool

		go func() {
			time.Sleep(100 * time.Millisecond)
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return
			}
			fmt.Fprintln(f, "Episode 2 finished")
			f.Close()
			done.Store(true)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var out syncBuffer
		err := Follow(ctx, path, &out, FollowOptions{
			Follow:       true,
			Done:         done.Load,
			PollInterval: 50 * time.Millisecond,
			Settle:       time.Second,
		})
		require.NoError(t, err)
		assert.NoError(t, ctx.Err(), "should stop on its own before the deadline")
		assert.Contains(t, out.String(), "start\n")
		assert.Contains(t, out.String(), "Episode 2 finished\n")
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		path := writeLog(t, "start\n")
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := Follow(ctx, path, &syncBuffer{}, FollowOptions{Follow: true})
		assert.NoError(t, err)
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
