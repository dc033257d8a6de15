// Package launcher starts the external trainer and reports how it ended.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// execCommandContext is swapped out in tests.
var execCommandContext = exec.CommandContext

// ErrEmptyCommand is returned for a plan without an executable.
var ErrEmptyCommand = errors.New("plan has no command")

// ExitError carries a non-zero trainer exit code up to the process exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("trainer exited with code %d", e.Code)
}

// ExitCode extracts the trainer exit code from err, if it carries one.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// Result describes a finished trainer process.
type Result struct {
	ExitCode    int
	Duration    time.Duration
	Interrupted bool
}

// Launcher runs plans with the terminal attached.
type Launcher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// GracePeriod is how long the trainer gets to exit after an interrupt before it is killed.
	GracePeriod time.Duration

	logger *zap.Logger
}

// New returns a launcher bound to the process's standard streams.
func New(logger *zap.Logger, grace time.Duration) *Launcher {
	return &Launcher{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		GracePeriod: grace,
		logger:      logger.Named("launcher"),
	}
}

// Run starts the trainer described by plan and waits for it. Output is copied to
// tee as well as the launcher's own streams when tee is not nil.
//
// Cancelling ctx sends the trainer an interrupt; it is killed if it has not exited
// within the grace period. A non-zero exit is reported as an *ExitError alongside
// a populated Result.
func (l *Launcher) Run(ctx context.Context, plan Plan, tee io.Writer) (Result, error) {
	argv := plan.Argv()
	if len(plan.Command) == 0 || argv[0] == "" {
		return Result{}, ErrEmptyCommand
	}

	cmd := execCommandContext(ctx, argv[0], argv[1:]...)
	base := cmd.Env
	if base == nil {
		base = os.Environ()
	}
	env, err := plan.Environ(base)
	if err != nil {
		return Result{}, err
	}
	cmd.Env = env
	cmd.Dir = plan.Workdir
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if tee != nil {
		cmd.Stdout = io.MultiWriter(l.Stdout, tee)
		cmd.Stderr = io.MultiWriter(l.Stderr, tee)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = l.GracePeriod

	l.logger.Debug("Starting trainer.",
		zap.Strings("argv", argv),
		zap.String("workdir", plan.Workdir),
		zap.String(plan.SearchPathVar, lastValue(env, plan.SearchPathVar)))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("starting trainer %q: %w", argv[0], err)
	}
	waitErr := cmd.Wait()

	res := Result{
		Duration:    time.Since(start),
		Interrupted: ctx.Err() != nil,
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return res, nil
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitStatus(exitErr)
	case cmd.ProcessState != nil:
		// The trainer exited but Wait reports the cancellation or the pipes it
		// left open, not the exit itself.
		res.ExitCode = stateStatus(cmd.ProcessState)
		if res.ExitCode == 0 {
			l.logger.Debug("Trainer exited.",
				zap.Bool("interrupted", res.Interrupted),
				zap.Duration("duration", res.Duration),
				zap.NamedError("wait", waitErr))
			return res, nil
		}
	default:
		return res, fmt.Errorf("waiting for trainer: %w", waitErr)
	}

	l.logger.Debug("Trainer exited.",
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("interrupted", res.Interrupted),
		zap.Duration("duration", res.Duration))
	return res, &ExitError{Code: res.ExitCode}
}

// exitStatus maps death by signal to the shell convention of 128+signal.
func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := err.ExitCode(); code > 0 {
		return code
	}
	return 1
}

func stateStatus(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	return 1
}

func lastValue(env []string, name string) string {
	prefix := name + "="
	for i := len(env) - 1; i >= 0; i-- {
		if len(env[i]) >= len(prefix) && env[i][:len(prefix)] == prefix {
			return env[i][len(prefix):]
		}
	}
	return ""
}
