// File: cmd/rglaunch/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/rglaunch/cmd"
	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/observability"
)

// Exit codes of the launcher itself. A trainer exit code passes through unchanged.
const (
	exitFailure     = 1
	exitPanic       = 2
	exitInterrupted = 130
)

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
	panicLog    = filepath.Join(os.TempDir(), "rglaunch-panic.log")
)

func main() {
	defer handlePanic()

	// The trainer shares the terminal's process group and sees the same signals;
	// the context makes the launcher wait for it and then stop.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()

	observability.Sync()
	osExit(code)
}

func run(ctx context.Context) int {
	return exitCode(execute(ctx))
}

// exitCode maps the outcome of the command line to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := launcher.ExitCode(err); ok {
		return code
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return exitFailure
}

// handlePanic writes the stack of an unrecovered panic to a file and exits.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLog, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(exitPanic)
		return
	}
	fmt.Fprintf(os.Stderr, "rglaunch crashed: %v\nDetails logged to %s\n", r, panicLog)
	osExit(exitPanic)
}
