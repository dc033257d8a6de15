package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/gitcheck"
	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/ledger"
	"github.com/xkilldash9x/rglaunch/internal/matrix"
	"github.com/xkilldash9x/rglaunch/internal/overrides"
	"github.com/xkilldash9x/rglaunch/internal/preset"
	"github.com/xkilldash9x/rglaunch/internal/runlog"
)

// LaunchRequest names a preset and the caller's additions to it.
type LaunchRequest struct {
	Preset string
	preset.Request
	// DryRun stops after planning.
	DryRun bool
}

// Prepared is a resolved preset turned into an executable plan.
type Prepared struct {
	Resolution *preset.Resolution
	Plan       launcher.Plan
}

// LaunchResult describes a finished (or planned) launch.
type LaunchResult struct {
	Prepared
	// Record is nil for dry runs.
	Record *ledger.Record
	Result launcher.Result
	Git    *gitcheck.State
}

// Prepare resolves the preset and builds the plan without touching the disk.
func (c *Components) Prepare(req LaunchRequest) (*Prepared, error) {
	p, err := c.Catalog.Get(req.Preset)
	if err != nil {
		return nil, err
	}

	r := req.Request
	checkpoints := maps.Clone(c.Config.Checkpoints)
	if checkpoints == nil {
		checkpoints = make(map[string]string, len(r.Checkpoints))
	}
	maps.Copy(checkpoints, r.Checkpoints)
	r.Checkpoints = checkpoints

	res, err := p.Resolve(r)
	if err != nil {
		return nil, err
	}

	command := p.Command
	if len(command) == 0 {
		command = c.Config.Launcher.Command
	}
	return &Prepared{
		Resolution: res,
		Plan: launcher.Plan{
			Command:       append([]string(nil), command...),
			Flags:         res.Flags,
			Overrides:     res.Overrides,
			Workdir:       c.Config.Launcher.Workdir,
			SearchPathVar: c.Config.Launcher.SearchPathVar,
		},
	}, nil
}

// Preflight inspects the working tree. A dirty tree fails the launch only when
// the preset disallows uncommitted changes and enforcement is configured; it is
// otherwise a warning. A workdir outside any repository is not an error.
func (c *Components) Preflight(res *preset.Resolution) (*gitcheck.State, error) {
	if !c.Config.Preflight.Enabled {
		return nil, nil
	}
	state, err := gitcheck.Inspect(c.Config.Launcher.Workdir)
	if errors.Is(err, gitcheck.ErrNotRepository) {
		c.logger.Debug("Skipping git preflight.", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("git preflight: %w", err)
	}

	if !state.Dirty || !disallowsUncommitted(res) {
		return state, nil
	}
	if c.Config.Preflight.EnforceCleanTree {
		return state, state.RequireClean()
	}
	c.logger.Warn("Working tree has uncommitted changes.",
		zap.String("root", state.Root),
		zap.Int("changed", len(state.Changed)),
		zap.Strings("paths", head(state.Changed, 5)))
	return state, nil
}

// Launch runs a preset to completion. A non-zero trainer exit is returned as a
// *launcher.ExitError together with the result. Ledger and run log problems are
// logged and never change the outcome.
func (c *Components) Launch(ctx context.Context, req LaunchRequest) (*LaunchResult, error) {
	return c.launch(ctx, req, c.Launcher)
}

func (c *Components) launch(ctx context.Context, req LaunchRequest, l *launcher.Launcher) (*LaunchResult, error) {
	prepared, err := c.Prepare(req)
	if err != nil {
		return nil, err
	}
	out := &LaunchResult{Prepared: *prepared}
	if req.DryRun {
		return out, nil
	}

	out.Git, err = c.Preflight(prepared.Resolution)
	if err != nil {
		return out, err
	}

	searchPath, err := prepared.Plan.SearchPath()
	if err != nil {
		return out, err
	}
	workdir, _ := filepath.Abs(prepared.Plan.Workdir)

	rec := ledger.NewRecord(prepared.Resolution.Preset.Name)
	rec.Variant = prepared.Resolution.Variant
	rec.Params = prepared.Resolution.ParamMap()
	rec.Argv = prepared.Plan.Argv()
	rec.SearchPath = searchPath
	rec.Workdir = workdir
	if out.Git != nil {
		rec.GitCommit = out.Git.Commit
		rec.GitDirty = out.Git.Dirty
	}
	out.Record = rec
	logger := c.logger.With(zap.String("run_id", rec.ID), zap.String("preset", rec.Preset))

	var tee io.Writer
	logFile, err := runlog.Create(c.Config.Launcher.LogDir, rec.ID)
	if err != nil {
		logger.Warn("Run log unavailable; output will not be kept.", zap.Error(err))
	} else {
		rec.LogPath = logFile.Path()
		tee = logFile
	}

	// The ledger must see the outcome even when ctx was cancelled by an interrupt.
	ledgerCtx := context.WithoutCancel(ctx)
	if err := c.Ledger.Begin(ledgerCtx, rec); err != nil {
		logger.Warn("Failed to record run start.", zap.Error(err))
	}

	logger.Info("Launching trainer.", zap.Strings("argv", rec.Argv), zap.String("search_path", searchPath))
	result, runErr := l.Run(ctx, prepared.Plan, tee)
	out.Result = result

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			logger.Warn("Failed to close run log.", zap.Error(err))
		}
		rec.LastError = logFile.LastError()
	}

	exitCode := result.ExitCode
	if _, ok := launcher.ExitCode(runErr); runErr != nil && !ok {
		// The trainer never ran.
		exitCode = -1
		rec.LastError = runErr.Error()
	}
	rec.Complete(exitCode, result.Interrupted, time.Now())
	if err := c.Ledger.Finish(ledgerCtx, rec); err != nil {
		logger.Warn("Failed to record run outcome.", zap.Error(err))
	}

	fields := []zap.Field{zap.String("status", string(rec.Status)), zap.Int("exit_code", exitCode), zap.Duration("duration", result.Duration)}
	if rec.LastError != "" {
		fields = append(fields, zap.String("last_error", rec.LastError))
	}
	if rec.Status == ledger.StatusSuccessful {
		logger.Info("Trainer finished.", fields...)
	} else {
		logger.Warn("Trainer finished.", fields...)
	}
	return out, runErr
}

// RunMatrix launches every entry through the matrix runner. Trainer output goes
// only to the per-run logs since runs may overlap.
func (c *Components) RunMatrix(ctx context.Context, entries []matrix.Entry, onOutcome func(matrix.Outcome)) ([]matrix.Outcome, error) {
	quiet := *c.Launcher
	quiet.Stdin = nil
	quiet.Stdout = io.Discard
	quiet.Stderr = io.Discard

	run := func(ctx context.Context, e matrix.Entry) matrix.Outcome {
		req := LaunchRequest{
			Preset: e.Preset,
			Request: preset.Request{
				Args:    e.Args,
				Variant: e.Variant,
				Set:     e.Set,
				Flags:   launcher.Flags{SingleThread: e.SingleThread, Seeds: e.Seeds},
			},
		}
		res, err := c.launch(ctx, req, &quiet)

		var o matrix.Outcome
		if res != nil {
			o.ExitCode = res.Result.ExitCode
			o.Duration = res.Result.Duration
			if res.Record != nil {
				o.RunID = res.Record.ID
				o.LastError = res.Record.LastError
			}
		}
		if _, ok := launcher.ExitCode(err); err != nil && !ok {
			o.Err = err
		}
		return o
	}

	runner := matrix.NewRunner(c.Config.Matrix, run, c.logger)
	runner.OnOutcome = onOutcome
	return runner.Execute(ctx, entries)
}

// disallowsUncommitted reads the flag from the overrides the trainer receives,
// so --set and smoke additions are honoured. A deleted or absent override falls
// back to the preset parameter.
func disallowsUncommitted(res *preset.Resolution) bool {
	if res.Overrides != nil {
		if o, ok := res.Overrides.Get("disallow_uncommitted"); ok && o.Kind != overrides.Delete {
			return preset.ResolveBool(o.Value) == "true"
		}
	}
	v, ok := res.ParamMap()["disallow_uncommitted"]
	return ok && preset.ResolveBool(v) == "true"
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
