package matrix

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/rglaunch/internal/config"
)

// RunFunc executes one entry. It fills in everything but Index and Entry.
type RunFunc func(ctx context.Context, e Entry) Outcome

// Runner executes entries through a bounded pool, starting at most one entry per
// launch interval. A failing entry does not stop the others.
type Runner struct {
	concurrency int
	limiter     *rate.Limiter
	run         RunFunc
	logger      *zap.Logger

	// OnOutcome, when set, is called as each entry finishes. Calls are serialized.
	OnOutcome func(Outcome)
}

// NewRunner builds a runner from the matrix configuration.
func NewRunner(cfg config.MatrixConfig, run RunFunc, logger *zap.Logger) *Runner {
	limit := rate.Inf
	if cfg.LaunchInterval > 0 {
		limit = rate.Every(cfg.LaunchInterval)
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, 1),
		run:         run,
		logger:      logger.Named("matrix"),
	}
}

// Execute runs every entry and returns their outcomes in entry order. The error
// is non-nil only when ctx ended before all entries ran; the outcomes are still
// complete, with unstarted entries marked Skipped.
func (r *Runner) Execute(ctx context.Context, entries []Entry) ([]Outcome, error) {
	outcomes := make([]Outcome, len(entries))
	var mu sync.Mutex
	report := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[o.Index] = o
		if r.OnOutcome != nil {
			r.OnOutcome(o)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, e := range entries {
		g.Go(func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				report(Outcome{Index: i, Entry: e, Err: err, Skipped: true})
				return nil
			}

			r.logger.Info("Starting matrix run.", zap.Int("index", i+1), zap.Int("total", len(entries)), zap.String("run", e.Label()))
			start := time.Now()
			o := r.run(ctx, e)
			o.Index, o.Entry = i, e
			if o.Duration == 0 {
				o.Duration = time.Since(start)
			}

			fields := []zap.Field{zap.String("run", e.Label()), zap.Int("exit_code", o.ExitCode), zap.Duration("duration", o.Duration)}
			switch {
			case o.Err != nil:
				r.logger.Error("Matrix run could not be launched.", append(fields, zap.Error(o.Err))...)
			case o.ExitCode != 0:
				r.logger.Warn("Matrix run failed.", append(fields, zap.String("last_error", o.LastError))...)
			default:
				r.logger.Info("Matrix run passed.", fields...)
			}
			report(o)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, ctx.Err()
}
