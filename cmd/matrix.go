// File: cmd/matrix.go
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/matrix"
	"github.com/xkilldash9x/rglaunch/internal/observability"
	"github.com/xkilldash9x/rglaunch/internal/reporting"
	"github.com/xkilldash9x/rglaunch/internal/service"
)

// ErrMatrixFailed is returned when at least one matrix run did not pass.
var ErrMatrixFailed = errors.New("matrix runs failed")

func newMatrixCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		smoke       bool
		junitPath   string
		jsonPath    string
		concurrency int
	)

	matrixCmd := &cobra.Command{
		Use:   "matrix FILE",
		Short: "Run every entry of a matrix file and report the results",
		Long: `Runs the presets listed in FILE with bounded concurrency. A failing run does
not stop the others. With --smoke every run is shortened to a few simulated
seconds and forced single-threaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := matrix.Load(args[0])
			if err != nil {
				return err
			}

			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()
			if concurrency > 0 {
				components.Config.Matrix.Concurrency = concurrency
			}

			suite := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			text := reporting.NewTextReporter(nopCloser{cmd.OutOrStdout()})
			reporters := reporting.Multi{text}
			for format, path := range map[string]string{reporting.FormatJUnit: junitPath, reporting.FormatJSON: jsonPath} {
				if path == "" {
					continue
				}
				r, err := reporting.New(format, path, suite)
				if err != nil {
					return err
				}
				reporters = append(reporters, r)
			}

			logger := observability.GetLogger()
			outcomes, runErr := components.RunMatrix(cmd.Context(), file.Entries(smoke), func(o matrix.Outcome) {
				if err := reporters.Write(o); err != nil {
					logger.Warn("Failed to report matrix outcome.", zap.Error(err))
				}
			})
			if err := reporters.Close(); err != nil {
				return fmt.Errorf("writing matrix report: %w", err)
			}
			if runErr != nil {
				return runErr
			}

			s := matrix.Summarize(outcomes)
			if s.Failed+s.Skipped > 0 {
				return fmt.Errorf("%w: %d of %d", ErrMatrixFailed, s.Failed+s.Skipped, s.Total)
			}
			return nil
		},
	}

	matrixCmd.Flags().BoolVar(&smoke, "smoke", false, "shorten every run to a smoke test")
	matrixCmd.Flags().StringVar(&junitPath, "junit", "", "write a JUnit XML report to this file")
	matrixCmd.Flags().StringVar(&jsonPath, "json", "", "write a JSON report to this file")
	matrixCmd.Flags().IntVar(&concurrency, "concurrency", 0, "runs to execute at once (default from config)")
	return matrixCmd
}
