// File: cmd/logs.go
package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/ledger"
	"github.com/xkilldash9x/rglaunch/internal/observability"
	"github.com/xkilldash9x/rglaunch/internal/runlog"
	"github.com/xkilldash9x/rglaunch/internal/service"
)

func newLogsCmd(factory service.ComponentFactory) *cobra.Command {
	var follow bool

	logsCmd := &cobra.Command{
		Use:   "logs ID",
		Short: "Print the trainer output of a run",
		Long: `Prints the captured output of a run. ID may be a unique prefix. With -f the log
is followed until the run finishes or the command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			ctx := cmd.Context()
			path, done, err := locateLog(ctx, components, args[0])
			if err != nil {
				return err
			}
			return runlog.Follow(ctx, path, cmd.OutOrStdout(), runlog.FollowOptions{
				Follow: follow,
				Done:   done,
			})
		},
	}
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing output while the run is going")
	return logsCmd
}

// locateLog finds the log of run id and a function reporting when that run has
// finished. Without a ledger entry, id must be a full run id.
func locateLog(ctx context.Context, c *service.Components, id string) (string, func() bool, error) {
	rec, err := c.Ledger.Get(ctx, id)
	if errors.Is(err, ledger.ErrRunNotFound) {
		path := runlog.Path(c.Config.Launcher.LogDir, id)
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil, nil
		}
		return "", nil, err
	}
	if err != nil {
		return "", nil, err
	}

	path := rec.LogPath
	if path == "" {
		path = runlog.Path(c.Config.Launcher.LogDir, rec.ID)
	}
	if rec.Status != ledger.StatusRunning {
		return path, func() bool { return true }, nil
	}

	logger := observability.GetLogger()
	done := func() bool {
		latest, err := c.Ledger.Get(ctx, rec.ID)
		if err != nil {
			logger.Debug("Could not refresh run status.", zap.Error(err))
			return false
		}
		return latest.Status != ledger.StatusRunning
	}
	return path, done, nil
}
