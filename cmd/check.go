// File: cmd/check.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rglaunch/internal/gitcheck"
)

func newCheckCmd() *cobra.Command {
	var strict bool

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Report the git state of the trainer working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}

			state, err := gitcheck.Inspect(cfg.Launcher.Workdir)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "repository: %s\n", state.Root)
			fmt.Fprintf(w, "branch:     %s\n", dash(state.Branch))
			fmt.Fprintf(w, "commit:     %s\n", dash(state.ShortCommit()))
			if !state.Dirty {
				fmt.Fprintln(w, "tree:       clean")
				return nil
			}
			fmt.Fprintf(w, "tree:       %d uncommitted paths\n", len(state.Changed))
			fmt.Fprintf(w, "  %s\n", strings.Join(state.Changed, "\n  "))
			if strict {
				return state.RequireClean()
			}
			return nil
		},
	}
	checkCmd.Flags().BoolVar(&strict, "strict", false, "fail when the tree has uncommitted changes")
	return checkCmd
}
