// File: cmd/runs.go
package cmd

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rglaunch/internal/ledger"
	"github.com/xkilldash9x/rglaunch/internal/service"
)

func newRunsCmd(factory service.ComponentFactory) *cobra.Command {
	var asJSON bool
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the history of launched runs",
	}
	runsCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print records as JSON")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			records, err := components.Ledger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPRESET\tPARAMS\tSTATUS\tEXIT\tSTARTED\tDURATION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ShortID(), presetLabel(r), dash(paramList(r)), r.Status, r.ExitCode,
					r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Second))
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show, 0 for all")

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run; ID may be a unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			r, err := components.Ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id:          %s\n", r.ID)
			fmt.Fprintf(w, "preset:      %s\n", presetLabel(r))
			fmt.Fprintf(w, "params:      %s\n", dash(paramList(r)))
			fmt.Fprintf(w, "status:      %s\n", r.Status)
			fmt.Fprintf(w, "exit code:   %d\n", r.ExitCode)
			if r.LastError != "" {
				fmt.Fprintf(w, "last error:  %s\n", r.LastError)
			}
			fmt.Fprintf(w, "started:     %s\n", r.StartedAt.Local().Format(time.RFC3339))
			if r.FinishedAt != nil {
				fmt.Fprintf(w, "finished:    %s (%s)\n", r.FinishedAt.Local().Format(time.RFC3339), r.Duration().Round(time.Millisecond))
			}
			fmt.Fprintf(w, "host:        %s\n", r.Hostname)
			fmt.Fprintf(w, "workdir:     %s\n", r.Workdir)
			fmt.Fprintf(w, "search path: %s\n", r.SearchPath)
			if r.GitCommit != "" {
				dirty := ""
				if r.GitDirty {
					dirty = " (dirty)"
				}
				fmt.Fprintf(w, "commit:      %s%s\n", r.GitCommit, dirty)
			}
			if r.LogPath != "" {
				fmt.Fprintf(w, "log:         %s\n", r.LogPath)
			}
			fmt.Fprintf(w, "command:     %s\n", strings.Join(r.Argv, " "))
			return nil
		},
	}

	runsCmd.AddCommand(listCmd, showCmd)
	return runsCmd
}

func presetLabel(r *ledger.Record) string {
	if r.Variant == "" {
		return r.Preset
	}
	return r.Preset + " (" + r.Variant + ")"
}

// paramList renders the parameters in a stable order.
func paramList(r *ledger.Record) string {
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+r.Params[k])
	}
	return strings.Join(parts, " ")
}
