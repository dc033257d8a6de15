// File: cmd/plan.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rglaunch/internal/service"
)

type planOutput struct {
	Preset    string            `json:"preset"`
	Variant   string            `json:"variant,omitempty"`
	Params    map[string]string `json:"params"`
	Argv      []string          `json:"argv"`
	Workdir   string            `json:"workdir"`
	Env       map[string]string `json:"env"`
	Overrides []string          `json:"overrides"`
}

func newPlanCmd(factory service.ComponentFactory) *cobra.Command {
	var opts launchOptions
	var asJSON bool

	planCmd := &cobra.Command{
		Use:   "plan PRESET [args...]",
		Short: "Show what run would execute, without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}

			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			prepared, err := components.Prepare(req)
			if err != nil {
				return err
			}
			if !asJSON {
				return printPlan(cmd.OutOrStdout(), prepared)
			}

			searchPath, err := prepared.Plan.SearchPath()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), planOutput{
				Preset:    prepared.Resolution.Preset.Name,
				Variant:   prepared.Resolution.Variant,
				Params:    prepared.Resolution.ParamMap(),
				Argv:      prepared.Plan.Argv(),
				Workdir:   prepared.Plan.Workdir,
				Env:       map[string]string{prepared.Plan.SearchPathVar: searchPath},
				Overrides: prepared.Plan.Overrides.Tokens(),
			})
		},
	}
	opts.register(planCmd.Flags())
	planCmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return planCmd
}
