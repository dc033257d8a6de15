// File: cmd/run.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/preset"
	"github.com/xkilldash9x/rglaunch/internal/service"
)

// launchOptions are the flags shared by run and plan.
type launchOptions struct {
	ros          bool
	variant      string
	set          []string
	seeds        []int
	checkpoints  map[string]string
	jobs         int
	singleThread bool
	interactive  bool
	experiment   string
	tags         map[string]string
}

func (o *launchOptions) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&o.ros, "ros", "r", false, "use the ROS variant of the preset")
	fs.StringVar(&o.variant, "variant", "", "use the named variant of the preset")
	fs.StringArrayVar(&o.set, "set", nil, "extra override, key=value (repeatable, applied last)")
	fs.IntSliceVar(&o.seeds, "seeds", nil, "seeds to sweep over, e.g. 1,2,3")
	fs.StringToStringVar(&o.checkpoints, "checkpoint", nil, "checkpoint path, name=path (repeatable)")
	fs.IntVar(&o.jobs, "jobs", 0, "number of parallel trainer jobs")
	fs.BoolVar(&o.singleThread, "single-thread", false, "ask the trainer to run in a single thread")
	fs.BoolVar(&o.interactive, "interactive", false, "ask the trainer to run interactively")
	fs.StringVar(&o.experiment, "experiment", "", "experiment name recorded by the trainer")
	fs.StringToStringVar(&o.tags, "tag", nil, "experiment tag, key=value (repeatable)")
}

// request turns positional arguments and flags into a launch request.
func (o *launchOptions) request(args []string) (service.LaunchRequest, error) {
	variant := o.variant
	if o.ros {
		if variant != "" && variant != preset.VariantROS {
			return service.LaunchRequest{}, fmt.Errorf("--ros conflicts with --variant=%s", variant)
		}
		variant = preset.VariantROS
	}
	return service.LaunchRequest{
		Preset: args[0],
		Request: preset.Request{
			Args:        args[1:],
			Variant:     variant,
			Set:         o.set,
			Checkpoints: o.checkpoints,
			Flags: launcher.Flags{
				Jobs:         o.jobs,
				Interactive:  o.interactive,
				SingleThread: o.singleThread,
				Seeds:        o.seeds,
				Experiment:   o.experiment,
				Tags:         o.tags,
			},
		},
	}, nil
}

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	var opts launchOptions
	var dryRun bool

	runCmd := &cobra.Command{
		Use:   "run PRESET [disallow_uncommitted] [system]",
		Short: "Launch the trainer for a preset",
		Long: `Resolves PRESET with the given positional parameters, starts the trainer and
waits for it. The trainer's exit code becomes rglaunch's exit code.

A disallow_uncommitted of anything other than the literal "false" counts as true.`,
		Example: `  rglaunch run ppo false 3wrobot_kin
  rglaunch run calf true inv_pendulum -r
  rglaunch run ppo false 3wrobot_kin --set scenario.N_episodes=4 --seeds 1,2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}
			req.DryRun = dryRun

			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			res, err := components.Launch(cmd.Context(), req)
			if err != nil {
				return err
			}
			if dryRun {
				return printPlan(cmd.OutOrStdout(), &res.Prepared)
			}
			return nil
		},
	}
	opts.register(runCmd.Flags())
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan instead of launching")
	return runCmd
}

// printPlan writes the command line, environment and override list of a plan.
func printPlan(w io.Writer, p *service.Prepared) error {
	searchPath, err := p.Plan.SearchPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "preset:  %s", p.Resolution.Preset.Name)
	if p.Resolution.Variant != "" {
		fmt.Fprintf(w, " (%s)", p.Resolution.Variant)
	}
	fmt.Fprintln(w)
	for _, b := range p.Resolution.Params {
		note := ""
		if b.Defaulted {
			note = " (default)"
		}
		fmt.Fprintf(w, "param:   %s=%s%s\n", b.Name, b.Value, note)
	}
	fmt.Fprintf(w, "workdir: %s\n", p.Plan.Workdir)
	fmt.Fprintf(w, "env:     %s=%s\n", p.Plan.SearchPathVar, searchPath)
	fmt.Fprintln(w, "overrides:")
	for _, token := range p.Plan.Overrides.Tokens() {
		fmt.Fprintf(w, "  %s\n", token)
	}
	fmt.Fprintf(w, "command: %s\n", strings.Join(p.Plan.Argv(), " "))
	return nil
}
