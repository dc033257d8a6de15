// File: cmd/presets.go
package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rglaunch/internal/service"
)

func newPresetsCmd(factory service.ComponentFactory) *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "List and inspect launch presets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the known presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPARAMS\tVARIANTS\tDESCRIPTION")
			for _, p := range components.Catalog.List() {
				params := make([]string, 0, len(p.Params))
				for _, param := range p.Params {
					params = append(params, param.Name)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, dash(strings.Join(params, " ")), dash(strings.Join(p.VariantNames(), ",")), p.Description)
			}
			return tw.Flush()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show a preset's parameters, overrides and variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := createComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			p, err := components.Catalog.Get(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "name:        %s\n", p.Name)
			fmt.Fprintf(w, "source:      %s\n", p.Source)
			if p.Description != "" {
				fmt.Fprintf(w, "description: %s\n", p.Description)
			}
			if len(p.Command) > 0 {
				fmt.Fprintf(w, "command:     %s\n", strings.Join(p.Command, " "))
			}
			fmt.Fprintln(w, "params:")
			for i, param := range p.Params {
				fmt.Fprintf(w, "  %d. %s (%s, default %q) %s\n", i+1, param.Name, param.Kind, param.Default, param.Description)
			}
			if flags := p.Launcher.Tokens(); len(flags) > 0 {
				fmt.Fprintf(w, "launcher:    %s\n", strings.Join(flags, " "))
			}
			if seeds := p.Launcher.SeedValue(); seeds != "" {
				fmt.Fprintf(w, "seeds:       %s\n", seeds)
			}
			fmt.Fprintln(w, "overrides:")
			for _, token := range p.Overrides.Tokens() {
				fmt.Fprintf(w, "  %s\n", token)
			}
			for _, name := range p.VariantNames() {
				v := p.Variants[name]
				fmt.Fprintf(w, "variant %s:", name)
				if v.Description != "" {
					fmt.Fprintf(w, " %s", v.Description)
				}
				fmt.Fprintln(w)
				for _, token := range v.Overrides.Tokens() {
					fmt.Fprintf(w, "  %s\n", token)
				}
			}
			return nil
		},
	}

	presetsCmd.AddCommand(listCmd, showCmd)
	return presetsCmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
