// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/config"
	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/observability"
	"github.com/xkilldash9x/rglaunch/internal/service"
)

type contextKey string

const configKey contextKey = "config"

// NewRootCommand builds a fresh command tree wired to the production components.
func NewRootCommand() *cobra.Command {
	return newRootCmd(service.NewComponentFactory())
}

func newRootCmd(factory service.ComponentFactory) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "rglaunch",
		Short: "rglaunch starts reinforcement learning experiments from named presets.",
		Long: `rglaunch resolves a preset and its positional arguments into an override list,
starts the trainer with the working directory's parent on its search path and
exits with the trainer's exit code.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./rglaunch.yaml, then ~/.config/rglaunch/rglaunch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(factory),
		newPlanCmd(factory),
		newPresetsCmd(factory),
		newMatrixCmd(factory),
		newRunsCmd(factory),
		newLogsCmd(factory),
		newCheckCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line. Launcher-side failures are logged here; a
// trainer exit error is returned unlogged since the trainer reported it itself.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if _, ok := launcher.ExitCode(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Interrupted.")
		return err
	}
	observability.GetLogger().Error("Command failed.", zap.Error(err))
	return err
}

// initializeConfig points v at the config file and environment. Flags bound here
// win over both.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rglaunch")
		v.SetConfigName("rglaunch")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RGLAUNCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		if err := v.BindPFlag("logger.level", f); err != nil {
			return err
		}
	}
	return nil
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}

// createComponents builds the components for cmd and attaches the launcher to
// the command's streams.
func createComponents(cmd *cobra.Command, factory service.ComponentFactory) (*service.Components, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	components, err := factory.Create(cmd.Context(), cfg, observability.GetLogger())
	if err != nil {
		return nil, err
	}
	components.Launcher.Stdin = cmd.InOrStdin()
	components.Launcher.Stdout = cmd.OutOrStdout()
	components.Launcher.Stderr = cmd.ErrOrStderr()
	return components, nil
}
