// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire launcher configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Launcher    LauncherConfig    `mapstructure:"launcher" yaml:"launcher"`
	Checkpoints map[string]string `mapstructure:"checkpoints" yaml:"checkpoints"`
	Ledger      LedgerConfig      `mapstructure:"ledger" yaml:"ledger"`
	Preflight   PreflightConfig   `mapstructure:"preflight" yaml:"preflight"`
	Matrix      MatrixConfig      `mapstructure:"matrix" yaml:"matrix"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names used for each log level on the console.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// LauncherConfig controls how the external trainer is started.
type LauncherConfig struct {
	// Command is the argv prefix used when a preset does not declare its own.
	Command []string `mapstructure:"command" yaml:"command"`
	// Workdir is the directory the trainer runs in. Its parent goes on the search path.
	Workdir string `mapstructure:"workdir" yaml:"workdir"`
	// SearchPathVar names the environment variable the trainer uses to find sibling code.
	SearchPathVar string `mapstructure:"search_path_var" yaml:"search_path_var"`
	PresetsDir    string `mapstructure:"presets_dir" yaml:"presets_dir"`
	LogDir        string `mapstructure:"log_dir" yaml:"log_dir"`
	// GracePeriod is how long an interrupted trainer gets before it is killed.
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
}

// LedgerConfig selects where run records are kept.
type LedgerConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
}

// PreflightConfig configures the working tree check done before a launch.
type PreflightConfig struct {
	Enabled          bool `mapstructure:"enabled" yaml:"enabled"`
	EnforceCleanTree bool `mapstructure:"enforce_clean_tree" yaml:"enforce_clean_tree"`
}

// MatrixConfig tunes the matrix runner.
type MatrixConfig struct {
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	LaunchInterval time.Duration `mapstructure:"launch_interval" yaml:"launch_interval"`
}

// Ledger backends.
const (
	LedgerBackendFile     = "file"
	LedgerBackendPostgres = "postgres"
	LedgerBackendNone     = "none"
)

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration section.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rglaunch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Launcher --
	v.SetDefault("launcher.command", []string{"python3", "run.py"})
	v.SetDefault("launcher.workdir", ".")
	v.SetDefault("launcher.search_path_var", "PYTHONPATH")
	v.SetDefault("launcher.presets_dir", "~/.config/rglaunch/presets")
	v.SetDefault("launcher.log_dir", "~/.local/state/rglaunch/logs")
	v.SetDefault("launcher.grace_period", "10s")

	// -- Ledger --
	v.SetDefault("ledger.backend", LedgerBackendFile)
	v.SetDefault("ledger.dir", "~/.local/state/rglaunch")
	v.SetDefault("ledger.database_url", "")

	// -- Preflight --
	v.SetDefault("preflight.enabled", true)
	v.SetDefault("preflight.enforce_clean_tree", false)

	// -- Matrix --
	v.SetDefault("matrix.concurrency", 1)
	v.SetDefault("matrix.launch_interval", "0s")
}

// NewConfigFromViper creates a validated configuration instance from a viper object.
// Paths starting with "~" are expanded against the user's home directory.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials stay out of config files.
	_ = v.BindEnv("ledger.database_url", "RGLAUNCH_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	targets := []*string{
		&c.Logger.LogFile,
		&c.Launcher.Workdir,
		&c.Launcher.PresetsDir,
		&c.Launcher.LogDir,
		&c.Ledger.Dir,
	}
	for _, p := range targets {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	for name, path := range c.Checkpoints {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("expanding checkpoint %q: %w", name, err)
		}
		c.Checkpoints[name] = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger configuration invalid: %w", err)
	}
	if err := c.Launcher.Validate(); err != nil {
		return fmt.Errorf("launcher configuration invalid: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger configuration invalid: %w", err)
	}
	if err := c.Matrix.Validate(); err != nil {
		return fmt.Errorf("matrix configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the logger settings.
func (l *LoggerConfig) Validate() error {
	switch l.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("format must be 'console' or 'json', got %q", l.Format)
	}
}

// Validate checks the launcher settings.
func (l *LauncherConfig) Validate() error {
	if len(l.Command) == 0 || strings.TrimSpace(l.Command[0]) == "" {
		return fmt.Errorf("command must name an executable")
	}
	if strings.TrimSpace(l.SearchPathVar) == "" {
		return fmt.Errorf("search_path_var must not be empty")
	}
	if l.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative")
	}
	return nil
}

// Validate checks the ledger settings.
func (l *LedgerConfig) Validate() error {
	switch l.Backend {
	case LedgerBackendFile:
		if l.Dir == "" {
			return fmt.Errorf("dir is required for the file backend")
		}
	case LedgerBackendPostgres:
		if l.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the postgres backend. Ensure RGLAUNCH_DATABASE_URL is set")
		}
	case LedgerBackendNone:
	default:
		return fmt.Errorf("unknown backend %q", l.Backend)
	}
	return nil
}

// Validate checks the matrix settings.
func (m *MatrixConfig) Validate() error {
	if m.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	if m.LaunchInterval < 0 {
		return fmt.Errorf("launch_interval must not be negative")
	}
	return nil
}
