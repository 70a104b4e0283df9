package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rpm-software-management/libdnf-sub006/internal/app"
	"github.com/rpm-software-management/libdnf-sub006/internal/config"
)

// cli carries the state shared by the commands of one root command.
type cli struct {
	v        *viper.Viper
	cfgFile  string // Path to config file (passed via flag)
	logLevel string
	log      *zap.Logger
}

// NewRootCmd builds the modulectl command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), log: zap.NewNop()}
	// defaults win over the empty defaults of the bound flags below
	config.SetDefaults(c.v)

	rootCmd := &cobra.Command{
		Use:   "modulectl",
		Short: "Manage module streams",
		Long: `modulectl enables, disables and resets module streams, installs module
profiles and shows which module streams are active for the configured
repositories and platform.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if c.log, err = newLogger(c.logLevel); err != nil {
				return err
			}
			return c.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.config/modulectl/config.yaml)")
	flags.StringVar(&c.logLevel, "log-level", "warn", "Set logging level (debug, info, warn, error)")
	flags.String("state-backend", "", "Module state backend: toml, sqlite or postgres (overrides config/env)")
	flags.String("repos", "", "Repositories as id:priority[,id:priority] (overrides config/env)")
	flags.String("platform-id", "", "Platform module, e.g. platform:f28 (overrides os-release)")

	// Bind persistent flags to Viper
	_ = c.v.BindPFlag("STATE_BACKEND", flags.Lookup("state-backend"))
	_ = c.v.BindPFlag("REPOS", flags.Lookup("repos"))
	_ = c.v.BindPFlag("PLATFORM_ID", flags.Lookup("platform-id"))

	rootCmd.AddCommand(c.newModuleCmd(), c.newRepoCmd(), c.newConfigureCmd())
	return rootCmd
}

// Execute runs the CLI. Every message of an aggregated error is printed on
// its own line.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "Error:", e)
		}
		os.Exit(1)
	}
}

func (c *cli) configPath() (string, error) {
	if c.cfgFile != "" {
		return c.cfgFile, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "modulectl", "config.yaml"), nil
}

// initConfig reads in the config file if there is one. Environment
// variables are applied by config.LoadConfig.
func (c *cli) initConfig() error {
	path, err := c.configPath()
	if err != nil {
		return err
	}
	c.v.SetConfigFile(path)
	c.v.SetConfigType("yaml")

	err = c.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		c.log.Debug("using config file", zap.String("path", c.v.ConfigFileUsed()))
	case errors.Is(err, fs.ErrNotExist), errors.As(err, &notFound):
		c.log.Debug("no config file", zap.String("path", path))
	default:
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func (c *cli) config() (config.Config, error) {
	return config.LoadConfig(c.v)
}

// writeConfig persists the current settings to the config file.
func (c *cli) writeConfig() (string, error) {
	path, err := c.configPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := c.v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return path, nil
}

// session opens the module state and metadata. Load problems are logged;
// the session is usable regardless.
func (c *cli) session(ctx context.Context) (*app.Session, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	s, err := app.Open(ctx, cfg, c.log)
	if err != nil {
		return nil, err
	}
	for _, e := range multierr.Errors(s.LoadErrors) {
		c.log.Warn("module metadata problem", zap.Error(e))
	}
	return s, nil
}

// newLogger builds the console logger for the given level.
func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.WarnLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder, // INFO, WARN
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	return logger, nil
}
