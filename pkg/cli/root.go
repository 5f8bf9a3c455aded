// Package cli contains the ekaya-sanity command definitions.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/config"
	"github.com/ekaya-inc/ekaya-sanity/pkg/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

// NewRootCmd creates the root command. Subcommands share one app, built in
// PersistentPreRunE once flags are parsed.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "ekaya-sanity",
		Short:         "Sanity checks for relational JSON exports and tool API declarations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, opts, version)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Configuration file (read when present)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before configuration (ignored when absent)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	registerDataCmd(rootCmd, a)
	registerAPICmd(rootCmd, a)
	registerReportsCmd(rootCmd, a)
	registerMigrateCmd(rootCmd, a)
	registerMCPCmd(rootCmd, a)

	return rootCmd
}

// load reads the dotenv file and configuration and builds the logger.
func (a *app) load(cmd *cobra.Command, opts *rootOptions, version string) error {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load(opts.configPath, version)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.out = cmd.OutOrStdout()
	a.logger.Debug("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("introspection", cfg.API.Introspection),
		zap.Bool("persistence", cfg.Database.Enabled()))
	return nil
}
