// Package cli provides the command-line interface for t3.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/classvsoftware/t3api-utils/pkg/config"
	"github.com/classvsoftware/t3api-utils/pkg/logging"
	"github.com/classvsoftware/t3api-utils/pkg/metrics"
)

// Version is set by the main package at startup.
var Version = "v0.1.0-dev"

// app carries state shared by all commands of one invocation.
type app struct {
	// Global flags
	configPath  string
	envFile     string
	verbose     bool
	pretty      bool
	metricsAddr string
	jwt         string
	apiKey      string
	stateCode   string

	cfg      *config.Config
	metrics  *metrics.Server
	closers  []func() error
	prompter Prompter
	out      io.Writer
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{prompter: newTerminalPrompter(), out: os.Stdout})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "t3",
		Short: "T3 API utilities for Metrc data",
		Long: `t3 ` + Version + `
Authenticate against the T3 API and bulk-load Metrc collections with a
parallel, rate-limited page loader. Results are written as JSON, CSV or
loaded into PostgreSQL.

Settings come from an optional YAML file (--config) and T3_* environment
variables. Metrc credentials come from METRC_* environment variables or the
.t3.env file and are prompted for when missing.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Credentials file (default from config, .t3.env)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "Human-readable log output")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().StringVar(&a.jwt, "jwt", os.Getenv("T3_JWT"), "Use a pre-issued JWT instead of credentials")
	rootCmd.PersistentFlags().StringVar(&a.apiKey, "api-key", os.Getenv("T3_API_KEY"), "Authenticate with an API key instead of credentials")
	rootCmd.PersistentFlags().StringVar(&a.stateCode, "state", "", "State code sent with --api-key")

	rootCmd.AddCommand(newLicensesCmd(a))
	rootCmd.AddCommand(newCollectionCmd(a))

	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.envFile != "" {
		cfg.EnvFile = a.envFile
	}
	a.cfg = cfg

	level := logging.LogLevel(cfg.LogLevel)
	if a.verbose {
		level = logging.LevelDebug
	}
	if _, err := logging.Setup(logging.Config{
		Level:  level,
		Pretty: a.pretty || cfg.LogPretty,
		Output: os.Stderr,
	}); err != nil {
		return err
	}

	if a.metricsAddr != "" {
		srv, err := metrics.Start(a.metricsAddr)
		if err != nil {
			return err
		}
		a.metrics = srv
	}
	return nil
}

func (a *app) teardown() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Debug().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil

	if a.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown")
	}
}
