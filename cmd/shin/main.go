package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/shin/internal/config"
	applogger "github.com/yourusername/shin/internal/logger"
	"github.com/yourusername/shin/internal/shin"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	logLevel   string
	logger     *logrus.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shin",
	Short: "Shin's method implied probabilities",
	Long: `Convert bookmaker prices into implied probabilities using Shin's model
of insider trading, either locally, against a remote API, or for odds stored
in PostgreSQL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithDefaults(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.App.LogLevel = logLevel
		}

		logger = applogger.NewLoggerWithOutput(cmd.ErrOrStderr(), cfg.App.LogLevel, cfg.App.Environment)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(probabilitiesCmd, serveCmd, demarginCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// solverOptions returns the configured solver options
func solverOptions() shin.Options {
	return shin.Options{
		MaxIterations:        cfg.Solver.MaxIterations,
		ConvergenceThreshold: cfg.Solver.ConvergenceThreshold,
	}
}
