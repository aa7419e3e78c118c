// Command stepflow drives tasks through the step-wise orchestration
// workflow and inspects stored runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/app"
	"github.com/aristath/stepflow/internal/config"
	"github.com/aristath/stepflow/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	dbPath     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stepflow",
	Short: "Step-wise task orchestration over pluggable providers",
	Long: `stepflow analyzes a task, then repeatedly decides what to do next,
delegates work to department providers and collates their results into a
final answer, all within a hard step budget.

Configuration is read from ~/.stepflow/config.{json,yaml} and
.stepflow/config.{json,yaml}, then STEPFLOW_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		var err error
		logger, err = newLogger()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file used instead of the project config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json or console)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Checkpoint database path (\"off\" disables checkpoints)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies the layered config and then the command-line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(globalConfigPath(), configPath)
		if err == nil {
			err = config.ApplyEnv(cfg, os.Getenv)
		}
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	switch dbPath {
	case "":
	case "off":
		cfg.Database.Path = ""
	default:
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the logger from the configured logging section, with the
// --log-level and --log-format flags taking precedence. A config that fails to
// load is reported by the command itself, so here it only falls back to the
// flags.
func newLogger() (*zap.Logger, error) {
	level, format := logLevel, logFormat
	if cfg, err := loadConfig(); err == nil {
		if level == "" {
			level = cfg.Logging.Level
		}
		if format == "" {
			format = cfg.Logging.Format
		}
	}
	return logging.New(level, format)
}

// openApp loads config and builds the application context.
func openApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logging.OrNop(logger), opts...)
}

func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".stepflow", "config.json")
}

func projectConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(".stepflow", "config.json")
}
