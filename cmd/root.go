package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sharmasourab93/market-gen/internal/config"
	"github.com/sharmasourab93/market-gen/internal/logging"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   *slog.Logger
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "market-gen",
		Short: "Fetch exchange market files as tables",
		Long: `market-gen downloads market data files from the exchange's public endpoints.

Payloads may be zip archives, CSV text or workbooks; the format is detected
from the bytes and the result is printed, saved to SQLite or summarised to a
Telegram chat.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml or $HOME/.market-gen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level: debug, info, warn, error")

	rootCmd.AddCommand(
		newFetchCmd(a),
		newSniffCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) init() error {
	// Existing environment variables win over .env entries.
	dotenv := godotenv.Load() == nil

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.logger.Debug("configuration loaded",
		"dotenv", dotenv,
		"config_file", a.cfgFile,
		"telegram_enabled", cfg.Telegram.Enabled)
	return nil
}
