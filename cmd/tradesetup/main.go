package main

import (
	"fmt"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradesetup/internal/config"
	"tradesetup/internal/db"
	"tradesetup/internal/logger"

	_ "tradesetup/docs"
)

var (
	configPath string
	envOnly    bool
)

var rootCmd = &cobra.Command{
	Use:   "tradesetup",
	Short: "Intraday setup pipeline service",
	Long: `tradesetup runs the four-step intraday pipeline: market context, open
behavior, execution control with candidate selection, and trade construction.
Each step freezes once per trade date and gates the next one.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the session monitor",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the pipeline tables and exit",
	RunE:  runMigrate,
}

func init() {
	defaultPath := os.Getenv("TS_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	defaultEnvOnly := false
	if raw := os.Getenv("TS_ENV_ONLY"); raw != "" {
		defaultEnvOnly = strings.EqualFold(raw, "true") || raw == "1"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "path to the yaml config")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", defaultEnvOnly, "read configuration from TS_* environment variables only")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, envOnly)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close(dbConn)
	if err := db.AutoMigrate(dbConn); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	log.Info("migration complete", zap.String("driver", cfg.DB.Driver))
	return nil
}
