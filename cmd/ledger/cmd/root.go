package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/ledger/config"
	"github.com/rustyeddy/ledger/ledger"
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Position and account settlement ledger for trade signals",
	Long: `Ledger settles trade signals for equities, futures, options and funds into
positions, an account and a signal log.

It provides tools for:
  - Applying open/close signals with margin and commission handling
  - Force-closing or annotating recorded signals
  - Inspecting positions, the account and its history
  - Replaying signal files and exporting the log to CSV`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	dbPath   string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite ledger path (overrides journal.db_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if dbPath != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lvl, err := cfg.Log.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}

// app is an opened, initialized ledger.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  ledger.Store
	ledger *ledger.Ledger
}

func openLedger(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	opts, err := cfg.LedgerOptions(log)
	if err != nil {
		store.Close()
		return nil, err
	}

	l := ledger.New(store, cfg.Rules(), opts)
	if _, err := l.GetAccount(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init account: %w", err)
	}

	return &app{cfg: cfg, log: log, store: store, ledger: l}, nil
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.store.Close()
}
