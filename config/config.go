package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/ledger/instrument"
	"github.com/rustyeddy/ledger/journal"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/risk"
)

// Config is the complete ledger configuration
type Config struct {
	Account     AccountConfig        `json:"account" yaml:"account"`
	Fees        FeesConfig           `json:"fees" yaml:"fees"`
	Matching    MatchingConfig       `json:"matching" yaml:"matching"`
	Risk        RiskConfig           `json:"risk" yaml:"risk"`
	Journal     JournalConfig        `json:"journal" yaml:"journal"`
	Instruments []instrument.Product `json:"instruments,omitempty" yaml:"instruments,omitempty"`
	Log         LogConfig            `json:"log" yaml:"log"`
}

// AccountConfig seeds the account the first time the ledger opens
type AccountConfig struct {
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
}

// FeesConfig sets the commission charged on both opens and closes
type FeesConfig struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	MinCommission  float64 `json:"min_commission" yaml:"min_commission"`
}

// MatchingConfig picks the lot a close consumes first
type MatchingConfig struct {
	Policy string `json:"policy" yaml:"policy"` // "lifo" or "fifo"
}

// RiskConfig holds optional pre-trade limits for opening signals
type RiskConfig struct {
	MaxOpenPositions   int     `json:"max_open_positions" yaml:"max_open_positions"`
	RequireAvailable   bool    `json:"require_available" yaml:"require_available"`
	MaxPositionCostPct float64 `json:"max_position_cost_pct" yaml:"max_position_cost_pct"`
}

// JournalConfig selects the store
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "sqlite" or "memory"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialBalance <= 0 {
		return fmt.Errorf("account.initial_balance must be positive")
	}
	if c.Fees.CommissionRate < 0 || c.Fees.CommissionRate >= 1 {
		return fmt.Errorf("fees.commission_rate must be in [0, 1)")
	}
	if c.Fees.MinCommission < 0 {
		return fmt.Errorf("fees.min_commission must not be negative")
	}
	if _, err := ledger.ParseMatching(c.Matching.Policy); err != nil {
		return fmt.Errorf("matching.policy: %w", err)
	}
	if c.Risk.MaxOpenPositions < 0 {
		return fmt.Errorf("risk.max_open_positions must not be negative")
	}
	if c.Risk.MaxPositionCostPct < 0 || c.Risk.MaxPositionCostPct > 1 {
		return fmt.Errorf("risk.max_position_cost_pct must be between 0 and 1")
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "memory":
	default:
		return fmt.Errorf("journal.type must be 'sqlite' or 'memory'")
	}
	for i, p := range c.Instruments {
		if strings.TrimSpace(p.Code) == "" {
			return fmt.Errorf("instruments[%d].code is required", i)
		}
		if p.Multiplier <= 0 {
			return fmt.Errorf("instruments[%d] (%s): multiplier must be positive", i, p.Code)
		}
		if p.MarginRatio <= 0 || p.MarginRatio > 1 {
			return fmt.Errorf("instruments[%d] (%s): margin_ratio must be in (0, 1]", i, p.Code)
		}
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialBalance: 1000000,
		},
		Fees: FeesConfig{
			CommissionRate: 0.0001,
			MinCommission:  5,
		},
		Matching: MatchingConfig{
			Policy: string(ledger.LIFO),
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./ledger.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ZapLevel parses the configured level; empty means info.
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

// Rules returns the instrument rules with the configured product overrides.
func (c *Config) Rules() *instrument.Rules {
	return instrument.NewRules(c.Instruments...)
}

// LedgerOptions converts the configuration into ledger options.
func (c *Config) LedgerOptions(log *zap.Logger) (ledger.Options, error) {
	m, err := ledger.ParseMatching(c.Matching.Policy)
	if err != nil {
		return ledger.Options{}, err
	}
	return ledger.Options{
		InitialBalance: decimal.NewFromFloat(c.Account.InitialBalance),
		CommissionRate: decimal.NewFromFloat(c.Fees.CommissionRate),
		MinCommission:  decimal.NewFromFloat(c.Fees.MinCommission),
		Matching:       m,
		Risk: risk.Policy{
			MaxOpenPositions:   c.Risk.MaxOpenPositions,
			RequireAvailable:   c.Risk.RequireAvailable,
			MaxPositionCostPct: decimal.NewFromFloat(c.Risk.MaxPositionCostPct),
		},
		Logger: log,
	}, nil
}

// OpenStore opens the configured journal.
func (c *Config) OpenStore() (ledger.Store, error) {
	return journal.Open(c.Journal.Type, c.Journal.DBPath)
}
