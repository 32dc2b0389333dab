package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type TokenLimits struct {
	MinShares float64 `yaml:"min_shares"`
}

type RateLimits struct {
	ReadPerSec  int `yaml:"read_per_sec"`
	WritePerSec int `yaml:"write_per_sec"`
}

type TradeLimits struct {
	// Exchange-wide floor on limit-buy notional, in USDC.
	MinOrderUSDC float64                `yaml:"min_order_usdc"`
	Rates        RateLimits             `yaml:"rates"`
	Tokens       map[string]TokenLimits `yaml:"tokens"`
}

// DefaultTradeLimits mirrors the exchange's published constraints; used when
// no limits file is present.
func DefaultTradeLimits() TradeLimits {
	return TradeLimits{
		MinOrderUSDC: 1.0,
		Rates:        RateLimits{ReadPerSec: 20, WritePerSec: 10},
	}
}

func LoadTradeLimits(path string) (TradeLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TradeLimits{}, fmt.Errorf("read trade limits: %w", err)
	}

	limits := DefaultTradeLimits()
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return TradeLimits{}, fmt.Errorf("parse trade limits: %w", err)
	}

	if limits.MinOrderUSDC <= 0 {
		limits.MinOrderUSDC = 1.0
	}
	return limits, nil
}

func (tl TradeLimits) TokenLimit(tokenID string) (TokenLimits, bool) {
	t, ok := tl.Tokens[tokenID]
	return t, ok
}
