package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Polymarket CLOB
	ClobBaseURL string
	ClobWSURL   string
	ChainID     int64

	// Trading identity
	PrivateKey    string
	FunderAddress string

	// Every exchange round trip shares this deadline.
	APITimeout time.Duration

	// Trade limits file (YAML)
	TradeLimitsPath string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ClobBaseURL: envStr("CLOB_BASE_URL", "https://clob.polymarket.com"),
		ClobWSURL:   envStr("CLOB_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		ChainID:     int64(envInt("CHAIN_ID", 137)), // Polygon mainnet

		PrivateKey:    envStr("POLYMARKET_PRIVATE_KEY", ""),
		FunderAddress: envStr("POLYMARKET_FUNDER", ""),

		APITimeout: time.Duration(envInt("API_TIMEOUT_SEC", 10)) * time.Second,

		TradeLimitsPath: envStr("TRADE_LIMITS_PATH", "internal/config/trade_limits.yaml"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
