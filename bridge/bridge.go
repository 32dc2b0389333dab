// Package bridge is the flat, host-facing call surface. Every function is
// self-contained: no object handles cross the boundary, results are returned
// by value, and failures come back as error codes instead of Go errors.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/charleschow/polymarket-exec/internal/adapters/outbound/clob_http"
	"github.com/charleschow/polymarket-exec/internal/adapters/polymarket_auth"
	"github.com/charleschow/polymarket-exec/internal/config"
	"github.com/charleschow/polymarket-exec/internal/core/execution"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// Re-exported result types so hosts never import internal packages.
type (
	Code        = execution.Code
	OrderResult = execution.OrderResult
)

const (
	OK             = execution.CodeOK
	NotInitialized = execution.CodeNotInitialized
	InvalidPK      = execution.CodeInvalidPK
	AuthFailed     = execution.CodeAuthFailed
	InvalidToken   = execution.CodeInvalidToken
	OrderFailed    = execution.CodeOrderFailed
	CancelFailed   = execution.CodeCancelFailed
	MinOrderSize   = execution.CodeMinOrderSize
	MinShares      = execution.CodeMinShares
)

var telemetryOnce sync.Once

// Init establishes the trading session: parses the key, derives API
// credentials, and publishes the session for all other calls. Idempotent; a
// second call while a session is active returns OK without touching it.
func Init(privateKeyHex, funderHex string) Code {
	if execution.Installed() {
		return OK
	}

	cfg := config.Load()
	telemetryOnce.Do(func() {
		telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	})

	signer, err := polymarket_auth.NewSigner(privateKeyHex, funderHex, cfg.ChainID)
	if err != nil {
		telemetry.Errorf("bridge: signer setup failed: %v", err)
		if errors.Is(err, polymarket_auth.ErrInvalidPrivateKey) {
			return InvalidPK
		}
		return AuthFailed
	}

	limits, lerr := config.LoadTradeLimits(cfg.TradeLimitsPath)
	if lerr != nil {
		telemetry.Warnf("bridge: trade limits unavailable, using defaults: %v", lerr)
		limits = config.DefaultTradeLimits()
	}

	client := clob_http.NewClient(cfg.ClobBaseURL, signer, limits.Rates.ReadPerSec, limits.Rates.WritePerSec)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout)
	defer cancel()
	if err := client.Authenticate(ctx); err != nil {
		telemetry.Errorf("bridge: authentication failed: %v", err)
		return AuthFailed
	}

	seeds := make(map[string]decimal.Decimal, len(limits.Tokens))
	for token, tl := range limits.Tokens {
		if tl.MinShares > 0 {
			seeds[token] = decimal.NewFromFloat(tl.MinShares)
		}
	}

	session := execution.NewSession(client, cfg.APITimeout,
		decimal.NewFromFloat(limits.MinOrderUSDC), seeds)

	// A racing Init may have won; either way a session is active now.
	execution.Install(session)
	telemetry.Infof("bridge: initialized address=%s funder=%s", signer.Address().Hex(), funderHex)
	return OK
}

// Shutdown tears the session down. Idempotent; Init re-establishes fully.
func Shutdown() {
	execution.Teardown()
	telemetry.Infof("bridge: shut down")
}

// IsInitialized reports whether a session is active.
func IsInitialized() bool {
	return execution.Installed()
}

// Warmup pre-establishes the exchange connection pool.
func Warmup() Code {
	s, release, ok := execution.Acquire()
	if !ok {
		return NotInitialized
	}
	defer release()
	return s.Warmup(context.Background())
}

// Prefetch warms per-token metadata and the minimum-order-size cache.
func Prefetch(tokenID string) Code {
	s, release, ok := execution.Acquire()
	if !ok {
		return NotInitialized
	}
	defer release()
	return s.Prefetch(context.Background(), tokenID)
}

// MarketBuy spends usdcAmount immediately at the best available prices.
func MarketBuy(tokenID string, usdcAmount float64) OrderResult {
	s, release, ok := execution.Acquire()
	if !ok {
		return OrderResult{ErrorCode: NotInitialized}
	}
	defer release()
	return s.MarketBuy(context.Background(), tokenID, usdcAmount)
}

// MarketSell sells size shares immediately at the best available prices.
func MarketSell(tokenID string, size float64) OrderResult {
	s, release, ok := execution.Acquire()
	if !ok {
		return OrderResult{ErrorCode: NotInitialized}
	}
	defer release()
	return s.MarketSell(context.Background(), tokenID, size)
}

// LimitBuy rests an order spending usdcAmount at the given price.
func LimitBuy(tokenID string, price, usdcAmount float64) OrderResult {
	s, release, ok := execution.Acquire()
	if !ok {
		return OrderResult{ErrorCode: NotInitialized}
	}
	defer release()
	return s.LimitBuy(context.Background(), tokenID, price, usdcAmount)
}

// LimitSell rests an order selling size shares at the given price.
func LimitSell(tokenID string, price, size float64) OrderResult {
	s, release, ok := execution.Acquire()
	if !ok {
		return OrderResult{ErrorCode: NotInitialized}
	}
	defer release()
	return s.LimitSell(context.Background(), tokenID, price, size)
}

// Cancel cancels one resting order by id.
func Cancel(orderID string) Code {
	s, release, ok := execution.Acquire()
	if !ok {
		return NotInitialized
	}
	defer release()
	return s.Cancel(context.Background(), orderID)
}

// CancelAll cancels every resting order.
func CancelAll() Code {
	s, release, ok := execution.Acquire()
	if !ok {
		return NotInitialized
	}
	defer release()
	return s.CancelAll(context.Background())
}

// GetBalance returns the USDC balance in raw 6-decimal units, -1 on failure.
func GetBalance() int64 {
	s, release, ok := execution.Acquire()
	if !ok {
		return -1
	}
	defer release()
	return s.Balance(context.Background())
}

// GetTokenBalance returns the share balance for one token in raw 6-decimal
// units, -1 on failure.
func GetTokenBalance(tokenID string) int64 {
	s, release, ok := execution.Acquire()
	if !ok {
		return -1
	}
	defer release()
	return s.TokenBalance(context.Background(), tokenID)
}
