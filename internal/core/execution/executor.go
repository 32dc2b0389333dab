package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/polymarket-exec/internal/adapters/outbound/clob_http"
	"github.com/charleschow/polymarket-exec/internal/fixedpoint"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// Aggressive marketable limit prices. A FAK buy at 0.99 sweeps the book and
// fills immediately instead of resting; a FAK sell at 0.01 is the mirror.
var (
	aggressiveBuyPrice  = decimal.RequireFromString("0.99")
	aggressiveSellPrice = decimal.RequireFromString("0.01")
)

var (
	quarter = decimal.RequireFromString("0.25")
	one     = decimal.NewFromInt(1)
)

// takerFeeShares reproduces the exchange's taker-fee curve:
// feeShares = filled * 0.25 * (price * (1 - price))^2.
func takerFeeShares(filled, price decimal.Decimal) decimal.Decimal {
	spread := price.Mul(one.Sub(price))
	return filled.Mul(quarter).Mul(spread).Mul(spread)
}

func latencyMsSince(start time.Time) uint64 {
	return uint64(time.Since(start).Milliseconds())
}

// opContext bounds one exchange interaction with the shared deadline.
func (s *Session) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Warmup issues three no-op round trips through the client to pre-establish
// the TLS connection pool before latency-sensitive trading begins. Each round
// trip gets its own timeout window.
func (s *Session) Warmup(ctx context.Context) Code {
	for i := 0; i < 3; i++ {
		if err := s.ping(ctx); err != nil {
			telemetry.Errorf("[WARMUP ERROR] %v", err)
			return CodeAuthFailed
		}
	}
	return CodeOK
}

func (s *Session) ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Ok(ctx)
}

// Prefetch warms the client's per-token metadata (tick size, fee rate,
// neg-risk flag) and caches the market's minimum order size from the book
// summary. All four queries share one timeout window. Concurrent prefetches
// of the same token collapse into a single flight.
func (s *Session) Prefetch(ctx context.Context, tokenID string) Code {
	if _, ok := parseTokenID(tokenID); !ok {
		return CodeInvalidToken
	}

	start := time.Now()
	_, err, _ := s.prefetchGroup.Do(tokenID, func() (any, error) {
		ctx, cancel := s.opContext(ctx)
		defer cancel()

		if _, err := s.client.TickSize(ctx, tokenID); err != nil {
			return nil, fmt.Errorf("tick size: %w", err)
		}
		if _, err := s.client.FeeRateBps(ctx, tokenID); err != nil {
			return nil, fmt.Errorf("fee rate: %w", err)
		}
		if _, err := s.client.NegRisk(ctx, tokenID); err != nil {
			return nil, fmt.Errorf("neg risk: %w", err)
		}

		book, err := s.client.OrderBook(ctx, tokenID)
		if err != nil {
			return nil, fmt.Errorf("order book: %w", err)
		}

		s.storeMinSize(tokenID, book.MinOrderSize)
		return nil, nil
	})

	telemetry.Metrics.PrefetchLatency.Record(time.Since(start))
	if err != nil {
		telemetry.Metrics.PrefetchErrors.Inc()
		telemetry.Errorf("[PREFETCH ERROR] token=%s | error=%v", tokenID, err)
		return CodeOrderFailed
	}
	telemetry.Metrics.Prefetches.Inc()
	return CodeOK
}

// MarketBuy spends usdcAmount (floored to USDC's 6-decimal precision) on a
// FAK order at the aggressive buy price. The reported filled quantity is NET
// of the taker fee; callers rely on already-net figures.
func (s *Session) MarketBuy(ctx context.Context, tokenID string, usdcAmount float64) OrderResult {
	if _, ok := parseTokenID(tokenID); !ok {
		return resultWithError(CodeInvalidToken)
	}

	start := time.Now()

	spend := fixedpoint.FloorUSDC(usdcAmount)
	if spend.Sign() <= 0 {
		return resultWithError(CodeOrderFailed)
	}

	resp, err := s.postOrder(ctx, clob_http.OrderArgs{
		TokenID:   tokenID,
		Side:      "BUY",
		OrderType: clob_http.OrderTypeFAK,
		Price:     aggressiveBuyPrice,
		SpendUSDC: spend,
	})
	latency := latencyMsSince(start)
	if err != nil {
		telemetry.Errorf("[ORDER ERROR] BUY | error=%v | latency=%dms", err, latency)
		return failedAfter(CodeOrderFailed, latency)
	}

	// For BUY: taking = shares received, making = USDC paid.
	filledShares := resp.TakingAmount
	usdcPaid := resp.MakingAmount

	avgPrice := decimal.Zero
	if filledShares.Sign() > 0 {
		avgPrice = usdcPaid.DivRound(filledShares, 8)
	}

	netShares := filledShares.Sub(takerFeeShares(filledShares, avgPrice))

	result := OrderResult{
		Success:      resp.Success,
		FilledQtyRaw: fixedpoint.ToRaw(netShares),
		AvgPriceRaw:  fixedpoint.ToRaw(avgPrice),
		LatencyMs:    latency,
		ErrorCode:    CodeOK,
	}
	result.setOrderID(resp.OrderID)
	return result
}

// MarketSell sells size shares (floored to the exchange's 2-decimal share
// precision) with a FAK order at the aggressive sell price. No fee
// adjustment: maker/taker attribution for sells is the caller's concern.
func (s *Session) MarketSell(ctx context.Context, tokenID string, size float64) OrderResult {
	if _, ok := parseTokenID(tokenID); !ok {
		return resultWithError(CodeInvalidToken)
	}

	start := time.Now()

	shares := fixedpoint.FloorShares(size)
	if shares.Sign() <= 0 {
		return resultWithError(CodeOrderFailed)
	}

	resp, err := s.postOrder(ctx, clob_http.OrderArgs{
		TokenID:   tokenID,
		Side:      "SELL",
		OrderType: clob_http.OrderTypeFAK,
		Price:     aggressiveSellPrice,
		Shares:    shares,
	})
	latency := latencyMsSince(start)
	if err != nil {
		telemetry.Errorf("[ORDER ERROR] SELL | error=%v | latency=%dms", err, latency)
		return failedAfter(CodeOrderFailed, latency)
	}

	// For SELL: making = shares sold, taking = USDC received.
	soldShares := resp.MakingAmount
	usdcReceived := resp.TakingAmount

	avgPrice := decimal.Zero
	if soldShares.Sign() > 0 {
		avgPrice = usdcReceived.DivRound(soldShares, 8)
	}

	result := OrderResult{
		Success:      resp.Success,
		FilledQtyRaw: fixedpoint.ToRaw(soldShares),
		AvgPriceRaw:  fixedpoint.ToRaw(avgPrice),
		LatencyMs:    latency,
		ErrorCode:    CodeOK,
	}
	result.setOrderID(resp.OrderID)
	return result
}

// LimitBuy rests a GTC order at the caller's price for
// ceil(spend/price, 2 decimals) shares. Rejects below the $1 notional floor
// and, when the cache answers without blocking, below the market's minimum
// share count. AvgPriceRaw reports the requested price: a resting order's
// realized fill price is unknown at submission. No fee deduction; maker
// orders are fee-free while resting.
func (s *Session) LimitBuy(ctx context.Context, tokenID string, price, usdcAmount float64) OrderResult {
	if _, ok := parseTokenID(tokenID); !ok {
		return resultWithError(CodeInvalidToken)
	}
	if price <= 0 || price >= 1 {
		return resultWithError(CodeOrderFailed)
	}

	start := time.Now()

	minOrder, _ := s.minOrderUSDC.Float64()
	if usdcAmount < minOrder {
		telemetry.Warnf("[LIMIT BUY] order size $%.4f below minimum $%.2f", usdcAmount, minOrder)
		return resultWithError(CodeMinOrderSize)
	}

	priceDec := decimal.NewFromFloat(price)
	spend := decimal.NewFromFloat(usdcAmount)
	shares := fixedpoint.CeilShares(spend, priceDec)

	if minShares, ok := s.cachedMinSize(tokenID); ok && shares.Cmp(minShares) < 0 {
		telemetry.Warnf("[LIMIT BUY] shares %s below market minimum %s", shares, minShares)
		return resultWithError(CodeMinShares)
	}

	resp, err := s.postOrder(ctx, clob_http.OrderArgs{
		TokenID:   tokenID,
		Side:      "BUY",
		OrderType: clob_http.OrderTypeGTC,
		Price:     priceDec,
		Shares:    shares,
	})
	latency := latencyMsSince(start)
	if err != nil {
		telemetry.Errorf("[ORDER ERROR] LIMIT BUY | error=%v | latency=%dms", err, latency)
		return failedAfter(CodeOrderFailed, latency)
	}

	result := OrderResult{
		Success:      resp.Success,
		FilledQtyRaw: fixedpoint.ToRaw(resp.TakingAmount),
		AvgPriceRaw:  fixedpoint.ToRaw(priceDec),
		LatencyMs:    latency,
		ErrorCode:    CodeOK,
	}
	result.setOrderID(resp.OrderID)
	return result
}

// LimitSell rests a GTC sell at the caller's price for size shares (floored
// to 2 decimals). Symmetric to LimitBuy without the minimum-size validation.
func (s *Session) LimitSell(ctx context.Context, tokenID string, price, size float64) OrderResult {
	if _, ok := parseTokenID(tokenID); !ok {
		return resultWithError(CodeInvalidToken)
	}
	if price <= 0 || price >= 1 {
		return resultWithError(CodeOrderFailed)
	}

	start := time.Now()

	shares := fixedpoint.FloorShares(size)
	if shares.Sign() <= 0 {
		return resultWithError(CodeOrderFailed)
	}
	priceDec := decimal.NewFromFloat(price)

	resp, err := s.postOrder(ctx, clob_http.OrderArgs{
		TokenID:   tokenID,
		Side:      "SELL",
		OrderType: clob_http.OrderTypeGTC,
		Price:     priceDec,
		Shares:    shares,
	})
	latency := latencyMsSince(start)
	if err != nil {
		telemetry.Errorf("[ORDER ERROR] LIMIT SELL | error=%v | latency=%dms", err, latency)
		return failedAfter(CodeOrderFailed, latency)
	}

	result := OrderResult{
		Success:      resp.Success,
		FilledQtyRaw: fixedpoint.ToRaw(resp.MakingAmount),
		AvgPriceRaw:  fixedpoint.ToRaw(priceDec),
		LatencyMs:    latency,
		ErrorCode:    CodeOK,
	}
	result.setOrderID(resp.OrderID)
	return result
}

func (s *Session) postOrder(ctx context.Context, args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	start := time.Now()
	resp, err := s.client.PostOrder(ctx, args)
	telemetry.Metrics.OrderLatency.Record(time.Since(start))
	return resp, err
}

// Cancel cancels one resting order by id.
func (s *Session) Cancel(ctx context.Context, orderID string) Code {
	if orderID == "" {
		return CodeCancelFailed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.CancelOrder(ctx, orderID); err != nil {
		telemetry.Errorf("[CANCEL ERROR] order_id=%s error=%v", orderID, err)
		return CodeCancelFailed
	}
	return CodeOK
}

// CancelAll cancels every resting order for the session's maker.
func (s *Session) CancelAll(ctx context.Context) Code {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.CancelAllOrders(ctx); err != nil {
		telemetry.Errorf("[CANCEL_ALL ERROR] error=%v", err)
		return CodeCancelFailed
	}
	return CodeOK
}

// Balance returns the USDC balance in raw units, or -1 on any failure.
func (s *Session) Balance(ctx context.Context) int64 {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	bal, err := s.client.BalanceAllowance(ctx, clob_http.AssetCollateral, "")
	if err != nil {
		return -1
	}
	return fixedpoint.ToRaw(bal.Balance)
}

// TokenBalance returns the share balance for one token in raw units, or -1
// on any failure.
func (s *Session) TokenBalance(ctx context.Context, tokenID string) int64 {
	if _, ok := parseTokenID(tokenID); !ok {
		return -1
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	bal, err := s.client.BalanceAllowance(ctx, clob_http.AssetConditional, tokenID)
	if err != nil {
		return -1
	}
	return fixedpoint.ToRaw(bal.Balance)
}
