package clob_http

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ok hits the CLOB health endpoint. Used by warmup to pre-establish the TLS
// connection pool before latency-sensitive trading begins.
func (c *Client) Ok(ctx context.Context) error {
	_, status, err := c.get(ctx, "/ok")
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("ok: status=%d", status)
	}
	return nil
}

type tickSizeResponse struct {
	MinimumTickSize json.Number `json:"minimum_tick_size"`
}

// TickSize returns the market's minimum price increment and caches it for
// order building.
func (c *Client) TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	body, status, err := c.get(ctx, "/tick-size?token_id="+tokenID)
	if err != nil {
		return decimal.Zero, err
	}
	if status != 200 {
		return decimal.Zero, fmt.Errorf("tick size: status=%d", status)
	}

	var resp tickSizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal tick size: %w", err)
	}

	tick, err := decimal.NewFromString(resp.MinimumTickSize.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse tick size %q: %w", resp.MinimumTickSize, err)
	}

	c.metaMu.Lock()
	m := c.metaFor(tokenID)
	m.tickSize = tick
	m.hasTick = true
	c.metaMu.Unlock()

	return tick, nil
}

type feeRateResponse struct {
	FeeRateBps json.Number `json:"fee_rate_bps"`
}

// FeeRateBps returns the taker fee rate for a token, in basis points.
func (c *Client) FeeRateBps(ctx context.Context, tokenID string) (int64, error) {
	body, status, err := c.get(ctx, "/fee-rate-bps?token_id="+tokenID)
	if err != nil {
		return 0, err
	}
	if status != 200 {
		return 0, fmt.Errorf("fee rate: status=%d", status)
	}

	var resp feeRateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("unmarshal fee rate: %w", err)
	}
	bps, err := resp.FeeRateBps.Int64()
	if err != nil {
		return 0, fmt.Errorf("parse fee rate %q: %w", resp.FeeRateBps, err)
	}

	c.metaMu.Lock()
	m := c.metaFor(tokenID)
	m.feeBps = bps
	m.hasFee = true
	c.metaMu.Unlock()

	return bps, nil
}

type negRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

// NegRisk reports whether the token belongs to a negative-risk market, which
// changes the contract orders are signed against.
func (c *Client) NegRisk(ctx context.Context, tokenID string) (bool, error) {
	body, status, err := c.get(ctx, "/neg-risk?token_id="+tokenID)
	if err != nil {
		return false, err
	}
	if status != 200 {
		return false, fmt.Errorf("neg risk: status=%d", status)
	}

	var resp negRiskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("unmarshal neg risk: %w", err)
	}

	c.metaMu.Lock()
	m := c.metaFor(tokenID)
	m.negRisk = resp.NegRisk
	m.hasNeg = true
	c.metaMu.Unlock()

	return resp.NegRisk, nil
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderBookResponse struct {
	Market       string      `json:"market"`
	AssetID      string      `json:"asset_id"`
	Bids         []bookLevel `json:"bids"`
	Asks         []bookLevel `json:"asks"`
	MinOrderSize string      `json:"min_order_size"`
	TickSize     string      `json:"tick_size"`
	NegRisk      bool        `json:"neg_risk"`
}

// OrderBookSummary is the parsed /book response. Only MinOrderSize is
// consumed by the executor; the rest is exposed for diagnostics.
type OrderBookSummary struct {
	Market       string
	TokenID      string
	BidLevels    int
	AskLevels    int
	MinOrderSize decimal.Decimal
}

// OrderBook fetches the book summary for a token. The market's minimum order
// size (in shares) rides along on this response.
func (c *Client) OrderBook(ctx context.Context, tokenID string) (*OrderBookSummary, error) {
	body, status, err := c.get(ctx, "/book?token_id="+tokenID)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("order book: status=%d", status)
	}

	var resp orderBookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal order book: %w", err)
	}

	minSize, err := decimal.NewFromString(resp.MinOrderSize)
	if err != nil {
		return nil, fmt.Errorf("parse min_order_size %q: %w", resp.MinOrderSize, err)
	}

	return &OrderBookSummary{
		Market:       resp.Market,
		TokenID:      resp.AssetID,
		BidLevels:    len(resp.Bids),
		AskLevels:    len(resp.Asks),
		MinOrderSize: minSize,
	}, nil
}

// metaFor returns the cache slot for a token; callers hold metaMu.
func (c *Client) metaFor(tokenID string) *tokenMeta {
	m, ok := c.meta[tokenID]
	if !ok {
		m = &tokenMeta{}
		c.meta[tokenID] = m
	}
	return m
}

// cachedMeta returns a copy of the cached metadata for a token.
func (c *Client) cachedMeta(tokenID string) (tokenMeta, bool) {
	c.metaMu.RLock()
	defer c.metaMu.RUnlock()
	m, ok := c.meta[tokenID]
	if !ok {
		return tokenMeta{}, false
	}
	return *m, true
}
