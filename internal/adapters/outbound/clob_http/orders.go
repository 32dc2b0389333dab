package clob_http

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/charleschow/polymarket-exec/internal/adapters/polymarket_auth"
	"github.com/charleschow/polymarket-exec/internal/fixedpoint"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// Order types accepted by the CLOB.
const (
	OrderTypeFAK = "FAK" // fill whatever is available, cancel the rest
	OrderTypeGTC = "GTC" // rest in the book until filled or cancelled
)

// OrderArgs describes one order to build, sign, and submit. Exactly one of
// SpendUSDC (buy by currency) or Shares (buy/sell by share count) is set;
// both are already rounded to exchange precision by the caller.
type OrderArgs struct {
	TokenID   string
	Side      string // "BUY" or "SELL"
	OrderType string // OrderTypeFAK or OrderTypeGTC
	Price     decimal.Decimal
	SpendUSDC decimal.Decimal
	Shares    decimal.Decimal
}

type orderPayload struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type postOrderRequest struct {
	Order     orderPayload `json:"order"`
	Owner     string       `json:"owner"`
	OrderType string       `json:"orderType"`
}

type postOrderResponse struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
}

// OrderResponse is the decoded submission result. For a BUY, TakingAmount is
// shares received and MakingAmount is USDC paid; for a SELL the roles swap.
type OrderResponse struct {
	Success      bool
	OrderID      string
	Status       string
	TakingAmount decimal.Decimal
	MakingAmount decimal.Decimal
}

// PostOrder builds the EIP-712 order, signs it, and submits it. The token's
// neg-risk flag decides which exchange contract the signature binds to; it is
// read from the prefetch-warmed cache when available and fetched otherwise.
func (c *Client) PostOrder(ctx context.Context, args OrderArgs) (*OrderResponse, error) {
	negRisk, err := c.resolveNegRisk(ctx, args.TokenID)
	if err != nil {
		return nil, fmt.Errorf("resolve neg risk: %w", err)
	}

	order, err := c.buildOrder(args)
	if err != nil {
		return nil, err
	}

	contract := polymarket_auth.ExchangeAddress
	if negRisk {
		contract = polymarket_auth.NegRiskExchangeAddress
	}

	sig, err := c.signer.SignOrder(order, contract)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	req := postOrderRequest{
		Order: orderPayload{
			Salt:          order.Salt.Int64(),
			Maker:         order.Maker.Hex(),
			Signer:        order.Signer.Hex(),
			Taker:         order.Taker.Hex(),
			TokenID:       order.TokenID.String(),
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Expiration:    order.Expiration.String(),
			Nonce:         order.Nonce.String(),
			FeeRateBps:    order.FeeRateBps.String(),
			Side:          args.Side,
			SignatureType: int(order.SignatureType),
			Signature:     "0x" + common.Bytes2Hex(sig),
		},
		Owner:     c.getCreds().Key,
		OrderType: args.OrderType,
	}

	body, status, err := c.post(ctx, "/order", req)
	if err != nil {
		telemetry.Metrics.OrderErrors.Inc()
		return nil, err
	}

	var resp postOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		telemetry.Metrics.OrderErrors.Inc()
		return nil, fmt.Errorf("unmarshal order response: %w", err)
	}
	if status < 200 || status >= 300 || !resp.Success {
		telemetry.Metrics.OrderErrors.Inc()
		return nil, fmt.Errorf("order rejected: status=%d error=%q", status, resp.ErrorMsg)
	}

	taking, err := parseAmount(resp.TakingAmount)
	if err != nil {
		return nil, fmt.Errorf("parse takingAmount: %w", err)
	}
	making, err := parseAmount(resp.MakingAmount)
	if err != nil {
		return nil, fmt.Errorf("parse makingAmount: %w", err)
	}

	telemetry.Metrics.OrdersSent.Inc()
	telemetry.Infof("clob_http: order placed token=%s side=%s type=%s status=%s -> %s",
		args.TokenID, args.Side, args.OrderType, resp.Status, resp.OrderID)

	return &OrderResponse{
		Success:      resp.Success,
		OrderID:      resp.OrderID,
		Status:       resp.Status,
		TakingAmount: taking,
		MakingAmount: making,
	}, nil
}

// buildOrder derives maker/taker amounts from the order arguments.
// BUY: maker gives USDC, takes shares. SELL: maker gives shares, takes USDC.
func (c *Client) buildOrder(args OrderArgs) (*polymarket_auth.Order, error) {
	if args.Price.Sign() <= 0 {
		return nil, fmt.Errorf("invalid price %s", args.Price)
	}

	var makerDec, takerDec decimal.Decimal
	switch {
	case args.Side == "BUY" && !args.SpendUSDC.IsZero():
		makerDec = args.SpendUSDC
		takerDec = args.SpendUSDC.DivRound(args.Price, 8).RoundDown(2)
	case args.Side == "BUY":
		takerDec = args.Shares
		makerDec = args.Shares.Mul(args.Price)
	case args.Side == "SELL":
		makerDec = args.Shares
		takerDec = args.Shares.Mul(args.Price)
	default:
		return nil, fmt.Errorf("invalid side %q", args.Side)
	}

	if makerDec.Sign() <= 0 || takerDec.Sign() <= 0 {
		return nil, fmt.Errorf("zero-size order: maker=%s taker=%s", makerDec, takerDec)
	}

	tokenID, ok := new(big.Int).SetString(args.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token id %q", args.TokenID)
	}

	salt, err := newSalt()
	if err != nil {
		return nil, err
	}

	side := polymarket_auth.SideBuy
	if args.Side == "SELL" {
		side = polymarket_auth.SideSell
	}

	return &polymarket_auth.Order{
		Salt:          salt,
		Maker:         c.signer.Funder(),
		Signer:        c.signer.Address(),
		Taker:         common.Address{},
		TokenID:       tokenID,
		MakerAmount:   big.NewInt(fixedpoint.ToRaw(makerDec)),
		TakerAmount:   big.NewInt(fixedpoint.ToRaw(takerDec)),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          side,
		SignatureType: polymarket_auth.SignatureTypeProxy,
	}, nil
}

func (c *Client) resolveNegRisk(ctx context.Context, tokenID string) (bool, error) {
	if m, ok := c.cachedMeta(tokenID); ok && m.hasNeg {
		return m.negRisk, nil
	}
	return c.NegRisk(ctx, tokenID)
}

type cancelRequest struct {
	OrderID string `json:"orderID"`
}

// CancelOrder cancels a single resting order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body, status, err := c.delete(ctx, "/order", cancelRequest{OrderID: orderID})
	if err != nil {
		telemetry.Metrics.CancelErrors.Inc()
		return err
	}
	if status < 200 || status >= 300 {
		telemetry.Metrics.CancelErrors.Inc()
		return fmt.Errorf("cancel failed: status=%d body=%s", status, string(body))
	}
	telemetry.Metrics.CancelsSent.Inc()
	return nil
}

// CancelAllOrders cancels every resting order for the authenticated maker.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	body, status, err := c.delete(ctx, "/cancel-all", nil)
	if err != nil {
		telemetry.Metrics.CancelErrors.Inc()
		return err
	}
	if status < 200 || status >= 300 {
		telemetry.Metrics.CancelErrors.Inc()
		return fmt.Errorf("cancel all failed: status=%d body=%s", status, string(body))
	}
	telemetry.Metrics.CancelsSent.Inc()
	return nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// newSalt draws a positive random int63 for order uniqueness.
func newSalt() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 62)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return n, nil
}
