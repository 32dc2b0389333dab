package clob_http

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// Asset types for balance queries.
const (
	AssetCollateral  = "COLLATERAL"  // USDC
	AssetConditional = "CONDITIONAL" // outcome shares for one token
)

type balanceResponse struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// Balance is a normalized balance/allowance pair in whole units
// (dollars or shares), converted from the API's 6-decimal integer encoding.
type Balance struct {
	Balance   decimal.Decimal
	Allowance decimal.Decimal
}

// BalanceAllowance queries the funder's balance. For AssetConditional a
// tokenID is required; for AssetCollateral it is ignored.
func (c *Client) BalanceAllowance(ctx context.Context, assetType, tokenID string) (*Balance, error) {
	path := "/balance-allowance?asset_type=" + assetType + "&signature_type=1"
	if assetType == AssetConditional {
		if tokenID == "" {
			return nil, fmt.Errorf("conditional balance requires token id")
		}
		path += "&token_id=" + tokenID
	}

	body, status, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("balance allowance: status=%d", status)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal balance: %w", err)
	}

	balance, err := parseBaseUnits(resp.Balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", resp.Balance, err)
	}
	allowance, err := parseBaseUnits(resp.Allowance)
	if err != nil {
		return nil, fmt.Errorf("parse allowance %q: %w", resp.Allowance, err)
	}

	telemetry.Metrics.BalanceQueries.Inc()
	return &Balance{Balance: balance, Allowance: allowance}, nil
}

// parseBaseUnits converts the API's 6-decimal integer string ("4500000")
// into whole units (4.5).
func parseBaseUnits(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-6), nil
}
