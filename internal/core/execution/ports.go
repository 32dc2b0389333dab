package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/charleschow/polymarket-exec/internal/adapters/outbound/clob_http"
)

// Client abstracts the exchange client. Satisfied by *clob_http.Client;
// tests substitute a mock.
type Client interface {
	Ok(ctx context.Context) error
	TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error)
	FeeRateBps(ctx context.Context, tokenID string) (int64, error)
	NegRisk(ctx context.Context, tokenID string) (bool, error)
	OrderBook(ctx context.Context, tokenID string) (*clob_http.OrderBookSummary, error)
	PostOrder(ctx context.Context, args clob_http.OrderArgs) (*clob_http.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context) error
	BalanceAllowance(ctx context.Context, assetType, tokenID string) (*clob_http.Balance, error)
}

var _ Client = (*clob_http.Client)(nil)
