package execution

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/polymarket-exec/internal/adapters/outbound/clob_http"
)

// A real YES token id from production, 77 digits.
const testToken = "71321045679252212594626385532706912750332728571942532289631379312455583992563"

type mockClient struct {
	okErr   error
	okCalls int

	tickErr error
	feeErr  error
	negErr  error

	book    *clob_http.OrderBookSummary
	bookErr error

	postFn   func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error)
	lastArgs clob_http.OrderArgs

	cancelErr    error
	cancelAllErr error

	balance    *clob_http.Balance
	balanceErr error
}

func (m *mockClient) Ok(ctx context.Context) error {
	m.okCalls++
	return m.okErr
}

func (m *mockClient) TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.01"), m.tickErr
}

func (m *mockClient) FeeRateBps(ctx context.Context, tokenID string) (int64, error) {
	return 0, m.feeErr
}

func (m *mockClient) NegRisk(ctx context.Context, tokenID string) (bool, error) {
	return false, m.negErr
}

func (m *mockClient) OrderBook(ctx context.Context, tokenID string) (*clob_http.OrderBookSummary, error) {
	if m.bookErr != nil {
		return nil, m.bookErr
	}
	if m.book != nil {
		return m.book, nil
	}
	return &clob_http.OrderBookSummary{TokenID: tokenID, MinOrderSize: decimal.NewFromInt(5)}, nil
}

func (m *mockClient) PostOrder(ctx context.Context, args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
	m.lastArgs = args
	if m.postFn != nil {
		return m.postFn(args)
	}
	return &clob_http.OrderResponse{Success: true, OrderID: "0xabc"}, nil
}

func (m *mockClient) CancelOrder(ctx context.Context, orderID string) error { return m.cancelErr }
func (m *mockClient) CancelAllOrders(ctx context.Context) error             { return m.cancelAllErr }

func (m *mockClient) BalanceAllowance(ctx context.Context, assetType, tokenID string) (*clob_http.Balance, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return m.balance, nil
}

func newTestSession(c Client) *Session {
	return NewSession(c, 10*time.Second, decimal.NewFromInt(1), nil)
}

func TestWarmup(t *testing.T) {
	mock := &mockClient{}
	s := newTestSession(mock)

	assert.Equal(t, CodeOK, s.Warmup(context.Background()))
	assert.Equal(t, 3, mock.okCalls)

	mock.okErr = errors.New("401 unauthorized")
	assert.Equal(t, CodeAuthFailed, s.Warmup(context.Background()))
}

func TestPrefetch(t *testing.T) {
	mock := &mockClient{book: &clob_http.OrderBookSummary{
		TokenID:      testToken,
		MinOrderSize: decimal.NewFromInt(15),
	}}
	s := newTestSession(mock)

	require.Equal(t, CodeOK, s.Prefetch(context.Background(), testToken))

	min, ok := s.cachedMinSize(testToken)
	require.True(t, ok)
	assert.True(t, min.Equal(decimal.NewFromInt(15)))
}

func TestPrefetchInvalidToken(t *testing.T) {
	s := newTestSession(&mockClient{})

	assert.Equal(t, CodeInvalidToken, s.Prefetch(context.Background(), ""))
	assert.Equal(t, CodeInvalidToken, s.Prefetch(context.Background(), "not-a-number"))
	assert.Equal(t, CodeInvalidToken, s.Prefetch(context.Background(), "-5"))
}

func TestPrefetchFailure(t *testing.T) {
	mock := &mockClient{bookErr: errors.New("503")}
	s := newTestSession(mock)

	assert.Equal(t, CodeOrderFailed, s.Prefetch(context.Background(), testToken))

	_, ok := s.cachedMinSize(testToken)
	assert.False(t, ok)
}

func TestMarketBuyFeeDeduction(t *testing.T) {
	// 100 shares filled for 50 USDC: avg price 0.50.
	// fee = 100 * 0.25 * (0.5*0.5)^2 = 1.5625 shares, net 98.4375.
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{
			Success:      true,
			OrderID:      "0xdeadbeef",
			TakingAmount: decimal.NewFromInt(100),
			MakingAmount: decimal.NewFromInt(50),
		}, nil
	}}
	s := newTestSession(mock)

	res := s.MarketBuy(context.Background(), testToken, 50.0)
	require.Equal(t, CodeOK, res.ErrorCode)
	assert.True(t, res.Success)
	assert.Equal(t, int64(98_437_500), res.FilledQtyRaw)
	assert.Equal(t, int64(500_000), res.AvgPriceRaw)
	assert.Equal(t, "0xdeadbeef", res.OrderIDString())
}

func TestMarketBuyOrderShape(t *testing.T) {
	mock := &mockClient{}
	s := newTestSession(mock)

	res := s.MarketBuy(context.Background(), testToken, 25.1234567)
	require.Equal(t, CodeOK, res.ErrorCode)

	assert.Equal(t, "BUY", mock.lastArgs.Side)
	assert.Equal(t, clob_http.OrderTypeFAK, mock.lastArgs.OrderType)
	assert.Equal(t, "0.99", mock.lastArgs.Price.String())
	// Spend floored to USDC precision.
	assert.Equal(t, "25.123456", mock.lastArgs.SpendUSDC.String())
}

func TestMarketBuyZeroFill(t *testing.T) {
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{Success: true}, nil
	}}
	s := newTestSession(mock)

	res := s.MarketBuy(context.Background(), testToken, 10)
	require.Equal(t, CodeOK, res.ErrorCode)
	assert.Zero(t, res.FilledQtyRaw)
	assert.Zero(t, res.AvgPriceRaw)
}

func TestMarketBuyValidation(t *testing.T) {
	s := newTestSession(&mockClient{})

	assert.Equal(t, CodeInvalidToken, s.MarketBuy(context.Background(), "bogus", 10).ErrorCode)
	assert.Equal(t, CodeOrderFailed, s.MarketBuy(context.Background(), testToken, 0).ErrorCode)
	assert.Equal(t, CodeOrderFailed, s.MarketBuy(context.Background(), testToken, -3).ErrorCode)
}

func TestMarketBuyClientError(t *testing.T) {
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return nil, errors.New("order rejected")
	}}
	s := newTestSession(mock)

	res := s.MarketBuy(context.Background(), testToken, 10)
	assert.Equal(t, CodeOrderFailed, res.ErrorCode)
	assert.False(t, res.Success)
}

func TestMarketSell(t *testing.T) {
	// Sold 40 shares for 18 USDC: avg 0.45, no fee adjustment.
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{
			Success:      true,
			OrderID:      "0xsell",
			MakingAmount: decimal.NewFromInt(40),
			TakingAmount: decimal.NewFromInt(18),
		}, nil
	}}
	s := newTestSession(mock)

	res := s.MarketSell(context.Background(), testToken, 40.0)
	require.Equal(t, CodeOK, res.ErrorCode)
	assert.Equal(t, int64(40_000_000), res.FilledQtyRaw)
	assert.Equal(t, int64(450_000), res.AvgPriceRaw)

	assert.Equal(t, "SELL", mock.lastArgs.Side)
	assert.Equal(t, clob_http.OrderTypeFAK, mock.lastArgs.OrderType)
	assert.Equal(t, "0.01", mock.lastArgs.Price.String())
}

func TestMarketSellFloorsSize(t *testing.T) {
	mock := &mockClient{}
	s := newTestSession(mock)

	res := s.MarketSell(context.Background(), testToken, 12.349)
	require.Equal(t, CodeOK, res.ErrorCode)
	assert.Equal(t, "12.34", mock.lastArgs.Shares.String())
}

func TestMarketSellZeroFill(t *testing.T) {
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{Success: true}, nil
	}}
	s := newTestSession(mock)

	res := s.MarketSell(context.Background(), testToken, 10)
	require.Equal(t, CodeOK, res.ErrorCode)
	assert.Zero(t, res.AvgPriceRaw)
}

func TestLimitBuy(t *testing.T) {
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{Success: true, OrderID: "0xrest"}, nil
	}}
	s := newTestSession(mock)

	res := s.LimitBuy(context.Background(), testToken, 0.37, 10.0)
	require.Equal(t, CodeOK, res.ErrorCode)

	// ceil(10 / 0.37, 2dp) = 27.03 shares
	assert.Equal(t, "27.03", mock.lastArgs.Shares.String())
	assert.Equal(t, clob_http.OrderTypeGTC, mock.lastArgs.OrderType)
	// Resting order: reported price is the requested price.
	assert.Equal(t, int64(370_000), res.AvgPriceRaw)
	assert.Equal(t, "0xrest", res.OrderIDString())
}

func TestLimitBuyBelowMinOrder(t *testing.T) {
	s := newTestSession(&mockClient{})

	res := s.LimitBuy(context.Background(), testToken, 0.5, 0.99)
	assert.Equal(t, CodeMinOrderSize, res.ErrorCode)
}

func TestLimitBuyBelowMinShares(t *testing.T) {
	s := NewSession(&mockClient{}, 10*time.Second, decimal.NewFromInt(1),
		map[string]decimal.Decimal{testToken: decimal.NewFromInt(50)})

	// 10 / 0.37 = 27.03 shares, below the market minimum of 50.
	res := s.LimitBuy(context.Background(), testToken, 0.37, 10.0)
	assert.Equal(t, CodeMinShares, res.ErrorCode)
}

func TestLimitBuyNoCachedMinimum(t *testing.T) {
	// Unknown market minimum: the order goes through.
	s := newTestSession(&mockClient{})

	res := s.LimitBuy(context.Background(), testToken, 0.37, 10.0)
	assert.Equal(t, CodeOK, res.ErrorCode)
}

func TestLimitBuyPriceBounds(t *testing.T) {
	s := newTestSession(&mockClient{})

	for _, p := range []float64{0, 1, 1.5, -0.2} {
		res := s.LimitBuy(context.Background(), testToken, p, 10.0)
		assert.Equal(t, CodeOrderFailed, res.ErrorCode, "price %v", p)
	}
}

func TestLimitSell(t *testing.T) {
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{
			Success:      true,
			OrderID:      "0xls",
			MakingAmount: decimal.RequireFromString("12.34"),
		}, nil
	}}
	s := newTestSession(mock)

	res := s.LimitSell(context.Background(), testToken, 0.62, 12.349)
	require.Equal(t, CodeOK, res.ErrorCode)
	assert.Equal(t, "12.34", mock.lastArgs.Shares.String())
	assert.Equal(t, clob_http.OrderTypeGTC, mock.lastArgs.OrderType)
	assert.Equal(t, int64(12_340_000), res.FilledQtyRaw)
	assert.Equal(t, int64(620_000), res.AvgPriceRaw)
}

func TestCancel(t *testing.T) {
	mock := &mockClient{}
	s := newTestSession(mock)

	assert.Equal(t, CodeOK, s.Cancel(context.Background(), "0xorder"))
	assert.Equal(t, CodeCancelFailed, s.Cancel(context.Background(), ""))

	mock.cancelErr = errors.New("not found")
	assert.Equal(t, CodeCancelFailed, s.Cancel(context.Background(), "0xorder"))
}

func TestCancelAll(t *testing.T) {
	mock := &mockClient{}
	s := newTestSession(mock)

	assert.Equal(t, CodeOK, s.CancelAll(context.Background()))

	mock.cancelAllErr = errors.New("boom")
	assert.Equal(t, CodeCancelFailed, s.CancelAll(context.Background()))
}

func TestBalance(t *testing.T) {
	mock := &mockClient{balance: &clob_http.Balance{
		Balance: decimal.RequireFromString("123.456789"),
	}}
	s := newTestSession(mock)

	assert.Equal(t, int64(123_456_789), s.Balance(context.Background()))

	mock.balanceErr = errors.New("timeout")
	assert.Equal(t, int64(-1), s.Balance(context.Background()))
}

func TestTokenBalance(t *testing.T) {
	mock := &mockClient{balance: &clob_http.Balance{
		Balance: decimal.RequireFromString("42.5"),
	}}
	s := newTestSession(mock)

	assert.Equal(t, int64(42_500_000), s.TokenBalance(context.Background(), testToken))
	assert.Equal(t, int64(-1), s.TokenBalance(context.Background(), "junk"))

	mock.balanceErr = errors.New("timeout")
	assert.Equal(t, int64(-1), s.TokenBalance(context.Background(), testToken))
}

func TestOrderTimeoutLatency(t *testing.T) {
	mock := &mockClient{postFn: nil}
	mock.postFn = func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		time.Sleep(80 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}
	s := NewSession(mock, 50*time.Millisecond, decimal.NewFromInt(1), nil)

	start := time.Now()
	res := s.MarketBuy(context.Background(), testToken, 10)
	elapsed := time.Since(start)

	assert.Equal(t, CodeOrderFailed, res.ErrorCode)
	assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(50))
	assert.GreaterOrEqual(t, res.LatencyMs, uint64(50))
}

func TestOrderIDTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	mock := &mockClient{postFn: func(args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
		return &clob_http.OrderResponse{Success: true, OrderID: long}, nil
	}}
	s := newTestSession(mock)

	res := s.MarketBuy(context.Background(), testToken, 10)
	require.Equal(t, CodeOK, res.ErrorCode)

	got := res.OrderIDString()
	assert.Len(t, got, OrderIDSize-1)
	assert.Equal(t, long[:OrderIDSize-1], got)
	assert.EqualValues(t, 0, res.OrderID[OrderIDSize-1])
}

func TestTakerFeeShares(t *testing.T) {
	fee := takerFeeShares(decimal.NewFromInt(100), decimal.RequireFromString("0.5"))
	assert.Equal(t, "1.5625", fee.String())

	// Fee vanishes at the price extremes.
	assert.True(t, takerFeeShares(decimal.NewFromInt(100), decimal.Zero).IsZero())
	assert.True(t, takerFeeShares(decimal.NewFromInt(100), one).IsZero())
}
