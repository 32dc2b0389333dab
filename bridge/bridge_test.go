package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/polymarket-exec/internal/adapters/outbound/clob_http"
	"github.com/charleschow/polymarket-exec/internal/core/execution"
)

// Hardhat's first well-known dev key. Never funded on mainnet.
const (
	testPK     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testFunder = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testToken  = "71321045679252212594626385532706912750332728571942532289631379312455583992563"
)

type stubClient struct {
	balance decimal.Decimal
}

func (s *stubClient) Ok(ctx context.Context) error { return nil }
func (s *stubClient) TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.01"), nil
}
func (s *stubClient) FeeRateBps(ctx context.Context, tokenID string) (int64, error) { return 0, nil }
func (s *stubClient) NegRisk(ctx context.Context, tokenID string) (bool, error)     { return false, nil }
func (s *stubClient) OrderBook(ctx context.Context, tokenID string) (*clob_http.OrderBookSummary, error) {
	return &clob_http.OrderBookSummary{TokenID: tokenID, MinOrderSize: decimal.NewFromInt(5)}, nil
}
func (s *stubClient) PostOrder(ctx context.Context, args clob_http.OrderArgs) (*clob_http.OrderResponse, error) {
	return &clob_http.OrderResponse{Success: true, OrderID: "0xstub"}, nil
}
func (s *stubClient) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (s *stubClient) CancelAllOrders(ctx context.Context) error             { return nil }
func (s *stubClient) BalanceAllowance(ctx context.Context, assetType, tokenID string) (*clob_http.Balance, error) {
	return &clob_http.Balance{Balance: s.balance}, nil
}

func installStub(t *testing.T) {
	t.Helper()
	Shutdown()
	session := execution.NewSession(&stubClient{balance: decimal.NewFromInt(100)},
		10*time.Second, decimal.NewFromInt(1), nil)
	require.True(t, execution.Install(session))
	t.Cleanup(Shutdown)
}

func TestCallsBeforeInit(t *testing.T) {
	Shutdown()

	assert.False(t, IsInitialized())
	assert.Equal(t, NotInitialized, Warmup())
	assert.Equal(t, NotInitialized, Prefetch(testToken))
	assert.Equal(t, NotInitialized, MarketBuy(testToken, 10).ErrorCode)
	assert.Equal(t, NotInitialized, MarketSell(testToken, 10).ErrorCode)
	assert.Equal(t, NotInitialized, LimitBuy(testToken, 0.5, 10).ErrorCode)
	assert.Equal(t, NotInitialized, LimitSell(testToken, 0.5, 10).ErrorCode)
	assert.Equal(t, NotInitialized, Cancel("0xorder"))
	assert.Equal(t, NotInitialized, CancelAll())
	assert.Equal(t, int64(-1), GetBalance())
	assert.Equal(t, int64(-1), GetTokenBalance(testToken))
}

func TestInitInvalidKey(t *testing.T) {
	Shutdown()

	assert.Equal(t, InvalidPK, Init("not-hex", testFunder))
	assert.Equal(t, InvalidPK, Init("0x1234", testFunder))
	assert.False(t, IsInitialized())
}

func TestInitInvalidFunder(t *testing.T) {
	Shutdown()

	assert.Equal(t, AuthFailed, Init(testPK, "not-an-address"))
	assert.False(t, IsInitialized())
}

func TestInitRoundTrip(t *testing.T) {
	Shutdown()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/derive-api-key" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"apiKey":"k","secret":"c2VjcmV0","passphrase":"p"}`))
	}))
	defer srv.Close()

	t.Setenv("CLOB_BASE_URL", srv.URL)
	t.Setenv("TRADE_LIMITS_PATH", "does-not-exist.yaml")

	require.Equal(t, OK, Init(testPK, testFunder))
	assert.True(t, IsInitialized())

	// Init while active is a no-op.
	assert.Equal(t, OK, Init(testPK, testFunder))

	Shutdown()
	assert.False(t, IsInitialized())
	Shutdown() // idempotent

	// Re-init after shutdown fully re-establishes.
	require.Equal(t, OK, Init(testPK, testFunder))
	assert.True(t, IsInitialized())
	Shutdown()
}

func TestCallsPassThrough(t *testing.T) {
	installStub(t)

	assert.Equal(t, OK, Warmup())
	assert.Equal(t, OK, Prefetch(testToken))

	res := MarketBuy(testToken, 10)
	assert.Equal(t, OK, res.ErrorCode)
	assert.Equal(t, "0xstub", res.OrderIDString())

	assert.Equal(t, OK, Cancel("0xstub"))
	assert.Equal(t, OK, CancelAll())
	assert.Equal(t, int64(100_000_000), GetBalance())
	assert.Equal(t, int64(100_000_000), GetTokenBalance(testToken))
}

func TestInvalidTokenShortCircuits(t *testing.T) {
	installStub(t)

	// Validation happens before any network call.
	assert.Equal(t, InvalidToken, Prefetch("nope"))
	assert.Equal(t, InvalidToken, MarketBuy("nope", 10).ErrorCode)
	assert.Equal(t, int64(-1), GetTokenBalance("nope"))
}
