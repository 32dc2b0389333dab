package execution

// Code is the closed set of bridge error codes. The integer values are part
// of the host-facing contract and never change.
type Code int32

const (
	CodeOK             Code = 0
	CodeNotInitialized Code = -1
	CodeInvalidPK      Code = -2
	CodeAuthFailed     Code = -3
	CodeInvalidToken   Code = -4
	CodeOrderFailed    Code = -5
	CodeCancelFailed   Code = -6
	CodeMinOrderSize   Code = -7 // order below $1 minimum
	CodeMinShares      Code = -8 // shares below market minimum
)

// Message returns a human-readable description of a code.
func (c Code) Message() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotInitialized:
		return "Executor not initialized"
	case CodeInvalidPK:
		return "Invalid private key"
	case CodeAuthFailed:
		return "Authentication failed"
	case CodeInvalidToken:
		return "Invalid token ID"
	case CodeOrderFailed:
		return "Order failed (check API response)"
	case CodeCancelFailed:
		return "Cancel failed"
	case CodeMinOrderSize:
		return "Order size below minimum ($1)"
	case CodeMinShares:
		return "Shares below market minimum (call prefetch first)"
	default:
		return "Unknown error"
	}
}

// OrderIDSize is the fixed order-id field width: 127 bytes plus terminator.
const OrderIDSize = 128

// OrderResult is the fixed-layout record returned to the host by value.
// Monetary fields are raw units (6 decimals); OrderID is null-terminated and
// truncated beyond 127 bytes.
type OrderResult struct {
	Success      bool
	FilledQtyRaw int64
	AvgPriceRaw  int64
	LatencyMs    uint64
	ErrorCode    Code
	OrderID      [OrderIDSize]byte
}

func resultWithError(code Code) OrderResult {
	return OrderResult{ErrorCode: code}
}

func failedAfter(code Code, latencyMs uint64) OrderResult {
	return OrderResult{ErrorCode: code, LatencyMs: latencyMs}
}

func (r *OrderResult) setOrderID(id string) {
	b := []byte(id)
	n := len(b)
	if n > OrderIDSize-1 {
		n = OrderIDSize - 1
	}
	copy(r.OrderID[:n], b[:n])
	r.OrderID[n] = 0
}

// OrderIDString returns the order id up to the first null byte.
func (r *OrderResult) OrderIDString() string {
	for i, b := range r.OrderID {
		if b == 0 {
			return string(r.OrderID[:i])
		}
	}
	return string(r.OrderID[:OrderIDSize-1])
}
