package events

// PriceLevel is a single price+size entry in an order book side.
// Prices and sizes arrive as decimal strings; they are kept as float64 here
// because the feed is display/strategy input, never order-sizing input.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// BookUpdate is a full snapshot of one token's order book, published when the
// market channel sends a "book" event (or the initial snapshot array).
type BookUpdate struct {
	TokenID string       `json:"asset_id"`
	Market  string       `json:"market"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
}

// BestBid returns the highest bid, or 0 when the book side is empty.
func (b BookUpdate) BestBid() float64 {
	best := 0.0
	for _, l := range b.Bids {
		if l.Price > best {
			best = l.Price
		}
	}
	return best
}

// BestAsk returns the lowest ask, or 0 when the book side is empty.
func (b BookUpdate) BestAsk() float64 {
	best := 0.0
	for _, l := range b.Asks {
		if best == 0 || l.Price < best {
			best = l.Price
		}
	}
	return best
}

// LastTrade is published on "last_trade_price" events from the market channel.
type LastTrade struct {
	TokenID string
	Price   float64
	Size    float64
	IsBuy   bool
}

// WSStatus reports market websocket connectivity transitions.
type WSStatus struct {
	Connected bool
}
