package market_ws

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/charleschow/polymarket-exec/internal/events"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// The market channel sends either a JSON array of book snapshots (on
// subscribe) or a single object tagged with event_type. Incremental
// price_change messages are ignored; full books arrive as "book" events.

type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wsBook struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Bids      []wsLevel `json:"bids"`
	Asks      []wsLevel `json:"asks"`
}

type wsTrade struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
}

// ParseMessage converts a raw WebSocket frame into domain events.
func ParseMessage(data []byte) []events.Event {
	if len(data) == 0 {
		return nil
	}

	// Initial snapshot: array of books.
	if data[0] == '[' {
		var books []wsBook
		if err := json.Unmarshal(data, &books); err != nil {
			telemetry.Metrics.WSParseErrors.Inc()
			telemetry.Warnf("market_ws: parse snapshot error: %v", err)
			return nil
		}
		var evts []events.Event
		for _, b := range books {
			if evt, ok := bookEvent(b); ok {
				evts = append(evts, evt)
			}
		}
		return evts
	}

	var tag struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		telemetry.Metrics.WSParseErrors.Inc()
		telemetry.Warnf("market_ws: parse error: %v", err)
		return nil
	}

	switch tag.EventType {
	case "book":
		var b wsBook
		if err := json.Unmarshal(data, &b); err != nil {
			telemetry.Metrics.WSParseErrors.Inc()
			return nil
		}
		if evt, ok := bookEvent(b); ok {
			return []events.Event{evt}
		}
		return nil
	case "last_trade_price", "trade":
		return parseTrade(data)
	default:
		// price_change and channel acks
		return nil
	}
}

func bookEvent(b wsBook) (events.Event, bool) {
	if b.AssetID == "" {
		return events.Event{}, false
	}

	update := events.BookUpdate{
		TokenID: b.AssetID,
		Market:  b.Market,
	}
	for _, l := range b.Bids {
		if lvl, ok := parseLevel(l); ok {
			update.Bids = append(update.Bids, lvl)
		}
	}
	for _, l := range b.Asks {
		if lvl, ok := parseLevel(l); ok {
			update.Asks = append(update.Asks, lvl)
		}
	}

	return events.Event{
		Type:      events.EventBookUpdate,
		TokenID:   b.AssetID,
		Timestamp: time.Now(),
		Payload:   update,
	}, true
}

func parseTrade(data []byte) []events.Event {
	var t wsTrade
	if err := json.Unmarshal(data, &t); err != nil {
		telemetry.Metrics.WSParseErrors.Inc()
		return nil
	}
	if t.AssetID == "" {
		return nil
	}

	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return nil
	}
	size, err := strconv.ParseFloat(t.Size, 64)
	if err != nil {
		return nil
	}

	return []events.Event{{
		Type:      events.EventLastTrade,
		TokenID:   t.AssetID,
		Timestamp: time.Now(),
		Payload: events.LastTrade{
			TokenID: t.AssetID,
			Price:   price,
			Size:    size,
			IsBuy:   t.Side == "BUY",
		},
	}}
}

func parseLevel(l wsLevel) (events.PriceLevel, bool) {
	price, err := strconv.ParseFloat(l.Price, 64)
	if err != nil || price <= 0 {
		return events.PriceLevel{}, false
	}
	size, err := strconv.ParseFloat(l.Size, 64)
	if err != nil || size <= 0 {
		return events.PriceLevel{}, false
	}
	return events.PriceLevel{Price: price, Size: size}, true
}
