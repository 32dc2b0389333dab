package events

import "time"

// Event is the envelope that flows through the event bus.
// Every market event (book snapshot, trade, connection status) is wrapped in one.
type Event struct {
	Type      EventType
	TokenID   string
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// CLOB market websocket events
	EventBookUpdate EventType = "book_update"
	EventLastTrade  EventType = "last_trade"
	EventWSStatus   EventType = "ws_status"
)
