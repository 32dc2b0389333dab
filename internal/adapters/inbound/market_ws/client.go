package market_ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/polymarket-exec/internal/events"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

// Client connects to the CLOB market channel and publishes book snapshots
// and last-trade events onto the event bus.
//
// Gorilla/websocket supports one concurrent reader and one concurrent
// writer, so all writes are serialized through mu.
type Client struct {
	url  string
	bus  *events.Bus
	conn *websocket.Conn
	done chan struct{}

	mu     sync.Mutex
	tokens map[string]bool
}

func NewClient(wsURL string, bus *events.Bus) *Client {
	return &Client{
		url:    wsURL,
		bus:    bus,
		done:   make(chan struct{}),
		tokens: make(map[string]bool),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.runLoop(ctx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// SubscribeTokens adds token ids and subscribes on the LIVE connection.
// Safe to call from any goroutine at any time. If the connection is not
// yet established the tokens are stored and subscribed on connect.
func (c *Client) SubscribeTokens(tokenIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []string
	for _, t := range tokenIDs {
		if !c.tokens[t] {
			c.tokens[t] = true
			added = append(added, t)
		}
	}

	if len(added) == 0 || c.conn == nil {
		return nil
	}

	return c.sendSubscribe(added)
}

// runLoop reads messages and reconnects on failure with exponential backoff.
func (c *Client) runLoop(ctx context.Context) {
	defer close(c.done)

	first := true
	for {
		if first {
			telemetry.Infof("[Polymarket] WS connected to %s", c.url)
			first = false
		} else {
			telemetry.Infof("Polymarket WS reconnected")
			telemetry.Metrics.WSReconnects.Inc()
		}

		c.resubscribeAll()
		c.publishWSStatus(true)
		c.readLoop(ctx)
		c.publishWSStatus(false)

		select {
		case <-ctx.Done():
			return
		default:
		}

		backoff := 1 * time.Second
		const maxBackoff = 30 * time.Second
		for attempt := 1; ; attempt++ {
			telemetry.Warnf("Polymarket WS reconnecting (attempt %d) in %s", attempt, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := c.dial(ctx); err != nil {
				telemetry.Warnf("Polymarket WS dial failed: %v", err)
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			break
		}
	}
}

// resubscribeAll sends a subscribe for every known token.
// Called after each successful connection/reconnection.
func (c *Client) resubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tokens) == 0 {
		return
	}

	all := make([]string, 0, len(c.tokens))
	for t := range c.tokens {
		all = append(all, t)
	}

	if err := c.sendSubscribe(all); err != nil {
		telemetry.Warnf("Polymarket WS resubscribe failed: %v", err)
	}
}

// sendSubscribe writes a subscribe command. Caller must hold mu.
func (c *Client) sendSubscribe(tokenIDs []string) error {
	cmd := subscribeCmd{
		AssetIDs:  tokenIDs,
		Type:      "market",
		Operation: "subscribe",
	}
	telemetry.Debugf("market_ws: subscribing to %d tokens", len(tokenIDs))
	return c.conn.WriteJSON(cmd)
}

type subscribeCmd struct {
	AssetIDs  []string `json:"assets_ids"`
	Type      string   `json:"type"`
	Operation string   `json:"operation"`
}

func (c *Client) publishWSStatus(connected bool) {
	c.bus.Publish(events.Event{
		Type:      events.EventWSStatus,
		Timestamp: time.Now(),
		Payload:   events.WSStatus{Connected: connected},
	})
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	defer conn.Close()

	// The server pings every 10s; 30s gives 3 missed pings before timeout.
	const pingWait = 30 * time.Second

	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			telemetry.Warnf("Polymarket WS read error: %v", err)
			return
		}

		conn.SetReadDeadline(time.Now().Add(pingWait))
		telemetry.Metrics.WSMessages.Inc()
		for _, evt := range ParseMessage(msg) {
			c.bus.Publish(evt)
		}
	}
}
