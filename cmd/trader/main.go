package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charleschow/polymarket-exec/bridge"
	"github.com/charleschow/polymarket-exec/internal/adapters/inbound/market_ws"
	"github.com/charleschow/polymarket-exec/internal/config"
	"github.com/charleschow/polymarket-exec/internal/events"
	"github.com/charleschow/polymarket-exec/internal/telemetry"
)

func main() {
	tokensFlag := flag.String("tokens", "", "comma-separated token ids to prefetch and watch")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting trader process")

	if code := bridge.Init(cfg.PrivateKey, cfg.FunderAddress); code != bridge.OK {
		telemetry.Errorf("Init failed: %s", code.Message())
		os.Exit(1)
	}

	if code := bridge.Warmup(); code != bridge.OK {
		telemetry.Warnf("Warmup: %s", code.Message())
	}

	if bal := bridge.GetBalance(); bal >= 0 {
		telemetry.Infof("USDC balance: $%.2f", float64(bal)/1e6)
	} else {
		telemetry.Warnf("Balance fetch failed")
	}

	var tokens []string
	for _, t := range strings.Split(*tokensFlag, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}

	for _, token := range tokens {
		if code := bridge.Prefetch(token); code != bridge.OK {
			telemetry.Warnf("Prefetch %s: %s", token, code.Message())
		}
	}

	// ── Market feed ────────────────────────────────────────────
	bus := events.NewBus()
	bus.Subscribe(events.EventBookUpdate, func(e events.Event) error {
		book := e.Payload.(events.BookUpdate)
		telemetry.Debugf("book %s bid=%.3f ask=%.3f", book.TokenID, book.BestBid(), book.BestAsk())
		return nil
	})
	bus.Subscribe(events.EventLastTrade, func(e events.Event) error {
		trade := e.Payload.(events.LastTrade)
		telemetry.Debugf("trade %s price=%.3f size=%.2f", trade.TokenID, trade.Price, trade.Size)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(tokens) > 0 {
		ws := market_ws.NewClient(cfg.ClobWSURL, bus)
		if err := ws.SubscribeTokens(tokens); err != nil {
			telemetry.Warnf("WS subscribe: %v", err)
		}
		go func() {
			if err := ws.Connect(ctx); err != nil {
				telemetry.Warnf("Polymarket WS: %v", err)
			}
		}()
	}

	// ── Shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down trader...")
	cancel()

	if code := bridge.CancelAll(); code != bridge.OK {
		telemetry.Warnf("Cancel all: %s", code.Message())
	}
	bridge.Shutdown()

	telemetry.Infof("Trader shutdown complete  orders=%d  errors=%d  ws_msgs=%d",
		telemetry.Metrics.OrdersSent.Value(),
		telemetry.Metrics.OrderErrors.Value(),
		telemetry.Metrics.WSMessages.Value(),
	)
}
