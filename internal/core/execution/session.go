package execution

import (
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Session bundles everything trading needs: the authenticated exchange
// client (which owns the signing identity) and the per-token minimum-order-
// size cache. A process holds at most one Session at a time.
type Session struct {
	client  Client
	timeout time.Duration

	// Floor on limit-buy notional, in USDC.
	minOrderUSDC decimal.Decimal

	// Cached min order size per token (in shares). Written by prefetch,
	// read non-blocking by limit-buy validation.
	cacheMu       sync.RWMutex
	minOrderSizes map[string]decimal.Decimal

	// Collapses concurrent prefetches of the same token into one flight.
	prefetchGroup singleflight.Group
}

// NewSession wires a Session. seedMinSizes preloads the cache (from the
// trade-limits file); nil is fine.
func NewSession(client Client, timeout time.Duration, minOrderUSDC decimal.Decimal, seedMinSizes map[string]decimal.Decimal) *Session {
	sizes := make(map[string]decimal.Decimal, len(seedMinSizes))
	for k, v := range seedMinSizes {
		sizes[k] = v
	}
	return &Session{
		client:        client,
		timeout:       timeout,
		minOrderUSDC:  minOrderUSDC,
		minOrderSizes: sizes,
	}
}

// cachedMinSize reads the min-share cache without blocking. When the lock is
// contended the caller treats the read as "no data" rather than stalling a
// latency-sensitive order.
func (s *Session) cachedMinSize(tokenID string) (decimal.Decimal, bool) {
	if !s.cacheMu.TryRLock() {
		return decimal.Decimal{}, false
	}
	defer s.cacheMu.RUnlock()
	min, ok := s.minOrderSizes[tokenID]
	return min, ok
}

func (s *Session) storeMinSize(tokenID string, min decimal.Decimal) {
	s.cacheMu.Lock()
	s.minOrderSizes[tokenID] = min
	s.cacheMu.Unlock()
}

// The process-wide session slot. Reads (every trading call) take the read
// lock for the call's duration; Install and Teardown take the write lock,
// so lifecycle changes serialize against in-flight operations.
var (
	slotMu sync.RWMutex
	slot   *Session
)

// Install atomically publishes a Session. If one is already active it is
// kept and Install reports false; init is idempotent.
func Install(s *Session) bool {
	slotMu.Lock()
	defer slotMu.Unlock()
	if slot != nil {
		return false
	}
	slot = s
	return true
}

// Installed reports whether a Session is currently active.
func Installed() bool {
	slotMu.RLock()
	defer slotMu.RUnlock()
	return slot != nil
}

// Teardown removes the active Session, releasing the client and cache.
// Idempotent; a later Install fully re-establishes.
func Teardown() {
	slotMu.Lock()
	slot = nil
	slotMu.Unlock()
}

// Acquire returns the active Session with the read lock held. The caller
// must invoke release when done. ok is false when no Session exists.
func Acquire() (s *Session, release func(), ok bool) {
	slotMu.RLock()
	if slot == nil {
		slotMu.RUnlock()
		return nil, nil, false
	}
	return slot, slotMu.RUnlock, true
}

// parseTokenID validates the exchange's numeric token format: a base-10
// unsigned integer no wider than 256 bits.
func parseTokenID(tokenID string) (*big.Int, bool) {
	if tokenID == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return nil, false
	}
	return n, true
}
