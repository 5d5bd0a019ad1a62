package exchange

import (
	"sync"
	"time"
)

// ttlCache is a read-mostly, single-writer-per-key cache keyed by an
// arbitrary comparable key, generalizing the teacher's MarketDataCache
// (internal/binance/market_data_cache.go) which hand-rolled one sync.Map
// per data kind. This adapter needs caches for tickers, funding rates,
// contract info, and the clock offset, each scoped to the adapter's own
// lifetime rather than a process-wide global, so one generic
// implementation replaces four copies.
type ttlCache[K comparable, V any] struct {
	mu  sync.RWMutex
	m   map[K]cacheEntry[V]
	ttl time.Duration
}

type cacheEntry[V any] struct {
	value     V
	updatedAt time.Time
}

func newTTLCache[K comparable, V any](ttl time.Duration) *ttlCache[K, V] {
	return &ttlCache[K, V]{m: make(map[K]cacheEntry[V]), ttl: ttl}
}

// Get returns the cached value and true if present and not yet stale.
// Reads tolerate momentarily-stale values; staleness is enforced here
// rather than by the caller.
func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[key]
	if !ok || time.Since(e.updatedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set refreshes the cached value and its timestamp.
func (c *ttlCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cacheEntry[V]{value: value, updatedAt: time.Now()}
}

// caches bundles the adapter's read-mostly caches into one lifetime-scoped
// value owned by each Adapter instance, replacing the teacher's
// process-wide singletons.
type caches struct {
	tickers      *ttlCache[tickerKey, Ticker]
	funding      *ttlCache[string, FundingRate]
	contractInfo *ttlCache[string, ContractInfo]

	clockMu     sync.RWMutex
	clockOffset time.Duration
}

type tickerKey struct {
	contract         string
	includeMarkPrice bool
}

func newCaches() *caches {
	return &caches{
		tickers:      newTTLCache[tickerKey, Ticker](2 * time.Second),
		funding:      newTTLCache[string, FundingRate](time.Hour),
		contractInfo: newTTLCache[string, ContractInfo](0), // process lifetime: never expires once read via Get+ok
	}
}

// contractInfoGet special-cases the "process lifetime" cache: once set, it
// never expires, so Get checks presence only, ignoring ttlCache's staleness
// window (ttl=0 would otherwise mean "always stale").
func (c *caches) contractInfoGet(symbol string) (ContractInfo, bool) {
	c.contractInfo.mu.RLock()
	defer c.contractInfo.mu.RUnlock()
	e, ok := c.contractInfo.m[symbol]
	return e.value, ok
}

// now returns the exchange-synchronised time: local time minus the offset
// established by the last clock sync against the exchange's server time.
func (c *caches) now() time.Time {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	return time.Now().Add(-c.clockOffset)
}

func (c *caches) setClockOffset(d time.Duration) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	c.clockOffset = d
}
