package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/nemeshnorbert/reveal/internal/domain"
)

// DefaultMemoCapacity bounds the in-process memo in front of the rate
// store. Rates are immutable once written, so entries never need
// invalidation.
const DefaultMemoCapacity = 65536

type RistrettoRateMemo struct {
	cache *ristretto.Cache
}

func NewRateMemo(maxItems int64) (*RistrettoRateMemo, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create rate memo failed: %w", err)
	}
	return &RistrettoRateMemo{cache: c}, nil
}

func (m *RistrettoRateMemo) Get(bid domain.USDBid) (float64, bool) {
	if v, ok := m.cache.Get(toKey(bid)); ok {
		rate, ok := v.(float64)
		return rate, ok
	}
	return 0, false
}

func (m *RistrettoRateMemo) Set(bid domain.USDBid, rate float64) {
	m.cache.Set(toKey(bid), rate, 1)
}

// Wait blocks until buffered writes are applied. Lookups issued before
// Wait may miss entries that were just set.
func (m *RistrettoRateMemo) Wait() { m.cache.Wait() }

func (m *RistrettoRateMemo) Close() { m.cache.Close() }

func toKey(bid domain.USDBid) string { return bid.Date + ":" + bid.Symbol }
