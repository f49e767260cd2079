package adapters

import (
	"context"

	"github.com/nemeshnorbert/reveal/internal/domain"
)

// RateStore is the persistence surface the resolver needs: ordered
// point lookups and insert-or-ignore write-back.
type RateStore interface {
	GetRates(ctx context.Context, bids []domain.USDBid) ([]*float64, error)
	PutRates(ctx context.Context, bids []domain.USDBid, rates []*float64) error
}

// RateMemo is a bounded in-process cache in front of the store read
// path. Rates are immutable once written, so entries never invalidate.
type RateMemo interface {
	Get(bid domain.USDBid) (float64, bool)
	Set(bid domain.USDBid, rate float64)
}
