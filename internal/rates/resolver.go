package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nemeshnorbert/reveal/internal/adapters"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

// Resolver turns arbitrary (date, base, quote) bids into cross rates
// computed from USD-pivoted rates, using the store as a cache and the
// provider as the source of truth on a miss.
//
// Convert is all-or-nothing: a single pivot that neither the store nor
// the provider can supply fails the whole call.
type Resolver struct {
	store    adapters.RateStore
	source   *storeSource
	provider Provider
}

func NewResolver(store adapters.RateStore, memo adapters.RateMemo, provider Provider) *Resolver {
	return &Resolver{
		store:    store,
		source:   &storeSource{store: store, memo: memo},
		provider: provider,
	}
}

// Convert resolves a cross rate for every bid, preserving input order.
func (r *Resolver) Convert(ctx context.Context, bids []domain.Bid) ([]float64, error) {
	// STEP 1: decompose bids into the set of USD pivots they need.
	// A pivot requested by many bids is fetched once.
	usdBidSet := make(map[domain.USDBid]struct{})
	for _, bid := range bids {
		if bid.Base == bid.Quote {
			continue
		}
		usdBidSet[domain.USDBid{Date: bid.Date, Symbol: bid.Base}] = struct{}{}
		usdBidSet[domain.USDBid{Date: bid.Date, Symbol: bid.Quote}] = struct{}{}
	}
	usdBids := make([]domain.USDBid, 0, len(usdBidSet))
	for bid := range usdBidSet {
		usdBids = append(usdBids, bid)
	}

	// STEP 2: resolve the pivots through memo, store and provider.
	usdRates, err := r.resolveUSDRates(ctx, usdBids)
	if err != nil {
		return nil, err
	}
	rateByBid := make(map[domain.USDBid]*float64, len(usdBids))
	for i, bid := range usdBids {
		rateByBid[bid] = usdRates[i]
	}

	// STEP 3: assemble cross rates. Same-currency bids are 1.0 by
	// definition and never touched storage or providers above.
	out := make([]float64, len(bids))
	for i, bid := range bids {
		if bid.Base == bid.Quote {
			out[i] = 1.0
			continue
		}
		baseRate := rateByBid[domain.USDBid{Date: bid.Date, Symbol: bid.Base}]
		quoteRate := rateByBid[domain.USDBid{Date: bid.Date, Symbol: bid.Quote}]
		if baseRate == nil || quoteRate == nil {
			return nil, fmt.Errorf("%w: %s %s/%s", domain.ErrUnresolvedRate, bid.Date, bid.Base, bid.Quote)
		}
		out[i] = *quoteRate / *baseRate
	}
	return out, nil
}

// ConvertTotals is the collaborator surface consumed by reporting
// layers: element-wise totals[i] / cross(dates[i], target,
// currencies[i]), converting each total into the target currency.
func (r *Resolver) ConvertTotals(ctx context.Context, dates []time.Time, currencies []string, totals []float64, target string) ([]float64, error) {
	if len(dates) != len(currencies) || len(currencies) != len(totals) {
		return nil, fmt.Errorf("dates/currencies/totals length mismatch: %d/%d/%d", len(dates), len(currencies), len(totals))
	}
	bids := make([]domain.Bid, len(dates))
	for i := range dates {
		bids[i] = domain.Bid{Date: domain.FormatDate(dates[i]), Base: target, Quote: currencies[i]}
	}
	crossRates, err := r.Convert(ctx, bids)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(totals))
	for i := range totals {
		out[i] = totals[i] / crossRates[i]
	}
	return out, nil
}

func (r *Resolver) resolveUSDRates(ctx context.Context, bids []domain.USDBid) ([]*float64, error) {
	rates, err := r.source.getRates(ctx, bids)
	if err != nil {
		return nil, err
	}

	var missIdx []int
	var missBids []domain.USDBid
	for i, rate := range rates {
		if rate == nil {
			missIdx = append(missIdx, i)
			missBids = append(missBids, bids[i])
		}
	}
	if len(missBids) == 0 {
		return rates, nil
	}

	fetched, err := r.provider.GetRates(ctx, missBids)
	if err != nil {
		if errors.Is(err, domain.ErrNoRatesAvailable) {
			// Total provider failure: the misses stay absent and the
			// caller decides whether that sinks the conversion.
			logrus.WithError(err).Warnf("Provider %s could not serve %d rate lookups", r.provider.Name(), len(missBids))
			return rates, nil
		}
		return nil, err
	}
	for pos, idx := range missIdx {
		rates[idx] = fetched[pos]
	}

	// Write resolved misses back so later calls hit the store instead
	// of the provider. A failed write-back costs a refetch, not the
	// conversion.
	if err = r.store.PutRates(ctx, missBids, fetched); err != nil {
		logrus.WithError(err).Warn("Failed to write resolved rates back to the store")
	}
	return rates, nil
}
