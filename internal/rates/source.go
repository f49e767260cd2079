package rates

import (
	"context"

	"github.com/nemeshnorbert/reveal/internal/adapters"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

// storeSource answers USD-pivot lookups from the memo first, then the
// store. Lookups for USD itself short-circuit to 1.0 above both
// layers: the pivot rate is definitional and is never persisted.
type storeSource struct {
	store adapters.RateStore
	memo  adapters.RateMemo
}

func (s *storeSource) getRates(ctx context.Context, bids []domain.USDBid) ([]*float64, error) {
	out := make([]*float64, len(bids))
	var missIdx []int
	var missBids []domain.USDBid
	for i, bid := range bids {
		if bid.Symbol == domain.USD {
			pivot := 1.0
			out[i] = &pivot
			continue
		}
		if rate, ok := s.memo.Get(bid); ok {
			out[i] = &rate
			continue
		}
		missIdx = append(missIdx, i)
		missBids = append(missBids, bid)
	}
	if len(missBids) == 0 {
		return out, nil
	}

	stored, err := s.store.GetRates(ctx, missBids)
	if err != nil {
		return nil, err
	}
	for pos, idx := range missIdx {
		if stored[pos] == nil {
			continue
		}
		out[idx] = stored[pos]
		s.memo.Set(missBids[pos], *stored[pos])
	}
	return out, nil
}
