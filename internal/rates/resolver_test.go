package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nemeshnorbert/reveal/internal/domain"
)

// fakeStore is an in-memory RateStore recording every call.
type fakeStore struct {
	records  map[domain.USDBid]float64
	getCalls [][]domain.USDBid
	putCalls [][]domain.USDBid
	putErr   error
}

func newFakeStore(records map[domain.USDBid]float64) *fakeStore {
	if records == nil {
		records = make(map[domain.USDBid]float64)
	}
	return &fakeStore{records: records}
}

func (s *fakeStore) GetRates(_ context.Context, bids []domain.USDBid) ([]*float64, error) {
	s.getCalls = append(s.getCalls, bids)
	out := make([]*float64, len(bids))
	for i, bid := range bids {
		if rate, ok := s.records[bid]; ok {
			out[i] = &rate
		}
	}
	return out, nil
}

func (s *fakeStore) PutRates(_ context.Context, bids []domain.USDBid, rates []*float64) error {
	s.putCalls = append(s.putCalls, bids)
	if s.putErr != nil {
		return s.putErr
	}
	for i, bid := range bids {
		if rates[i] == nil {
			continue
		}
		if _, ok := s.records[bid]; !ok {
			s.records[bid] = *rates[i]
		}
	}
	return nil
}

// fakeMemo is a plain map-backed RateMemo.
type fakeMemo struct {
	entries map[domain.USDBid]float64
}

func newFakeMemo() *fakeMemo {
	return &fakeMemo{entries: make(map[domain.USDBid]float64)}
}

func (m *fakeMemo) Get(bid domain.USDBid) (float64, bool) {
	rate, ok := m.entries[bid]
	return rate, ok
}

func (m *fakeMemo) Set(bid domain.USDBid, rate float64) {
	m.entries[bid] = rate
}

// fakeProvider is a scripted Provider recording every call.
type fakeProvider struct {
	name       string
	rates      map[domain.USDBid]float64
	ratesErr   error
	symbols    []string
	symbolsErr error
	rateCalls  [][]domain.USDBid
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) GetRates(_ context.Context, bids []domain.USDBid) ([]*float64, error) {
	p.rateCalls = append(p.rateCalls, bids)
	if p.ratesErr != nil {
		return nil, p.ratesErr
	}
	out := make([]*float64, len(bids))
	for i, bid := range bids {
		if rate, ok := p.rates[bid]; ok {
			out[i] = &rate
		}
	}
	return out, nil
}

func (p *fakeProvider) GetSymbols(context.Context) ([]string, error) {
	if p.symbolsErr != nil {
		return nil, p.symbolsErr
	}
	return p.symbols, nil
}

func TestResolver_Convert_SameCurrencyNeverTouchesStoreOrProvider(t *testing.T) {
	store := newFakeStore(nil)
	provider := &fakeProvider{name: "test"}
	resolver := NewResolver(store, newFakeMemo(), provider)

	rates, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "EUR", Quote: "EUR"},
		{Date: "2020-01-02", Base: "XYZ", Quote: "XYZ"},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{1.0, 1.0}, rates)
	require.Empty(t, store.getCalls)
	require.Empty(t, provider.rateCalls)
}

func TestResolver_Convert_USDPivotIsNeverLookedUp(t *testing.T) {
	store := newFakeStore(map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
	})
	provider := &fakeProvider{name: "test"}
	resolver := NewResolver(store, newFakeMemo(), provider)

	rates, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "USD", Quote: "EUR"},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{0.9}, rates)

	require.Len(t, store.getCalls, 1)
	require.Equal(t, []domain.USDBid{{Date: "2020-01-01", Symbol: "EUR"}}, store.getCalls[0])
	require.Empty(t, provider.rateCalls)
}

func TestResolver_Convert_CrossRateFromStore(t *testing.T) {
	store := newFakeStore(map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
		{Date: "2020-01-01", Symbol: "GBP"}: 0.8,
	})
	provider := &fakeProvider{name: "test"}
	resolver := NewResolver(store, newFakeMemo(), provider)

	rates, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "EUR", Quote: "GBP"},
	})
	require.NoError(t, err)
	require.InEpsilon(t, 0.8/0.9, rates[0], 1e-12)
	require.Empty(t, provider.rateCalls)
}

func TestResolver_Convert_DeduplicatesUSDBids(t *testing.T) {
	provider := &fakeProvider{name: "test", rates: map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
		{Date: "2020-01-01", Symbol: "GBP"}: 0.8,
	}}
	store := newFakeStore(nil)
	resolver := NewResolver(store, newFakeMemo(), provider)

	rates, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "EUR", Quote: "USD"},
		{Date: "2020-01-01", Base: "GBP", Quote: "USD"},
		{Date: "2020-01-01", Base: "EUR", Quote: "GBP"},
	})
	require.NoError(t, err)
	require.InEpsilon(t, 1.0/0.9, rates[0], 1e-12)
	require.InEpsilon(t, 1.0/0.8, rates[1], 1e-12)
	require.InEpsilon(t, 0.8/0.9, rates[2], 1e-12)

	// The three bids share one USD-pivot set: EUR and GBP hit the
	// store and provider exactly once, the USD pivot neither.
	require.Len(t, store.getCalls, 1)
	require.ElementsMatch(t, []domain.USDBid{
		{Date: "2020-01-01", Symbol: "EUR"},
		{Date: "2020-01-01", Symbol: "GBP"},
	}, store.getCalls[0])
	require.Len(t, provider.rateCalls, 1)
	require.ElementsMatch(t, []domain.USDBid{
		{Date: "2020-01-01", Symbol: "EUR"},
		{Date: "2020-01-01", Symbol: "GBP"},
	}, provider.rateCalls[0])
}

func TestResolver_Convert_WritesFetchedRatesBack(t *testing.T) {
	provider := &fakeProvider{name: "test", rates: map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
	}}
	store := newFakeStore(nil)
	resolver := NewResolver(store, newFakeMemo(), provider)

	_, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "USD", Quote: "EUR"},
	})
	require.NoError(t, err)
	require.Equal(t, 0.9, store.records[domain.USDBid{Date: "2020-01-01", Symbol: "EUR"}])

	// A later call is served from the store, no provider round trip.
	rates, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "USD", Quote: "EUR"},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{0.9}, rates)
	require.Len(t, provider.rateCalls, 1)
}

func TestResolver_Convert_WriteBackFailureDoesNotFailConversion(t *testing.T) {
	provider := &fakeProvider{name: "test", rates: map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
	}}
	store := newFakeStore(nil)
	store.putErr = errors.New("disk full")
	resolver := NewResolver(store, newFakeMemo(), provider)

	rates, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "USD", Quote: "EUR"},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{0.9}, rates)
	require.Len(t, store.putCalls, 1)
}

func TestResolver_Convert_UnresolvedPivotFailsWholeCall(t *testing.T) {
	provider := &fakeProvider{name: "test", rates: map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
	}}
	resolver := NewResolver(newFakeStore(nil), newFakeMemo(), provider)

	_, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "EUR", Quote: "EUR"},
		{Date: "2020-01-01", Base: "XXX", Quote: "EUR"},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrUnresolvedRate)
}

func TestResolver_Convert_ProviderTotalFailureFailsDependentBids(t *testing.T) {
	provider := &fakeProvider{name: "test", ratesErr: domain.ErrNoRatesAvailable}
	resolver := NewResolver(newFakeStore(nil), newFakeMemo(), provider)

	_, err := resolver.Convert(context.Background(), []domain.Bid{
		{Date: "2020-01-01", Base: "EUR", Quote: "GBP"},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrUnresolvedRate)
}

func TestResolver_ConvertTotals(t *testing.T) {
	store := newFakeStore(map[domain.USDBid]float64{
		{Date: "2020-01-01", Symbol: "EUR"}: 0.9,
		{Date: "2020-01-02", Symbol: "GBP"}: 0.8,
	})
	resolver := NewResolver(store, newFakeMemo(), &fakeProvider{name: "test"})

	dates := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	totals, err := resolver.ConvertTotals(context.Background(), dates, []string{"EUR", "GBP"}, []float64{90, 80}, "USD")
	require.NoError(t, err)
	// cross(date, USD, EUR) = 0.9, so 90 EUR converts to 100 USD.
	require.InEpsilon(t, 100.0, totals[0], 1e-12)
	require.InEpsilon(t, 100.0, totals[1], 1e-12)
}

func TestResolver_ConvertTotals_LengthMismatch(t *testing.T) {
	resolver := NewResolver(newFakeStore(nil), newFakeMemo(), &fakeProvider{name: "test"})

	_, err := resolver.ConvertTotals(context.Background(),
		[]time.Time{time.Now()}, []string{"EUR", "GBP"}, []float64{1}, "USD")
	require.Error(t, err)
}
