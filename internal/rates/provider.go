package rates

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/nemeshnorbert/reveal/internal/adapters/httpclient"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

// Supported provider names.
const (
	ProviderOpenexchangerates = "openexchangerates"
	ProviderCurrencylayer     = "currencylayer"
)

// Provider resolves USD-pivoted rates against one external rate
// service through its configured accounts.
//
// GetRates answers each bid in input order; a symbol the vendor does
// not carry on that date yields a nil entry, not an error. When every
// account fails (or is circuit-broken) for some requested date the
// whole call reports domain.ErrNoRatesAvailable.
type Provider interface {
	Name() string
	GetRates(ctx context.Context, bids []domain.USDBid) ([]*float64, error)
	GetSymbols(ctx context.Context) ([]string, error)
}

// vendorAPI is the vendor-specific query/parsing surface behind the
// shared account-iteration engine. Implementations return nil on any
// transport, vendor-level or parse failure; errors never propagate
// past this boundary.
type vendorAPI interface {
	fetchRates(ctx context.Context, date string, symbols []string, credential string) map[string]float64
	fetchSymbols(ctx context.Context, credential string) []string
}

// NewProvider builds a named provider over the given ordered
// credentials. readRetries bounds transport-level retries per request.
func NewProvider(name string, credentials []string, readRetries int) (Provider, error) {
	client := httpclient.NewClient(nil, readRetries)
	switch name {
	case ProviderOpenexchangerates:
		return newUSDRatesProvider(name, credentials, newOpenexchangeratesAPI(client), clockwork.NewRealClock()), nil
	case ProviderCurrencylayer:
		return newUSDRatesProvider(name, credentials, newCurrencylayerAPI(client), clockwork.NewRealClock()), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}
}

// ProviderNames lists the supported provider names in priority-neutral
// order, for CLI help and validation.
func ProviderNames() []string {
	return []string{ProviderOpenexchangerates, ProviderCurrencylayer}
}

// usdRatesProvider drives a vendorAPI through the account list: bids
// are grouped by date (one underlying request fetches all symbols for
// one date), and for each date accounts are tried in configured order,
// skipping circuit-broken ones, until one succeeds.
type usdRatesProvider struct {
	name     string
	accounts []*Account
	api      vendorAPI
	clock    clockwork.Clock
}

func newUSDRatesProvider(name string, credentials []string, api vendorAPI, clock clockwork.Clock) *usdRatesProvider {
	accounts := make([]*Account, 0, len(credentials))
	for _, credential := range credentials {
		accounts = append(accounts, NewAccount(credential))
	}
	return &usdRatesProvider{name: name, accounts: accounts, api: api, clock: clock}
}

func (p *usdRatesProvider) Name() string { return p.name }

func (p *usdRatesProvider) GetRates(ctx context.Context, bids []domain.USDBid) ([]*float64, error) {
	groups := make(map[string]map[string]struct{})
	for _, bid := range bids {
		if groups[bid.Date] == nil {
			groups[bid.Date] = make(map[string]struct{})
		}
		groups[bid.Date][bid.Symbol] = struct{}{}
	}

	groupRates := make(map[string]map[string]float64, len(groups))
	for date, symbolSet := range groups {
		symbols := make([]string, 0, len(symbolSet))
		for symbol := range symbolSet {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		dateRates := p.fetchDate(ctx, date, symbols)
		if dateRates == nil {
			return nil, fmt.Errorf("%w: %s has no account able to serve date %s", domain.ErrNoRatesAvailable, p.name, date)
		}
		groupRates[date] = dateRates
	}

	out := make([]*float64, len(bids))
	for i, bid := range bids {
		if rate, ok := groupRates[bid.Date][bid.Symbol]; ok {
			out[i] = &rate
		}
	}
	return out, nil
}

func (p *usdRatesProvider) fetchDate(ctx context.Context, date string, symbols []string) map[string]float64 {
	for _, account := range p.accounts {
		now := p.clock.Now()
		if !account.Available(now) {
			continue
		}
		rates := p.api.fetchRates(ctx, date, symbols, account.Credential)
		if rates != nil {
			account.RegisterSuccess(now)
			return rates
		}
		account.RegisterFailure(now)
	}
	return nil
}

func (p *usdRatesProvider) GetSymbols(ctx context.Context) ([]string, error) {
	for _, account := range p.accounts {
		now := p.clock.Now()
		if !account.Available(now) {
			continue
		}
		symbols := p.api.fetchSymbols(ctx, account.Credential)
		if symbols != nil {
			account.RegisterSuccess(now)
			sort.Strings(symbols)
			return symbols, nil
		}
		account.RegisterFailure(now)
	}
	return nil, fmt.Errorf("%w: %s has no account able to list symbols", domain.ErrNoRatesAvailable, p.name)
}

func joinSymbols(symbols []string) string {
	return strings.Join(symbols, ",")
}

func logVendorError(provider string, description string) {
	logrus.Debugf("Provider %s returned an error response: %s", provider, description)
}
