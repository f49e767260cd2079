package rates

import (
	"context"
	"net/url"

	"github.com/nemeshnorbert/reveal/internal/adapters/httpclient"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

const currencylayerBaseURL = "https://api.currencylayer.com"

// currencylayerAPI speaks the currencylayer envelope: a "success" flag
// with an {"error": {"info": ...}} payload on failure, and on success
// quotes keyed by the source-prefixed pair, e.g. "USDEUR".
type currencylayerAPI struct {
	client  *httpclient.Client
	baseURL string
}

func newCurrencylayerAPI(client *httpclient.Client) *currencylayerAPI {
	return &currencylayerAPI{client: client, baseURL: currencylayerBaseURL}
}

type currencylayerError struct {
	Info string `json:"info"`
}

type currencylayerHistorical struct {
	Success bool               `json:"success"`
	Error   currencylayerError `json:"error"`
	Source  string             `json:"source"`
	Quotes  map[string]float64 `json:"quotes"`
}

type currencylayerList struct {
	Success    bool               `json:"success"`
	Error      currencylayerError `json:"error"`
	Currencies map[string]string  `json:"currencies"`
}

func (a *currencylayerAPI) fetchRates(ctx context.Context, date string, symbols []string, credential string) map[string]float64 {
	query := url.Values{}
	query.Set("access_key", credential)
	query.Set("date", date)
	query.Set("source", domain.USD)
	if len(symbols) > 0 {
		query.Set("currencies", joinSymbols(symbols))
	}

	var resp currencylayerHistorical
	if err := a.client.GetJSON(ctx, a.baseURL+"/historical", query, &resp); err != nil {
		return nil
	}
	if !resp.Success {
		logVendorError(ProviderCurrencylayer, resp.Error.Info)
		return nil
	}
	if resp.Source != domain.USD {
		logVendorError(ProviderCurrencylayer, "historical response is not USD-sourced: "+resp.Source)
		return nil
	}

	rates := make(map[string]float64, len(resp.Quotes))
	for pair, rate := range resp.Quotes {
		if len(pair) <= len(resp.Source) {
			continue
		}
		rates[pair[len(resp.Source):]] = rate
	}
	return rates
}

func (a *currencylayerAPI) fetchSymbols(ctx context.Context, credential string) []string {
	query := url.Values{}
	query.Set("access_key", credential)

	var resp currencylayerList
	if err := a.client.GetJSON(ctx, a.baseURL+"/list", query, &resp); err != nil {
		return nil
	}
	if !resp.Success {
		logVendorError(ProviderCurrencylayer, resp.Error.Info)
		return nil
	}

	symbols := make([]string, 0, len(resp.Currencies))
	for symbol := range resp.Currencies {
		symbols = append(symbols, symbol)
	}
	return symbols
}
