package rates

import (
	"context"
	"net/url"

	"github.com/nemeshnorbert/reveal/internal/adapters/httpclient"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

const openexchangeratesBaseURL = "https://openexchangerates.org/api"

// openexchangeratesAPI speaks the openexchangerates.org envelope:
// errors arrive as {"error": true, "description": ...}, successes as
// {"base": "USD", "rates": {symbol: rate}}.
type openexchangeratesAPI struct {
	client  *httpclient.Client
	baseURL string
}

func newOpenexchangeratesAPI(client *httpclient.Client) *openexchangeratesAPI {
	return &openexchangeratesAPI{client: client, baseURL: openexchangeratesBaseURL}
}

type openexchangeratesHistorical struct {
	Error       bool               `json:"error"`
	Description string             `json:"description"`
	Base        string             `json:"base"`
	Rates       map[string]float64 `json:"rates"`
}

func (a *openexchangeratesAPI) fetchRates(ctx context.Context, date string, symbols []string, credential string) map[string]float64 {
	query := url.Values{}
	query.Set("app_id", credential)
	query.Set("base", domain.USD)
	if len(symbols) > 0 {
		query.Set("symbols", joinSymbols(symbols))
	}

	var resp openexchangeratesHistorical
	if err := a.client.GetJSON(ctx, a.baseURL+"/historical/"+date+".json", query, &resp); err != nil {
		return nil
	}
	if resp.Error {
		logVendorError(ProviderOpenexchangerates, resp.Description)
		return nil
	}
	if resp.Base != domain.USD {
		logVendorError(ProviderOpenexchangerates, "historical response is not USD-based: "+resp.Base)
		return nil
	}
	return resp.Rates
}

func (a *openexchangeratesAPI) fetchSymbols(ctx context.Context, credential string) []string {
	query := url.Values{}
	query.Set("app_id", credential)

	// The currencies endpoint answers a plain {symbol: name} map on
	// success and the usual error envelope on failure, so it is decoded
	// loosely and inspected for the error marker.
	var resp map[string]any
	if err := a.client.GetJSON(ctx, a.baseURL+"/currencies.json", query, &resp); err != nil {
		return nil
	}
	if errFlag, ok := resp["error"].(bool); ok && errFlag {
		description, _ := resp["description"].(string)
		logVendorError(ProviderOpenexchangerates, description)
		return nil
	}

	symbols := make([]string, 0, len(resp))
	for symbol, name := range resp {
		if _, ok := name.(string); ok {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
