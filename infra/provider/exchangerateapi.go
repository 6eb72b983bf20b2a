package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/service/exchange"
)

// SourceExchangeRateAPI tags rates imported from exchangerate-api.com.
const SourceExchangeRateAPI = "exchangerate-api"

// ErrMissingAPIKey is returned when the importer is used without a key.
var ErrMissingAPIKey = errors.New("exchange rate api key is not configured")

// ExchangeRateAPI fetches the ARS per USD quote from exchangerate-api.com.
type ExchangeRateAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// latestResponse is the v6 /latest payload.
// See: https://www.exchangerate-api.com/docs/standard-requests
type latestResponse struct {
	Result             string                     `json:"result"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	BaseCode           string                     `json:"base_code"`
	ConversionRates    map[string]json.RawMessage `json:"conversion_rates"`
	ErrorType          string                     `json:"error-type,omitempty"`
}

// NewExchangeRateAPI builds the provider from the exchange rate settings.
func NewExchangeRateAPI(cfg *config.ExchangeRate, logger *slog.Logger) *ExchangeRateAPI {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := 10 * time.Second
	var baseURL, apiKey string
	if cfg != nil {
		baseURL, apiKey = cfg.ApiUrl, cfg.ApiKey
		if cfg.HTTPTimeout > 0 {
			timeout = cfg.HTTPTimeout
		}
	}
	return &ExchangeRateAPI{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("provider", SourceExchangeRateAPI),
	}
}

// Name implements exchange.RateProvider.
func (p *ExchangeRateAPI) Name() string { return SourceExchangeRateAPI }

// FetchQuote implements exchange.RateProvider. The effective date is the
// provider's last update day in UTC.
func (p *ExchangeRateAPI) FetchQuote(ctx context.Context) (exchange.Quote, error) {
	if p.apiKey == "" {
		return exchange.Quote{}, ErrMissingAPIKey
	}
	url := fmt.Sprintf("%s/%s/latest/USD", p.baseURL, p.apiKey)
	p.logger.Info("Fetching exchange rate from API", "base", "USD", "quote", "ARS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("failed to fetch rates: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return exchange.Quote{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return exchange.Quote{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Result != "success" {
		return exchange.Quote{}, fmt.Errorf("API returned result=%s error=%s", apiResp.Result, apiResp.ErrorType)
	}
	raw, ok := apiResp.ConversionRates["ARS"]
	if !ok {
		return exchange.Quote{}, fmt.Errorf("currency ARS not found in response")
	}
	// Decode the number straight from its JSON text to keep every digit.
	rate, err := decimal.NewFromString(string(raw))
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("invalid ARS rate %q: %w", string(raw), err)
	}

	effective := time.Now().UTC()
	if apiResp.TimeLastUpdateUnix > 0 {
		effective = time.Unix(apiResp.TimeLastUpdateUnix, 0).UTC()
	}
	p.logger.Info("Exchange rate fetched", "rate", rate.String(), "effective_date", effective.Format(time.DateOnly))
	return exchange.Quote{Rate: rate, EffectiveDate: effective}, nil
}

var _ exchange.RateProvider = (*ExchangeRateAPI)(nil)
