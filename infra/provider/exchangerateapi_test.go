package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/testutils"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *ExchangeRateAPI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewExchangeRateAPI(&config.ExchangeRate{
		ApiUrl:      srv.URL + "/v6/",
		ApiKey:      "k3y",
		HTTPTimeout: time.Second,
	}, testutils.DiscardLogger())
}

func TestExchangeRateAPI_FetchQuote(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/k3y/latest/USD", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","time_last_update_unix":1714608001,"base_code":"USD","conversion_rates":{"USD":1,"ARS":877.3125}}`))
	})

	q, err := p.FetchQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "877.3125", q.Rate.String())
	assert.Equal(t, "2024-05-02", q.EffectiveDate.Format(time.DateOnly))
	assert.Equal(t, SourceExchangeRateAPI, p.Name())
}

func TestExchangeRateAPI_Errors(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"http error", http.StatusForbidden, `{"result":"error","error-type":"invalid-key"}`},
		{"result error", http.StatusOK, `{"result":"error","error-type":"quota-reached"}`},
		{"missing ARS", http.StatusOK, `{"result":"success","conversion_rates":{"EUR":0.93}}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.FetchQuote(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestExchangeRateAPI_MissingKey(t *testing.T) {
	p := NewExchangeRateAPI(&config.ExchangeRate{ApiUrl: "http://127.0.0.1:1"}, nil)
	_, err := p.FetchQuote(context.Background())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
