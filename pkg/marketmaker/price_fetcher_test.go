package marketmaker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFetcher_FetchPrice(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.EscapedPath() != "/api/v1/runes/840000:1/price" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"runeId":"840000:1","price":"1234.5"}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.PriceSourceURL = server.URL
	cfg.HTTPTimeout = 5 * time.Second
	cfg.MaxRetries = 3

	fetcher, err := NewPriceFetcher(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer fetcher.Close()

	price, err := fetcher.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1234.5", price.String())

	// no caching between calls
	_, err = fetcher.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPriceFetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			},
		},
		{
			name: "invalid JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("invalid json"))
			},
		},
		{
			name: "invalid price format",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"price":"not-a-number"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			cfg := testConfig()
			cfg.PriceSourceURL = server.URL
			cfg.HTTPTimeout = time.Second
			cfg.MaxRetries = 2

			fetcher, err := NewPriceFetcher(cfg, zerolog.Nop())
			require.NoError(t, err)
			defer fetcher.Close()

			_, err = fetcher.FetchPrice(context.Background())
			assert.ErrorContains(t, err, "840000:1")
		})
	}
}

func TestNewPriceFetcherRequiresURL(t *testing.T) {
	cfg := testConfig()
	cfg.PriceSourceURL = ""
	_, err := NewPriceFetcher(cfg, zerolog.Nop())
	assert.Error(t, err)
}
