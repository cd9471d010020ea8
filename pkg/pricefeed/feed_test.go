package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/runebook/pkg/core"
)

func newFeed(t *testing.T, url string) *HTTPFeed {
	t.Helper()
	feed, err := NewHTTPFeed(Config{
		BaseURL:    url,
		CacheTTL:   time.Minute,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = feed.Close() })
	return feed
}

func TestHTTPFeedGetPrice(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v1/runes/840000:3/price", r.URL.Path)
		fmt.Fprint(w, `{"runeId":"840000:3","price":"1020"}`)
	}))
	defer srv.Close()

	feed := newFeed(t, srv.URL)

	price, ok := feed.GetPrice(context.Background(), "840000:3")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(1020)))

	// second read is served from the cache
	price, ok = feed.GetPrice(context.Background(), "840000:3")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(1020)))
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFeedRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"price":"990"}`)
	}))
	defer srv.Close()

	price, err := newFeed(t, srv.URL).FetchPrice(context.Background(), "R")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(990)))
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFeedFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"bad json", http.StatusOK, "{"},
		{"bad number", http.StatusOK, `{"price":"abc"}`},
		{"zero price", http.StatusOK, `{"price":"0"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			feed := newFeed(t, srv.URL)
			_, ok := feed.GetPrice(context.Background(), "R")
			assert.False(t, ok)
			_, err := feed.FetchPrice(context.Background(), "R")
			assert.Error(t, err)
		})
	}
}

func TestNewHTTPFeedRequiresURL(t *testing.T) {
	_, err := NewHTTPFeed(Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	none := core.PriceFeedFunc(func(context.Context, string) (decimal.Decimal, bool) {
		return decimal.Zero, false
	})
	zero := core.PriceFeedFunc(func(context.Context, string) (decimal.Decimal, bool) {
		return decimal.Zero, true
	})
	fixed := core.PriceFeedFunc(func(context.Context, string) (decimal.Decimal, bool) {
		return decimal.NewFromInt(1100), true
	})

	price, ok := Chain{none, nil, zero, fixed}.GetPrice(context.Background(), "R")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(1100)))

	_, ok = Chain{none}.GetPrice(context.Background(), "R")
	assert.False(t, ok)

	_, ok = Chain(nil).GetPrice(context.Background(), "R")
	assert.False(t, ok)
}

func TestChainFeedsOracle(t *testing.T) {
	oracle := core.NewOracle(Chain{core.PriceFeedFunc(func(context.Context, string) (decimal.Decimal, bool) {
		return decimal.Zero, false
	})}, decimal.Zero)

	assert.True(t, oracle.Get(context.Background(), "R").Equal(core.DefaultReferencePrice))
}
