package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/erain9/runebook/pkg/core"
)

// Node error codes that mean the node is still starting up
const (
	CodeLoadingBlockIndex = -28
	CodeWarmingUp         = -8
)

// Config configures a node client
type Config struct {
	URL               string
	User              string
	Password          string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
}

// Error is a JSON-RPC error object returned by the node
type Error struct {
	Code    int64
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Retryable reports whether the node asked us to come back later
func (e *Error) Retryable() bool {
	return e.Code == CodeLoadingBlockIndex || e.Code == CodeWarmingUp
}

// Client talks JSON-RPC 2.0 to a rune-aware node. It validates addresses,
// quotes reference prices and moves runes between addresses.
type Client struct {
	url        string
	user       string
	password   string
	maxRetries int
	retryDelay time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	nextID     atomic.Int64
	logger     zerolog.Logger
}

// NewClient creates a client from cfg
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		url:        cfg.URL,
		user:       cfg.User,
		password:   cfg.Password,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With().Str("component", "rpc").Logger(),
	}, nil
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// Call invokes method and returns the raw "result" member of the response.
// Node warm-up errors are retried with exponential backoff; everything else
// fails immediately.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (gjson.Result, error) {
	if params == nil {
		params = []interface{}{}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.do(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var rpcErr *Error
		if !errors.As(err, &rpcErr) || !rpcErr.Retryable() {
			return gjson.Result{}, err
		}

		c.logger.Warn().
			Str("method", method).
			Int("attempt", attempt).
			Int64("code", rpcErr.Code).
			Msg("Node not ready, retrying")

		select {
		case <-ctx.Done():
			return gjson.Result{}, ctx.Err()
		case <-time.After(c.backoff(attempt)):
		}
	}
	return gjson.Result{}, errors.Wrapf(lastErr, "%s failed after %d attempts", method, c.maxRetries)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryDelay << (attempt - 1)
	if ceiling := 10 * time.Second; d > ceiling {
		return ceiling
	}
	return d
}

func (c *Client) do(ctx context.Context, method string, params []interface{}) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to encode %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to build %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to call %s", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to read %s response", method)
	}

	// bitcoind-style nodes answer RPC errors with HTTP 500 and a JSON body
	value := gjson.ParseBytes(raw)
	if e := value.Get("error"); e.Exists() && e.Type != gjson.Null {
		return gjson.Result{}, &Error{Code: e.Get("code").Int(), Message: e.Get("message").String()}
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("%s: http status %d", method, resp.StatusCode)
	}
	result := value.Get("result")
	if !result.Exists() {
		return gjson.Result{}, errors.Errorf("%s: response has no result", method)
	}
	return result, nil
}

// IsValid implements core.AddressValidator using validateaddress
func (c *Client) IsValid(ctx context.Context, address string) (bool, error) {
	result, err := c.Call(ctx, "validateaddress", address)
	if err != nil {
		return false, err
	}
	return result.Get("isvalid").Bool(), nil
}

// GetPrice implements core.PriceFeed using getruneprice. Any failure is
// reported as "no price" so the oracle falls back.
func (c *Client) GetPrice(ctx context.Context, runeID string) (decimal.Decimal, bool) {
	result, err := c.Call(ctx, "getruneprice", runeID)
	if err != nil {
		c.logger.Debug().Err(err).Str("runeId", runeID).Msg("Node price unavailable")
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(result.Get("price").String())
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// Transfer implements core.SettlementLedger using createrunetransfer
func (c *Client) Transfer(ctx context.Context, from, to, runeID string, amount decimal.Decimal) (string, error) {
	result, err := c.Call(ctx, "createrunetransfer", from, to, runeID, amount.String())
	if err != nil {
		return "", err
	}
	if result.Type == gjson.String {
		return result.String(), nil
	}
	txid := result.Get("txid").String()
	if txid == "" {
		return "", errors.New("createrunetransfer: missing txid")
	}
	return txid, nil
}

var (
	_ core.AddressValidator = (*Client)(nil)
	_ core.PriceFeed        = (*Client)(nil)
	_ core.SettlementLedger = (*Client)(nil)
)
