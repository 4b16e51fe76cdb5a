package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"SignalForge/internal/domain/errs"
	"SignalForge/internal/domain/models"
	"SignalForge/internal/service/cache"
	phttp "SignalForge/pkg/http"
	"SignalForge/pkg/logger"
	"SignalForge/pkg/retry"
)

const (
	defaultBaseURL  = "https://api.binance.com/api/v3"
	defaultCacheTTL = 5 * time.Minute
	retryBaseDelay  = 100 * time.Millisecond
	maxKlineLimit   = 1000
)

// Client fetches OHLCV data from the Binance public REST API. Responses are
// cached per symbol and interval so repeated jobs within the TTL do not hit
// the upstream again.
type Client struct {
	logger     *logger.Logger
	http       *phttp.Client
	cache      cache.BytesCache
	baseURL    string
	cacheTTL   time.Duration
	maxRetries int
	timeout    time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithCacheTTL sets the OHLCV cache TTL.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithMaxRetries sets how many fetch attempts are made per request.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Binance candle source backed by the given cache.
func NewClient(lgr *logger.Logger, store cache.BytesCache, opts ...ClientOption) *Client {
	c := &Client{
		logger:     lgr,
		cache:      store,
		baseURL:    defaultBaseURL,
		cacheTTL:   defaultCacheTTL,
		maxRetries: 3,
		timeout:    30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.http = phttp.NewClient(phttp.WithTimeout(c.timeout))
	return c
}

// FetchCandles returns up to limit candles for the symbol and interval,
// serving from cache when a fresh entry exists.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	key := cacheKey(symbol, interval)
	if cached, ok, err := c.cache.GetBytes(ctx, key); err == nil && ok {
		var candles []models.Candle
		if err := json.Unmarshal(cached, &candles); err == nil && len(candles) >= limit {
			return candles[len(candles)-limit:], nil
		}
	}

	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	var candles []models.Candle
	err := retry.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		candles, fetchErr = c.fetchKlines(ctx, symbol, interval, limit)
		return fetchErr
	},
		retry.WithAttempts(c.maxRetries),
		retry.WithBaseDelay(retryBaseDelay),
		retry.WithRetryIf(errs.Retryable),
		retry.WithOnRetry(func(attempt int, _ time.Duration, err error) {
			c.logger.Warn("candle fetch retry",
				logger.String("symbol", symbol),
				logger.String("interval", interval),
				logger.Int("attempt", attempt),
				logger.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(candles); err == nil {
		if err := c.cache.SetBytes(ctx, key, data, c.cacheTTL); err != nil {
			c.logger.Warn("candle cache write failed",
				logger.String("symbol", symbol),
				logger.Error(err))
		}
	}

	return candles, nil
}

// MarketData fetches the higher and lower timeframe candle sets for a symbol.
func (c *Client) MarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	htfCount, err := candleCount(htfInterval)
	if err != nil {
		return nil, err
	}
	ltfCount, err := candleCount(ltfInterval)
	if err != nil {
		return nil, err
	}

	htf, err := c.FetchCandles(ctx, symbol, htfInterval, htfCount)
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", htfInterval, err)
	}
	ltf, err := c.FetchCandles(ctx, symbol, ltfInterval, ltfCount)
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", ltfInterval, err)
	}

	return &models.MarketData{Symbol: symbol, HTF: htf, LTF: ltf}, nil
}

// ClearCache drops the cached candle sets for a symbol.
func (c *Client) ClearCache(ctx context.Context, symbol string) error {
	return c.cache.Delete(ctx, cacheKey(symbol, htfInterval), cacheKey(symbol, ltfInterval))
}

func (c *Client) fetchKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.SendRequest(ctx, &phttp.RequestOptions{
		Method: phttp.MethodGet,
		URL:    c.baseURL + "/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {interval},
			"limit":    {strconv.Itoa(limit)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.Timeout(fmt.Sprintf("candle fetch timed out for %s %s", symbol, interval), err)
		}
		return nil, errs.Upstream("candle request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Upstream("read candle response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.Upstream(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256)), nil)
	}

	return parseKlines(body)
}

// parseKlines decodes the Binance kline array-of-arrays format:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlines(body []byte) ([]models.Candle, error) {
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.Parse("decode klines", err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) < 7 {
			return nil, errs.Parse(fmt.Sprintf("kline row %d has %d fields", i, len(row)), nil)
		}
		candle, err := parseKlineRow(row)
		if err != nil {
			return nil, errs.Parse(fmt.Sprintf("kline row %d", i), err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKlineRow(row []interface{}) (models.Candle, error) {
	openTime, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("open time is %T", row[0])
	}
	closeTime, ok := row[6].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("close time is %T", row[6])
	}

	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("field %d is %T", i, row[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		prices[i-1] = v
	}

	return models.Candle{
		OpenTime:  int64(openTime),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		CloseTime: int64(closeTime),
	}, nil
}

func cacheKey(symbol, interval string) string {
	return fmt.Sprintf("ohlcv:%s:%s", symbol, interval)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
