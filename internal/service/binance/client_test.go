package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"SignalForge/internal/domain/errs"
	"SignalForge/internal/service/cache"
	"SignalForge/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func klineRow(openMs int64, open, high, low, close, volume float64) []interface{} {
	return []interface{}{
		openMs,
		fmt.Sprintf("%v", open),
		fmt.Sprintf("%v", high),
		fmt.Sprintf("%v", low),
		fmt.Sprintf("%v", close),
		fmt.Sprintf("%v", volume),
		openMs + 899_999,
		"0", 0, "0", "0", "0",
	}
}

func TestFetchCandlesParsesKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q", got)
		}
		if got := r.URL.Query().Get("interval"); got != "15m" {
			t.Errorf("interval = %q", got)
		}
		_ = json.NewEncoder(w).Encode([][]interface{}{
			klineRow(1700000000000, 100, 105, 99, 104, 1234.5),
			klineRow(1700000900000, 104, 110, 103, 108, 2000),
		})
	}))
	defer srv.Close()

	c := NewClient(testLogger(t), cache.NewMemoryCache(), WithBaseURL(srv.URL))
	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "15m", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Open != 100 || candles[0].High != 105 || candles[0].Low != 99 || candles[0].Close != 104 {
		t.Fatalf("candle mismatch: %+v", candles[0])
	}
	if candles[0].Volume != 1234.5 {
		t.Fatalf("volume = %v", candles[0].Volume)
	}
	if candles[0].OpenTime != 1700000000000 {
		t.Fatalf("open time = %v", candles[0].OpenTime)
	}
}

func TestFetchCandlesServesFromCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode([][]interface{}{
			klineRow(1700000000000, 100, 105, 99, 104, 10),
		})
	}))
	defer srv.Close()

	c := NewClient(testLogger(t), cache.NewMemoryCache(), WithBaseURL(srv.URL))
	ctx := context.Background()

	if _, err := c.FetchCandles(ctx, "BTCUSDT", "4h", 1); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := c.FetchCandles(ctx, "BTCUSDT", "4h", 1); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", got)
	}

	// After clearing the cache the next fetch goes upstream again.
	if err := c.ClearCache(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("clear cache: %v", err)
	}
	if _, err := c.FetchCandles(ctx, "BTCUSDT", "4h", 1); err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", got)
	}
}

func TestFetchCandlesRetriesUpstreamErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([][]interface{}{
			klineRow(1700000000000, 100, 105, 99, 104, 10),
		})
	}))
	defer srv.Close()

	c := NewClient(testLogger(t), cache.NewMemoryCache(), WithBaseURL(srv.URL), WithMaxRetries(3))
	candles, err := c.FetchCandles(context.Background(), "ETHUSDT", "4h", 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetchCandlesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c := NewClient(testLogger(t), cache.NewMemoryCache(), WithBaseURL(srv.URL), WithMaxRetries(2))
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "4h", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if errs.KindOf(err) != errs.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestParseKlinesMalformed(t *testing.T) {
	if _, err := parseKlines([]byte(`{"not":"an array"}`)); errs.KindOf(err) != errs.KindParse {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := parseKlines([]byte(`[[1700000000000,"bad"]]`)); errs.KindOf(err) != errs.KindParse {
		t.Fatalf("expected parse error for short row, got %v", err)
	}
}

func TestMarketDataFetchesBothTimeframes(t *testing.T) {
	intervals := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		intervals[r.URL.Query().Get("interval")]++
		rows := make([][]interface{}, 0, 20)
		for i := 0; i < 20; i++ {
			rows = append(rows, klineRow(1700000000000+int64(i)*900000, 100, 105, 99, 104, 10))
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	c := NewClient(testLogger(t), cache.NewMemoryCache(), WithBaseURL(srv.URL))
	md, err := c.MarketData(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("market data: %v", err)
	}
	if md.Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q", md.Symbol)
	}
	if len(md.HTF) == 0 || len(md.LTF) == 0 {
		t.Fatalf("expected candles in both timeframes")
	}
	if intervals["4h"] != 1 || intervals["15m"] != 1 {
		t.Fatalf("interval hits = %v", intervals)
	}
}

func TestCandleCount(t *testing.T) {
	cases := []struct {
		interval string
		want     int
	}{
		{"4h", 92},
		{"15m", 722},
		{"1h", 218},
	}
	for _, tc := range cases {
		got, err := candleCount(tc.interval)
		if err != nil {
			t.Fatalf("%s: %v", tc.interval, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.interval, got, tc.want)
		}
	}
	if _, err := candleCount("3w"); err == nil {
		t.Fatal("expected error for unknown interval")
	}
}
