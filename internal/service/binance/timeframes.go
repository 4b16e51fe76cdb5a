package binance

import (
	"fmt"
	"time"
)

const (
	// Higher and lower timeframe intervals used for every analysis.
	htfInterval = "4h"
	ltfInterval = "15m"

	// Candles cover a 7 day window plus warmup headroom for indicators.
	lookbackDays = 7
	extraCandles = 50
)

// intervalDuration maps a Binance kline interval string to its duration.
func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
}

// candleCount returns how many candles of the given interval span the
// lookback window, plus warmup.
func candleCount(interval string) (int, error) {
	d, err := intervalDuration(interval)
	if err != nil {
		return 0, err
	}
	window := time.Duration(lookbackDays) * 24 * time.Hour
	return int(window/d) + extraCandles, nil
}
