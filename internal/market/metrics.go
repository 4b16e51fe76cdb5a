package market

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/util"
)

const (
	atrPeriod = 14

	// Regime thresholds on ATR as percent of price.
	lowVolatilityMax    = 1.0
	normalVolatilityMax = 3.0

	// Minimum 24h range percent for a tradeable market.
	minTradeableRange = 0.5
)

// ATRPercent returns the average true range of the last atrPeriod candles as
// a percent of the last close. Fewer than atrPeriod candles yields 0, which
// downstream treats as low volatility.
func ATRPercent(candles []models.Candle) float64 {
	if len(candles) < atrPeriod {
		return 0
	}

	trueRanges := make([]float64, len(candles))
	for i, c := range candles {
		prevClose := c.Close
		if i > 0 {
			prevClose = candles[i-1].Close
		}
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		trueRanges[i] = tr
	}

	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-atrPeriod:] {
		sum += tr
	}
	atr := sum / atrPeriod

	lastClose := candles[len(candles)-1].Close
	if lastClose == 0 {
		return 0
	}
	return atr / lastClose * 100
}

// RangePercent returns (max high - min low) over the window as a percent of
// the current price.
func RangePercent(candles []models.Candle, currentPrice float64) float64 {
	if len(candles) == 0 || currentPrice == 0 {
		return 0
	}
	high := candles[0].High
	low := candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return (high - low) / currentPrice * 100
}

// TrendRegime classifies the last three closes: strictly increasing is an
// uptrend, strictly decreasing a downtrend, anything else sideways.
func TrendRegime(candles []models.Candle) models.TrendRegime {
	if len(candles) < 3 {
		return models.TrendSideways
	}
	last := candles[len(candles)-3:]
	if last[1].Close > last[0].Close && last[2].Close > last[1].Close {
		return models.TrendUp
	}
	if last[1].Close < last[0].Close && last[2].Close < last[1].Close {
		return models.TrendDown
	}
	return models.TrendSideways
}

// VolatilityRegime buckets an ATR percent value.
func VolatilityRegime(atrPercent float64) models.VolatilityRegime {
	if atrPercent < lowVolatilityMax {
		return models.VolatilityLow
	}
	if atrPercent < normalVolatilityMax {
		return models.VolatilityNormal
	}
	return models.VolatilityHigh
}

// Calculate derives all market metrics from a chronological candle series.
func Calculate(candles []models.Candle) (*models.MarketMetrics, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles provided")
	}

	currentPrice := candles[len(candles)-1].Close
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	atrPercent := ATRPercent(candles)

	m := &models.MarketMetrics{
		CurrentPrice:     currentPrice,
		ATRPercent:       atrPercent,
		Range24h:         RangePercent(candles, currentPrice),
		TrendRegime:      TrendRegime(candles),
		VolatilityRegime: VolatilityRegime(atrPercent),
	}

	if sma, ok := util.SMA(closes, 20); ok {
		m.SMA20 = &sma
	}
	if sma, ok := util.SMA(closes, 50); ok {
		m.SMA50 = &sma
	}

	return m, nil
}

// Tradeable is the gate checked before spending an interpretation call.
func Tradeable(m *models.MarketMetrics) bool {
	if m.VolatilityRegime == models.VolatilityLow {
		return false
	}
	if m.Range24h < minTradeableRange {
		return false
	}
	return true
}
