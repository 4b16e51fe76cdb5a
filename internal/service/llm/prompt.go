package llm

import (
	"fmt"
	"strings"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/util"
)

const interpretationSystemPrompt = `You are a market structure analyst. You receive computed market metrics and recent candles for a crypto pair and respond with a single JSON object, no prose, no markdown fences, matching exactly this schema:
{
  "bias": "bullish" | "bearish" | "neutral",
  "structure": "trend" | "range" | "breakout" | "reversal",
  "key_levels": [number, ...],
  "liquidity": "above" | "below" | "both" | "none",
  "volatility": "low" | "normal" | "high",
  "confidence": number between 0 and 1,
  "reasoning": "one or two sentences"
}
Key levels are absolute prices. Be conservative: when the picture is unclear, answer neutral with low confidence.`

const promptCandleCount = 5

// buildInterpretationPrompt renders the metrics, the most recent candles and
// the optional chart analysis into the user prompt.
func buildInterpretationPrompt(symbol string, metrics *models.MarketMetrics, candles []models.Candle, vision *models.VisionAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Symbol: %s\n", symbol)
	fmt.Fprintf(&b, "Current price: %.8f\n", metrics.CurrentPrice)
	fmt.Fprintf(&b, "ATR: %.4f%%\n", metrics.ATRPercent)
	fmt.Fprintf(&b, "24h range: %.4f%%\n", metrics.Range24h)
	fmt.Fprintf(&b, "Trend: %s\n", metrics.TrendRegime)
	fmt.Fprintf(&b, "Volatility regime: %s\n", metrics.VolatilityRegime)
	if metrics.SMA20 != nil {
		fmt.Fprintf(&b, "SMA20: %.8f\n", *metrics.SMA20)
	}
	if metrics.SMA50 != nil {
		fmt.Fprintf(&b, "SMA50: %.8f\n", *metrics.SMA50)
	}

	n := len(candles)
	if n > 0 {
		fmt.Fprintf(&b, "Window change: %.2f%%\n",
			util.PercentChange(candles[0].Open, candles[n-1].Close))
		start := n - promptCandleCount
		if start < 0 {
			start = 0
		}
		b.WriteString("\nRecent candles (oldest first, O/H/L/C/V):\n")
		for _, c := range candles[start:] {
			fmt.Fprintf(&b, "%s %.8f %.8f %.8f %.8f %.2f\n",
				time.UnixMilli(c.OpenTime).UTC().Format("2006-01-02T15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
	}

	if vision != nil {
		b.WriteString("\nChart image analysis:\n")
		if len(vision.SupportLevels) > 0 {
			fmt.Fprintf(&b, "Support levels: %v\n", vision.SupportLevels)
		}
		if len(vision.ResistanceLevels) > 0 {
			fmt.Fprintf(&b, "Resistance levels: %v\n", vision.ResistanceLevels)
		}
		if len(vision.Patterns) > 0 {
			fmt.Fprintf(&b, "Patterns: %s\n", strings.Join(vision.Patterns, ", "))
		}
		if vision.Structure != "" {
			fmt.Fprintf(&b, "Structure: %s\n", vision.Structure)
		}
		if vision.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", vision.Description)
		}
	}

	b.WriteString("\nRespond with the JSON object only.")
	return b.String()
}
