package decision

import (
	"fmt"

	"SignalForge/internal/domain/models"
)

// MinRiskReward is the minimum accepted reward/risk ratio for the first
// take-profit target.
const MinRiskReward = 1.2

// BuildTradeSetup reduces a market interpretation into a bounded trade setup
// or a no_trade verdict. Pure and deterministic: identical inputs always
// produce identical output. Rules run in order and short-circuit at the first
// rejection.
func BuildTradeSetup(interp *models.MarketInterpretation, metrics *models.MarketMetrics, risk models.RiskProfile) models.TradeSetup {
	// Rule 1: never trade a low volatility regime.
	if interp.Volatility == string(models.VolatilityLow) {
		return models.NoTrade(0, "Low volatility regime - no trade")
	}

	// Rule 2: interpretation confidence must clear the profile threshold.
	minConfidence := risk.MinConfidence()
	if interp.Confidence < minConfidence {
		return models.NoTrade(interp.Confidence,
			fmt.Sprintf("Low confidence: %.2f < %v", interp.Confidence, minConfidence))
	}

	// Rule 3: resolve direction and candidate entry from the bias.
	var side models.Side
	entry := metrics.CurrentPrice

	switch interp.Bias {
	case "bullish":
		side = models.SideLong
		// Prefer entering at the nearest support below price.
		if len(interp.KeyLevels) > 0 {
			if support := lowest(interp.KeyLevels); support < entry {
				entry = support
			}
		}
	case "bearish":
		side = models.SideShort
		// Prefer entering at the nearest resistance above price.
		if len(interp.KeyLevels) > 0 {
			if resistance := highest(interp.KeyLevels); resistance > entry {
				entry = resistance
			}
		}
	default:
		return models.NoTrade(interp.Confidence, "Neutral bias - no directional conviction")
	}

	params := CalculateRisk(entry, metrics, risk, side)

	// Rule 4: reject poor risk/reward.
	if params.RiskReward < MinRiskReward {
		return models.NoTrade(interp.Confidence,
			fmt.Sprintf("Poor R:R ratio: %.2f < %v", params.RiskReward, MinRiskReward))
	}

	return models.TradeSetup{
		Side:        side,
		Entry:       params.Entry,
		StopLoss:    params.StopLoss,
		TakeProfits: params.TakeProfits,
		RiskReward:  params.RiskReward,
		Confidence:  interp.Confidence,
		Reason: fmt.Sprintf("%s setup: %s, Structure: %s, R:R: %.2f",
			side, interp.Bias, interp.Structure, params.RiskReward),
	}
}

// Validate re-checks the ordering invariants of a constructed setup. It is a
// backstop against rule regressions; the orchestrator converts a failing
// setup into a no_trade rather than surfacing an error.
func Validate(setup models.TradeSetup) bool {
	if setup.Side == models.SideNoTrade {
		return true
	}
	if len(setup.TakeProfits) == 0 {
		return false
	}

	switch setup.Side {
	case models.SideLong:
		if setup.Entry <= setup.StopLoss {
			return false
		}
		for _, tp := range setup.TakeProfits {
			if tp <= setup.Entry {
				return false
			}
		}
	case models.SideShort:
		if setup.Entry >= setup.StopLoss {
			return false
		}
		for _, tp := range setup.TakeProfits {
			if tp >= setup.Entry {
				return false
			}
		}
	default:
		return false
	}

	return true
}

func lowest(levels []float64) float64 {
	min := levels[0]
	for _, v := range levels[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func highest(levels []float64) float64 {
	max := levels[0]
	for _, v := range levels[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
