package decision

import (
	"SignalForge/internal/domain/models"
	"SignalForge/pkg/util"
)

const priceDecimals = 8

// riskRewardTargets are the take-profit distances in R-multiples, identical
// for every risk profile.
var riskRewardTargets = []float64{1.5, 2.5, 4}

// RiskParameters is the output of the risk calculation for one entry.
type RiskParameters struct {
	Entry       float64
	StopLoss    float64
	TakeProfits []float64
	RiskReward  float64
}

// StopLoss places the stop at an ATR-scaled distance from entry, on the side
// opposite the trade direction.
func StopLoss(entry float64, metrics *models.MarketMetrics, risk models.RiskProfile, side models.Side) float64 {
	stopDistance := metrics.ATRPercent / 100 * entry * risk.ATRMultiplier()

	if side == models.SideShort {
		return util.RoundTo(entry+stopDistance, priceDecimals)
	}
	return util.RoundTo(entry-stopDistance, priceDecimals)
}

// TakeProfits returns the long-side targets at fixed R-multiples above entry.
// Short trades mirror these about the entry price afterwards.
func TakeProfits(entry, stopLoss float64) []float64 {
	riskDistance := entry - stopLoss
	if riskDistance < 0 {
		riskDistance = -riskDistance
	}

	targets := make([]float64, len(riskRewardTargets))
	for i, rr := range riskRewardTargets {
		targets[i] = util.RoundTo(entry+riskDistance*rr, priceDecimals)
	}
	return targets
}

// CalculateRisk derives stop, targets and risk/reward for a candidate entry.
// It never rejects a trade; rejection policy lives in the decision engine.
func CalculateRisk(entry float64, metrics *models.MarketMetrics, risk models.RiskProfile, side models.Side) RiskParameters {
	stopLoss := StopLoss(entry, metrics, risk, side)
	takeProfits := TakeProfits(entry, stopLoss)

	if side == models.SideShort {
		// Mirror the long-side targets about the entry.
		for i, tp := range takeProfits {
			takeProfits[i] = util.RoundTo(entry-(tp-entry), priceDecimals)
		}
	}

	return RiskParameters{
		Entry:       entry,
		StopLoss:    stopLoss,
		TakeProfits: takeProfits,
		RiskReward:  util.RiskReward(entry, stopLoss, takeProfits[0]),
	}
}
