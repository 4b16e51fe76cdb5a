package models

import "fmt"

// RiskProfile selects stop width and confidence thresholds.
type RiskProfile string

const (
	RiskSafe       RiskProfile = "safe"
	RiskGrowth     RiskProfile = "growth"
	RiskAggressive RiskProfile = "aggressive"
)

// ParseRiskProfile validates a risk profile string.
func ParseRiskProfile(s string) (RiskProfile, error) {
	switch RiskProfile(s) {
	case RiskSafe, RiskGrowth, RiskAggressive:
		return RiskProfile(s), nil
	}
	return "", fmt.Errorf("unknown risk profile %q", s)
}

// ATRMultiplier returns the stop-distance multiplier for the profile.
// A wider stop is the more conservative choice.
func (r RiskProfile) ATRMultiplier() float64 {
	switch r {
	case RiskSafe:
		return 2.5
	case RiskGrowth:
		return 1.8
	case RiskAggressive:
		return 1.2
	}
	return 1.8
}

// MinConfidence returns the minimum interpretation confidence for the profile.
func (r RiskProfile) MinConfidence() float64 {
	switch r {
	case RiskSafe:
		return 0.75
	case RiskGrowth:
		return 0.65
	case RiskAggressive:
		return 0.60
	}
	return 0.65
}

// HoldingStrategy is the requested holding horizon.
type HoldingStrategy string

const (
	HoldingScalp HoldingStrategy = "scalp"
	HoldingDaily HoldingStrategy = "daily"
	HoldingSwing HoldingStrategy = "swing"
	HoldingAuto  HoldingStrategy = "auto"
)

// ParseHoldingStrategy validates a holding strategy string.
func ParseHoldingStrategy(s string) (HoldingStrategy, error) {
	switch HoldingStrategy(s) {
	case HoldingScalp, HoldingDaily, HoldingSwing, HoldingAuto:
		return HoldingStrategy(s), nil
	}
	return "", fmt.Errorf("unknown holding strategy %q", s)
}

// Side is the direction of a proposed trade.
type Side string

const (
	SideLong    Side = "long"
	SideShort   Side = "short"
	SideNoTrade Side = "no_trade"
)

// TradeSetup is the deterministic output of the decision engine. When Side is
// no_trade every price field is zero and Reason explains the rejection.
type TradeSetup struct {
	Side        Side      `json:"side"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfits []float64 `json:"take_profits"`
	RiskReward  float64   `json:"risk_reward"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason"`
}

// NoTrade returns a rejection setup carrying the interpretation confidence.
func NoTrade(confidence float64, reason string) TradeSetup {
	return TradeSetup{
		Side:        SideNoTrade,
		TakeProfits: []float64{},
		Confidence:  confidence,
		Reason:      reason,
	}
}
