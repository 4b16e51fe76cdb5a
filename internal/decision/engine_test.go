package decision

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"SignalForge/internal/domain/models"
)

func bullishInterp(confidence float64, levels ...float64) *models.MarketInterpretation {
	return &models.MarketInterpretation{
		Bias:       "bullish",
		Structure:  "trend",
		KeyLevels:  levels,
		Liquidity:  "below",
		Volatility: "high",
		Confidence: confidence,
		Reasoning:  "test",
	}
}

func highVolMetrics() *models.MarketMetrics {
	return &models.MarketMetrics{
		CurrentPrice:     100,
		ATRPercent:       2,
		Range24h:         4,
		TrendRegime:      models.TrendUp,
		VolatilityRegime: models.VolatilityHigh,
	}
}

func TestBuildSetupScenarioA(t *testing.T) {
	interp := bullishInterp(0.9, 95)
	setup := BuildTradeSetup(interp, highVolMetrics(), models.RiskGrowth)

	if setup.Side != models.SideLong {
		t.Fatalf("expected long, got %s", setup.Side)
	}
	if setup.Entry != 95 {
		t.Fatalf("expected entry 95, got %v", setup.Entry)
	}
	if math.Abs(setup.StopLoss-91.58) > 1e-9 {
		t.Fatalf("expected stop 91.58, got %v", setup.StopLoss)
	}
	// R = 3.42; targets at 1.5R, 2.5R, 4R above entry.
	want := []float64{100.13, 103.55, 108.68}
	for i := range want {
		if math.Abs(setup.TakeProfits[i]-want[i]) > 1e-8 {
			t.Fatalf("tp %d: expected %v, got %v", i, want[i], setup.TakeProfits[i])
		}
	}
	if setup.RiskReward < MinRiskReward {
		t.Fatalf("expected accepted risk/reward, got %v", setup.RiskReward)
	}
	if setup.Confidence != 0.9 {
		t.Fatalf("expected confidence copied, got %v", setup.Confidence)
	}
}

func TestBuildSetupScenarioBLowVolatility(t *testing.T) {
	interp := bullishInterp(0.9, 95)
	interp.Volatility = "low"
	setup := BuildTradeSetup(interp, highVolMetrics(), models.RiskGrowth)

	if setup.Side != models.SideNoTrade {
		t.Fatalf("expected no_trade, got %s", setup.Side)
	}
	if !strings.Contains(strings.ToLower(setup.Reason), "volatility") {
		t.Fatalf("reason should mention volatility: %q", setup.Reason)
	}
	if setup.Entry != 0 || setup.StopLoss != 0 || setup.RiskReward != 0 {
		t.Fatalf("no_trade prices must be zero: %+v", setup)
	}
}

func TestBuildSetupNeutralAlwaysRejects(t *testing.T) {
	// The confidence gate runs before bias resolution, so only values at or
	// above the aggressive threshold reach the neutral-bias rejection.
	for _, conf := range []float64{0.1, 0.6, 0.7, 0.99} {
		interp := bullishInterp(conf, 95)
		interp.Bias = "neutral"
		setup := BuildTradeSetup(interp, highVolMetrics(), models.RiskAggressive)
		if setup.Side != models.SideNoTrade {
			t.Fatalf("conf %v: expected no_trade, got %s", conf, setup.Side)
		}
		if conf >= 0.6 && !strings.Contains(setup.Reason, "conviction") {
			t.Fatalf("conf %v: unexpected reason %q", conf, setup.Reason)
		}
	}
}

func TestBuildSetupConfidenceGates(t *testing.T) {
	cases := []struct {
		risk      models.RiskProfile
		threshold float64
	}{
		{models.RiskSafe, 0.75},
		{models.RiskGrowth, 0.65},
		{models.RiskAggressive, 0.60},
	}
	for _, tc := range cases {
		below := bullishInterp(tc.threshold-0.01, 95)
		setup := BuildTradeSetup(below, highVolMetrics(), tc.risk)
		if setup.Side != models.SideNoTrade {
			t.Fatalf("%s: expected rejection below %v", tc.risk, tc.threshold)
		}
		if !strings.Contains(setup.Reason, "confidence") && !strings.Contains(setup.Reason, "Low confidence") {
			t.Fatalf("%s: reason missing comparison: %q", tc.risk, setup.Reason)
		}

		at := bullishInterp(tc.threshold, 95)
		setup = BuildTradeSetup(at, highVolMetrics(), tc.risk)
		if setup.Side == models.SideNoTrade && strings.Contains(setup.Reason, "confidence") {
			t.Fatalf("%s: confidence at threshold must pass the gate", tc.risk)
		}
	}
}

func TestBuildSetupBearishEntry(t *testing.T) {
	interp := &models.MarketInterpretation{
		Bias:       "bearish",
		Structure:  "reversal",
		KeyLevels:  []float64{95, 108},
		Liquidity:  "above",
		Volatility: "high",
		Confidence: 0.8,
		Reasoning:  "test",
	}
	setup := BuildTradeSetup(interp, highVolMetrics(), models.RiskGrowth)
	if setup.Side != models.SideShort {
		t.Fatalf("expected short, got %s", setup.Side)
	}
	// max(currentPrice, highest key level) = 108.
	if setup.Entry != 108 {
		t.Fatalf("expected entry 108, got %v", setup.Entry)
	}
	if setup.StopLoss <= setup.Entry {
		t.Fatalf("short stop must be above entry")
	}
}

func TestBuildSetupNoKeyLevelsUsesCurrentPrice(t *testing.T) {
	setup := BuildTradeSetup(bullishInterp(0.9), highVolMetrics(), models.RiskGrowth)
	if setup.Entry != 100 {
		t.Fatalf("expected entry at current price, got %v", setup.Entry)
	}
}

func TestBuildSetupPoorRiskRewardRejected(t *testing.T) {
	// A support far below price widens the first target relative to the stop
	// computed from the entry, but the fixed 1.5R first target keeps the
	// ratio at 1.5. Force rejection instead with a zero ATR: stop distance 0
	// makes risk/reward 0.
	m := highVolMetrics()
	m.ATRPercent = 0
	setup := BuildTradeSetup(bullishInterp(0.9, 95), m, models.RiskGrowth)
	if setup.Side != models.SideNoTrade {
		t.Fatalf("expected no_trade on degenerate risk/reward, got %s", setup.Side)
	}
	if !strings.Contains(setup.Reason, "R:R") {
		t.Fatalf("reason should carry the ratio: %q", setup.Reason)
	}
}

func TestBuildSetupDeterministic(t *testing.T) {
	interp := bullishInterp(0.9, 95, 97, 102)
	m := highVolMetrics()
	first := BuildTradeSetup(interp, m, models.RiskSafe)
	for i := 0; i < 10; i++ {
		if got := BuildTradeSetup(interp, m, models.RiskSafe); !reflect.DeepEqual(first, got) {
			t.Fatalf("non-deterministic output: %+v vs %+v", first, got)
		}
	}
}

func TestValidateCatchesInvertedSetups(t *testing.T) {
	good := BuildTradeSetup(bullishInterp(0.9, 95), highVolMetrics(), models.RiskGrowth)
	if !Validate(good) {
		t.Fatalf("valid setup rejected")
	}

	bad := good
	bad.StopLoss = good.Entry + 1
	if Validate(bad) {
		t.Fatalf("inverted long stop accepted")
	}

	bad = good
	bad.TakeProfits = []float64{good.Entry - 1}
	if Validate(bad) {
		t.Fatalf("take profit below long entry accepted")
	}

	bad = good
	bad.TakeProfits = nil
	if Validate(bad) {
		t.Fatalf("empty take profits accepted")
	}

	if !Validate(models.NoTrade(0, "whatever")) {
		t.Fatalf("no_trade must always validate")
	}
}
