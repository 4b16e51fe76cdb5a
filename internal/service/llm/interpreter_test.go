package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SignalForge/internal/domain/errs"
	"SignalForge/internal/domain/models"
	"SignalForge/pkg/logger"
)

const validInterpretation = `{
	"bias": "bullish",
	"structure": "trend",
	"key_levels": [94000, 97500],
	"liquidity": "above",
	"volatility": "normal",
	"confidence": 0.82,
	"reasoning": "Higher highs with rising volume."
}`

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func testMetrics() *models.MarketMetrics {
	return &models.MarketMetrics{
		CurrentPrice:     95000,
		ATRPercent:       2.1,
		Range24h:         3.4,
		TrendRegime:      models.TrendUp,
		VolatilityRegime: models.VolatilityNormal,
	}
}

func completionServer(t *testing.T, reply func(call int64) string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply(n)}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return srv, &calls
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"bias":"bullish"}`, `{"bias":"bullish"}`},
		{"fenced", "```json\n{\"bias\":\"bullish\"}\n```", `{"bias":"bullish"}`},
		{"fenced no lang", "```\n{\"bias\":\"bullish\"}\n```", `{"bias":"bullish"}`},
		{"prose wrapped", `Here is the analysis: {"bias":"bullish"} hope it helps`, `{"bias":"bullish"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseInterpretation(t *testing.T) {
	i := NewInterpreter(testLogger(t), nil)

	mi, err := i.parseInterpretation(validInterpretation)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mi.Bias != "bullish" || mi.Confidence != 0.82 || len(mi.KeyLevels) != 2 {
		t.Fatalf("interpretation mismatch: %+v", mi)
	}
}

func TestParseInterpretationRejectsInvalid(t *testing.T) {
	i := NewInterpreter(testLogger(t), nil)

	cases := []struct {
		name string
		in   string
	}{
		{"not json", "the market looks bullish"},
		{"bad bias", `{"bias":"sideways","structure":"trend","key_levels":[1],"liquidity":"above","volatility":"normal","confidence":0.5,"reasoning":"x"}`},
		{"confidence out of range", `{"bias":"bullish","structure":"trend","key_levels":[1],"liquidity":"above","volatility":"normal","confidence":1.5,"reasoning":"x"}`},
		{"missing key levels", `{"bias":"bullish","structure":"trend","liquidity":"above","volatility":"normal","confidence":0.5,"reasoning":"x"}`},
		{"missing reasoning", `{"bias":"bullish","structure":"trend","key_levels":[1],"liquidity":"above","volatility":"normal","confidence":0.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := i.parseInterpretation(tc.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if errs.KindOf(err) != errs.KindParse {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestInterpretEndToEnd(t *testing.T) {
	srv, calls := completionServer(t, func(int64) string {
		return "```json\n" + validInterpretation + "\n```"
	})
	defer srv.Close()

	client := NewClient(testLogger(t),
		WithBaseURL(srv.URL),
		WithAPIKey("test-key"),
		WithModel("gpt-4o"))
	i := NewInterpreter(testLogger(t), client)

	mi, err := i.Interpret(context.Background(), "BTCUSDT", testMetrics(), nil, nil)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if mi.Bias != "bullish" || mi.Structure != "trend" {
		t.Fatalf("interpretation mismatch: %+v", mi)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestInterpretRetriesInvalidResponse(t *testing.T) {
	srv, calls := completionServer(t, func(call int64) string {
		if call == 1 {
			return "I cannot produce JSON right now."
		}
		return validInterpretation
	})
	defer srv.Close()

	client := NewClient(testLogger(t),
		WithBaseURL(srv.URL),
		WithAPIKey("test-key"))
	i := NewInterpreter(testLogger(t), client,
		WithInterpretRetries(3),
		WithInterpretBaseDelay(time.Millisecond))

	mi, err := i.Interpret(context.Background(), "BTCUSDT", testMetrics(), nil, nil)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if mi.Bias != "bullish" {
		t.Fatalf("bias = %q", mi.Bias)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestBuildInterpretationPromptIncludesVision(t *testing.T) {
	candles := []models.Candle{
		{OpenTime: 1754006400000, Open: 100, High: 105, Low: 99, Close: 104, Volume: 10},
	}
	vision := &models.VisionAnalysis{
		SupportLevels:    []float64{94000},
		ResistanceLevels: []float64{97500},
		Patterns:         []string{"ascending triangle"},
		Structure:        "trend",
		Description:      "Clean uptrend.",
	}

	prompt := buildInterpretationPrompt("BTCUSDT", testMetrics(), candles, vision)

	for _, want := range []string{"BTCUSDT", "ATR: 2.1000%", "ascending triangle", "94000", "Clean uptrend."} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	withoutVision := buildInterpretationPrompt("BTCUSDT", testMetrics(), candles, nil)
	if strings.Contains(withoutVision, "Chart image analysis") {
		t.Fatal("vision block present without vision input")
	}
}

func TestBuildInterpretationPromptWindowChange(t *testing.T) {
	candles := []models.Candle{
		{OpenTime: 1754006400000, Open: 100, High: 105, Low: 99, Close: 104, Volume: 10},
		{OpenTime: 1754020800000, Open: 104, High: 111, Low: 103, Close: 110, Volume: 12},
	}

	prompt := buildInterpretationPrompt("BTCUSDT", testMetrics(), candles, nil)

	// 100 -> 110 across the window.
	if !strings.Contains(prompt, "Window change: 10.00%") {
		t.Fatalf("prompt missing window change line:\n%s", prompt)
	}

	empty := buildInterpretationPrompt("BTCUSDT", testMetrics(), nil, nil)
	if strings.Contains(empty, "Window change") {
		t.Fatal("window change line present without candles")
	}
}
