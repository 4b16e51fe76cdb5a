package models

// Candle is one OHLCV bar for a fixed interval.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// MarketData bundles the two timeframes used by the pipeline: a higher
// timeframe for the metrics and interpretation, and a lower one for recent
// price context in the prompt.
type MarketData struct {
	Symbol string   `json:"symbol"`
	HTF    []Candle `json:"htf"`
	LTF    []Candle `json:"ltf"`
}

// TrendRegime classifies recent directional movement.
type TrendRegime string

const (
	TrendUp       TrendRegime = "uptrend"
	TrendDown     TrendRegime = "downtrend"
	TrendSideways TrendRegime = "sideways"
)

// VolatilityRegime classifies ATR-derived volatility.
type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "low"
	VolatilityNormal VolatilityRegime = "normal"
	VolatilityHigh   VolatilityRegime = "high"
)

// MarketMetrics holds statistics derived fresh from a candle series.
// SMA values are nil when there is not enough history.
type MarketMetrics struct {
	CurrentPrice     float64          `json:"current_price"`
	ATRPercent       float64          `json:"atr_percent"`
	Range24h         float64          `json:"range_24h"`
	TrendRegime      TrendRegime      `json:"trend_regime"`
	VolatilityRegime VolatilityRegime `json:"volatility_regime"`
	SMA20            *float64         `json:"sma20,omitempty"`
	SMA50            *float64         `json:"sma50,omitempty"`
}
