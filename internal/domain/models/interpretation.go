package models

// MarketInterpretation is the structured output of the interpretation model.
// It arrives from an untrusted source and must pass schema validation before
// entering the decision engine. Validation tags mirror the response contract.
type MarketInterpretation struct {
	Bias       string    `json:"bias" validate:"required,oneof=bullish bearish neutral"`
	Structure  string    `json:"structure" validate:"required,oneof=trend range breakout reversal"`
	KeyLevels  []float64 `json:"key_levels" validate:"required"`
	Liquidity  string    `json:"liquidity" validate:"required,oneof=above below both none"`
	Volatility string    `json:"volatility" validate:"required,oneof=low normal high"`
	Confidence float64   `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning  string    `json:"reasoning" validate:"required"`
}

// VisionAnalysis is the structured output of the optional chart-image model.
type VisionAnalysis struct {
	SupportLevels    []float64 `json:"support_levels"`
	ResistanceLevels []float64 `json:"resistance_levels"`
	Patterns         []string  `json:"patterns"`
	Structure        string    `json:"structure"`
	Description      string    `json:"description"`
}
