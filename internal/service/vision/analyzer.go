package vision

import (
	"context"
	"encoding/json"

	"SignalForge/internal/domain/errs"
	"SignalForge/internal/domain/models"
	"SignalForge/internal/service/llm"
	"SignalForge/pkg/logger"
)

const chartSystemPrompt = `You are a chart analyst. You receive a candlestick chart screenshot and respond with a single JSON object, no prose, no markdown fences:
{
  "support_levels": [number, ...],
  "resistance_levels": [number, ...],
  "patterns": ["pattern name", ...],
  "structure": "short structure label",
  "description": "one or two sentences"
}
Levels are absolute prices read from the chart axis. Use empty arrays when nothing is visible.`

const chartUserPrompt = "Identify support and resistance levels, chart patterns and overall structure in this chart."

// Analyzer extracts levels and patterns from a user-supplied chart image.
// The pipeline treats every failure here as non-fatal; callers log and
// continue without the analysis.
type Analyzer struct {
	logger *logger.Logger
	client *llm.Client
}

// NewAnalyzer creates a chart image analyzer over the given completion client.
func NewAnalyzer(lgr *logger.Logger, client *llm.Client) *Analyzer {
	return &Analyzer{logger: lgr, client: client}
}

// AnalyzeImage sends the base64-encoded chart to the vision model and parses
// the structured reply.
func (a *Analyzer) AnalyzeImage(ctx context.Context, imageBase64 string) (*models.VisionAnalysis, error) {
	if imageBase64 == "" {
		return nil, errs.Validation("empty image payload")
	}

	raw, err := a.client.CompleteWithImage(ctx, chartSystemPrompt, chartUserPrompt, imageBase64)
	if err != nil {
		return nil, err
	}

	var analysis models.VisionAnalysis
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &analysis); err != nil {
		return nil, errs.Parse("decode chart analysis", err)
	}

	return &analysis, nil
}
