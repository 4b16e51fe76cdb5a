package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"SignalForge/internal/domain/errs"
	"SignalForge/internal/domain/models"
	"SignalForge/pkg/logger"
	"SignalForge/pkg/retry"

	"github.com/go-playground/validator/v10"
)

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// Interpreter turns market metrics and candles into a validated structured
// interpretation. Transient upstream failures and schema-invalid responses
// are retried with exponential backoff; a fresh completion often validates.
type Interpreter struct {
	logger     *logger.Logger
	client     *Client
	validate   *validator.Validate
	maxRetries int
	baseDelay  time.Duration
}

// InterpreterOption configures Interpreter.
type InterpreterOption func(*Interpreter)

// WithInterpretRetries sets the attempt count per interpretation.
func WithInterpretRetries(n int) InterpreterOption {
	return func(i *Interpreter) {
		i.maxRetries = n
	}
}

// WithInterpretBaseDelay sets the first backoff delay.
func WithInterpretBaseDelay(d time.Duration) InterpreterOption {
	return func(i *Interpreter) {
		i.baseDelay = d
	}
}

// NewInterpreter creates an interpreter over the given completion client.
func NewInterpreter(lgr *logger.Logger, client *Client, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		logger:     lgr,
		client:     client,
		validate:   validator.New(),
		maxRetries: 3,
		baseDelay:  time.Second,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Interpret requests a market interpretation and returns it once it passes
// schema validation.
func (i *Interpreter) Interpret(ctx context.Context, symbol string, metrics *models.MarketMetrics, candles []models.Candle, vision *models.VisionAnalysis) (*models.MarketInterpretation, error) {
	prompt := buildInterpretationPrompt(symbol, metrics, candles, vision)

	var interpretation *models.MarketInterpretation
	err := retry.Do(ctx, func(ctx context.Context) error {
		raw, err := i.client.Complete(ctx, interpretationSystemPrompt, prompt)
		if err != nil {
			return err
		}

		parsed, err := i.parseInterpretation(raw)
		if err != nil {
			return err
		}
		interpretation = parsed
		return nil
	},
		retry.WithAttempts(i.maxRetries),
		retry.WithBaseDelay(i.baseDelay),
		retry.WithRetryIf(errs.Retryable),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			i.logger.Warn("interpretation retry",
				logger.String("symbol", symbol),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	return interpretation, nil
}

func (i *Interpreter) parseInterpretation(raw string) (*models.MarketInterpretation, error) {
	cleaned := ExtractJSON(raw)

	var interpretation models.MarketInterpretation
	if err := json.Unmarshal([]byte(cleaned), &interpretation); err != nil {
		return nil, errs.Parse("decode interpretation", err)
	}
	if err := i.validate.Struct(&interpretation); err != nil {
		return nil, errs.Parse("interpretation schema", err)
	}

	return &interpretation, nil
}

// ExtractJSON strips a surrounding markdown code fence and, failing that,
// falls back to the outermost brace-delimited object. Models occasionally
// wrap the JSON in fences or prose despite instructions.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if m := fenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	if json.Valid([]byte(s)) {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
