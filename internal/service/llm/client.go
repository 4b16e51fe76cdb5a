package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalForge/internal/domain/errs"
	phttp "SignalForge/pkg/http"
	"SignalForge/pkg/logger"
)

// Provider selects a chat-completions backend.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"

	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"
)

// Message is a chat message. Content is either a string or a slice of
// contentPart for multimodal requests.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	logger      *logger.Logger
	http        *phttp.Client
	provider    Provider
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithProvider selects the backend. The base URL follows the provider unless
// overridden explicitly.
func WithProvider(p Provider) ClientOption {
	return func(c *Client) {
		c.provider = p
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the provider default base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a chat-completions client.
func NewClient(lgr *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		logger:      lgr,
		provider:    ProviderOpenAI,
		model:       "gpt-4o",
		maxTokens:   1024,
		temperature: 0.3,
		timeout:     45 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		switch c.provider {
		case ProviderDeepSeek:
			c.baseURL = deepSeekBaseURL
		default:
			c.baseURL = openAIBaseURL
		}
	}

	c.http = phttp.NewClient(phttp.WithTimeout(c.timeout))
	return c
}

// Complete sends a system plus user prompt and returns the completion text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}

// CompleteWithImage sends a multimodal request with a base64-encoded PNG
// attached to the user message.
func (c *Client) CompleteWithImage(ctx context.Context, systemPrompt, userPrompt, imageBase64 string) (string, error) {
	return c.chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: userPrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:image/png;base64," + imageBase64}},
		}},
	})
}

func (c *Client) chat(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp chatResponse
	err := c.http.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    c.baseURL + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
		},
		Body: chatRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		},
	}, &resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errs.Timeout("completion timed out", err)
		}
		return "", errs.Upstream("completion request failed", err)
	}

	if resp.Error != nil {
		return "", errs.Upstream(fmt.Sprintf("api error %s: %s", resp.Error.Type, resp.Error.Message), nil)
	}
	if len(resp.Choices) == 0 {
		return "", errs.Parse("empty completion response", nil)
	}

	return resp.Choices[0].Message.Content, nil
}
