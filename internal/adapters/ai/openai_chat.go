package ai

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// OpenAIConfig configures the OpenAI chat backend.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// OpenAIClient generates plain text through chat completions. It serves
// short free-form tasks; schema-constrained and search-grounded requests
// are rejected with ErrNotImplemented.
type OpenAIClient struct {
	client  openai.Client // NewClient returns Client (not *Client)
	limiter RateLimiter
	log     *logger.Logger
}

var _ Generator = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI generator. limiter may be nil.
func NewOpenAIClient(cfg OpenAIConfig, limiter RateLimiter) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		limiter: limiter,
		log:     logger.Get().With("component", "openai_chat"),
	}, nil
}

func (c *OpenAIClient) Name() ProviderName { return ProviderNameOpenAI }

// Generate sends the prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (resp *GenerateResponse, err error) {
	if req.Schema != nil || req.WebSearch {
		return nil, errors.Wrap(errors.ErrNotImplemented, "openai generator supports plain text requests only")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ModelCalls.WithLabelValues(string(ProviderNameOpenAI), req.Model, "rate_limited").Inc()
		return nil, err
	}

	start := time.Now()
	defer func() {
		var in, out int32
		if resp != nil {
			in, out = resp.InputTokens, resp.OutputTokens
		}
		metrics.RecordModelCall(string(ProviderNameOpenAI), req.Model, time.Since(start), in, out, err)
	}()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Temperature))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "openai %s: %v", req.Model, err)
		}
		return nil, errors.Wrapf(errors.ErrExternal, "openai %s: %v", req.Model, err)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyResponse, "openai %s returned no choices", req.Model)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return nil, errors.Wrapf(errors.ErrEmptyResponse, "openai %s", req.Model)
	}

	resp = &GenerateResponse{
		Text:         text,
		Provider:     ProviderNameOpenAI,
		Model:        req.Model,
		InputTokens:  int32(completion.Usage.PromptTokens),
		OutputTokens: int32(completion.Usage.CompletionTokens),
	}

	c.log.Debugw("OpenAI completion",
		"model", req.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)

	return resp, nil
}
