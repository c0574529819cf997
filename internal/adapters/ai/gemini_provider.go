package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey          string
	ReasoningBudget int32

	// BaseURL overrides the API endpoint; empty uses the default
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiClient generates content through the Gemini API. It supports
// response schemas, Google Search grounding and thinking budgets.
type GeminiClient struct {
	client          *genai.Client
	limiter         RateLimiter
	reasoningBudget int32
	log             *logger.Logger
}

var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini generator. limiter may be nil.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, limiter RateLimiter) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key is required")
	}
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiClient{
		client:          client,
		limiter:         limiter,
		reasoningBudget: cfg.ReasoningBudget,
		log:             logger.Get().With("component", "gemini"),
	}, nil
}

func (c *GeminiClient) Name() ProviderName { return ProviderNameGoogle }

// Generate runs one generateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (resp *GenerateResponse, err error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ModelCalls.WithLabelValues(string(ProviderNameGoogle), req.Model, "rate_limited").Inc()
		return nil, err
	}

	start := time.Now()
	defer func() {
		var in, out int32
		if resp != nil {
			in, out = resp.InputTokens, resp.OutputTokens
		}
		metrics.RecordModelCall(string(ProviderNameGoogle), req.Model, time.Since(start), in, out, err)
	}()

	result, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), c.buildConfig(req))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "gemini %s: %v", req.Model, err)
		}
		return nil, errors.Wrapf(errors.ErrExternal, "gemini %s: %v", req.Model, err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, errors.Wrapf(errors.ErrEmptyResponse, "gemini %s", req.Model)
	}

	resp = &GenerateResponse{
		Text:     text,
		Provider: ProviderNameGoogle,
		Model:    req.Model,
		Sources:  groundingSources(result),
	}
	if result.UsageMetadata != nil {
		resp.InputTokens = result.UsageMetadata.PromptTokenCount
		resp.OutputTokens = result.UsageMetadata.CandidatesTokenCount
	}

	c.log.Debugw("Gemini generation complete",
		"model", req.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"sources", len(resp.Sources),
		"duration", time.Since(start),
	)

	return resp, nil
}

func (c *GeminiClient) buildConfig(req GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = defaultOutputTokens
	}

	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}

	if req.WebSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	switch req.Reasoning {
	case ReasoningHigh:
		if c.reasoningBudget > 0 {
			budget := c.reasoningBudget
			cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
		}
	case ReasoningLow:
		budget := lowReasoningBudget
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	return cfg
}

func groundingSources(result *genai.GenerateContentResponse) []string {
	if len(result.Candidates) == 0 || result.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var sources []string
	seen := make(map[string]struct{})
	for _, chunk := range result.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		if _, ok := seen[chunk.Web.URI]; ok {
			continue
		}
		seen[chunk.Web.URI] = struct{}{}
		sources = append(sources, chunk.Web.URI)
	}
	return sources
}
