package ai

import (
	"context"

	"google.golang.org/genai"

	"tradelens/pkg/errors"
)

// GenerateRequest is a single-turn generation call.
type GenerateRequest struct {
	Model  string
	Prompt string

	// Schema, when set, asks for a JSON response conforming to it
	Schema *genai.Schema

	// WebSearch lets the model ground its answer with live search results
	WebSearch bool

	Reasoning       ReasoningEffort
	MaxOutputTokens int32
	Temperature     *float32
}

// GenerateResponse carries the model text and usage accounting.
type GenerateResponse struct {
	Text         string
	Provider     ProviderName
	Model        string
	InputTokens  int32
	OutputTokens int32

	// Sources lists grounding URLs when web search was used
	Sources []string
}

// Generator is a text generation backend.
// Implementations must be safe for concurrent use.
type Generator interface {
	Name() ProviderName
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Unavailable is a Generator that always fails. It stands in for a
// provider whose credentials are not configured so callers degrade to
// their fallback paths.
type Unavailable struct {
	Provider ProviderName
}

var _ Generator = Unavailable{}

func (u Unavailable) Name() ProviderName { return u.Provider }

func (u Unavailable) Generate(context.Context, GenerateRequest) (*GenerateResponse, error) {
	return nil, errors.Wrapf(errors.ErrUnavailable, "%s generator is not configured", u.Provider)
}
