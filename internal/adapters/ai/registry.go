package ai

import (
	"context"
	"sort"
	"sync"

	"tradelens/internal/adapters/config"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Registry stores the configured generators by provider name.
type Registry struct {
	generators map[ProviderName]Generator
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[ProviderName]Generator),
	}
}

// Register adds a generator to the registry.
func (r *Registry) Register(g Generator) error {
	if g == nil {
		return errors.Wrap(errors.ErrInvalidInput, "generator is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := g.Name()
	if _, exists := r.generators[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "generator %s", name)
	}

	r.generators[name] = g
	return nil
}

// Get returns the generator by name.
func (r *Registry) Get(name ProviderName) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "generator %s", name)
	}

	return g, nil
}

// GetOrUnavailable returns the named generator, or one that always fails
// with ErrUnavailable when it is not registered.
func (r *Registry) GetOrUnavailable(name ProviderName) Generator {
	g, err := r.Get(name)
	if err != nil {
		return Unavailable{Provider: name}
	}
	return g
}

// MustGet returns the generator by name and panics if missing.
func (r *Registry) MustGet(name ProviderName) Generator {
	g, err := r.Get(name)
	if err != nil {
		panic(err)
	}

	return g
}

// List returns registered provider names in sorted order.
func (r *Registry) List() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]ProviderName, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

// BuildRegistry registers one generator per provider that has credentials.
// A provider without a key is left out; callers use GetOrUnavailable so the
// pipeline still runs on its fallback paths.
func BuildRegistry(ctx context.Context, cfg config.AIConfig) (*Registry, error) {
	log := logger.Get().With("component", "ai_registry")
	registry := NewRegistry()

	if cfg.GeminiKey != "" {
		gemini, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:          cfg.GeminiKey,
			ReasoningBudget: cfg.ReasoningBudget,
		}, newLimiter(ProviderNameGoogle, cfg))
		if err != nil {
			return nil, errors.Wrap(err, "init gemini")
		}
		if err := registry.Register(gemini); err != nil {
			return nil, err
		}
	} else {
		log.Warnw("GEMINI_API_KEY not set, analysis will serve fallback data")
	}

	if cfg.OpenAIKey != "" {
		openaiClient, err := NewOpenAIClient(OpenAIConfig{APIKey: cfg.OpenAIKey}, newLimiter(ProviderNameOpenAI, cfg))
		if err != nil {
			return nil, errors.Wrap(err, "init openai")
		}
		if err := registry.Register(openaiClient); err != nil {
			return nil, err
		}
	} else if cfg.QueryProvider == string(ProviderNameOpenAI) {
		log.Warnw("AI_QUERY_PROVIDER is openai but OPENAI_API_KEY is not set")
	}

	log.Infow("AI providers registered", "providers", registry.List())
	return registry, nil
}

func newLimiter(provider ProviderName, cfg config.AIConfig) RateLimiter {
	if cfg.RatePerMinute <= 0 {
		return NewNoOpLimiter()
	}
	return NewLimiter(provider, cfg.RatePerMinute, cfg.RateBurst)
}
