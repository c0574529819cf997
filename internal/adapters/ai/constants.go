package ai

// ProviderName identifies a generative model backend
type ProviderName string

const (
	ProviderNameGoogle ProviderName = "gemini"
	ProviderNameOpenAI ProviderName = "openai"
)

func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameGoogle, ProviderNameOpenAI:
		return true
	default:
		return false
	}
}

// ReasoningEffort is a hint for how much internal reasoning a model may spend
type ReasoningEffort string

const (
	ReasoningNone ReasoningEffort = ""
	ReasoningLow  ReasoningEffort = "low"
	ReasoningHigh ReasoningEffort = "high"
)

const (
	lowReasoningBudget  int32 = 1024
	defaultOutputTokens int32 = 8192
)
