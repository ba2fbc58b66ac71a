package backend

// Tier is a coarse cost/quality bucket used to narrow model selection.
type Tier string

// Known tiers.
const (
	TierPremium     Tier = "premium"
	TierStandard    Tier = "standard"
	TierEconomy     Tier = "economy"
	TierSpecialized Tier = "specialized"
)

// UseCase is a caller-declared category of work.
type UseCase string

// Known use cases.
const (
	UseCaseCodeGeneration UseCase = "code_generation"
	UseCaseChat           UseCase = "chat"
	UseCaseAnalysis       UseCase = "analysis"
	UseCaseRefactoring    UseCase = "refactoring"
	UseCaseDocumentation  UseCase = "documentation"
	UseCaseGeneral        UseCase = "general"
)

// Capabilities describes what a model can do and what it costs.
type Capabilities struct {
	// MaxContextTokens is the model's context window.
	MaxContextTokens int `json:"max_context_tokens"`
	// Tools indicates tool/function-calling support.
	Tools bool `json:"tools"`
	// Streaming indicates streaming response support.
	Streaming bool `json:"streaming"`
	// Vision indicates image input support.
	Vision bool `json:"vision"`
	// Code indicates the model is tuned for code.
	Code bool `json:"code"`
	// ReasoningQuality scores reasoning strength in [0,1].
	ReasoningQuality float64 `json:"reasoning_quality"`
	// SpeedScore scores response speed in [0,1].
	SpeedScore float64 `json:"speed_score"`
	// CostPer1K is the blended cost per 1k tokens in USD.
	CostPer1K float64 `json:"cost_per_1k"`
	// Languages lists natural languages the model handles well.
	Languages []string `json:"languages,omitempty"`
}

// ModelSpec is a static catalog entry describing one model on one backend.
type ModelSpec struct {
	Backend      string       `json:"backend"`
	Model        string       `json:"model"`
	Tier         Tier         `json:"tier"`
	Capabilities Capabilities `json:"capabilities"`
	UseCases     []UseCase    `json:"use_cases,omitempty"`
	// Priority is the base selection score; higher wins before bonuses.
	Priority int `json:"priority"`
}

// SupportsUseCase reports whether the spec declares the given use case.
func (s ModelSpec) SupportsUseCase(u UseCase) bool {
	for _, uc := range s.UseCases {
		if uc == u {
			return true
		}
	}
	return false
}
