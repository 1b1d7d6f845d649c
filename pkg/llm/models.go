package llm

import "strings"

// ModelID is the closed set of model identifiers a caller may request.
type ModelID string

const (
	ModelClaude45Sonnet ModelID = "claude-4-5-sonnet"
	ModelClaude35Sonnet ModelID = "claude-3-5-sonnet"
	ModelGPT4o          ModelID = "gpt-4o"
	ModelO3Mini         ModelID = "o3-mini"
	ModelGemini20Flash  ModelID = "gemini-2-0-flash"
	ModelDeepSeekR1     ModelID = "deepseek-r1"
	ModelDeepSeekV3     ModelID = "deepseek-v3"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = ModelClaude45Sonnet

// Provider identifies the vendor serving a model.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderDeepSeek  Provider = "deepseek"
)

// ModelInfo describes a model in the catalogue.
type ModelInfo struct {
	ID       ModelID  `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
	// APIModel is the provider-side model name.
	APIModel string `json:"api_model"`
	// Reasoning models emit <think> blocks before the answer.
	Reasoning bool `json:"reasoning"`
}

// catalogue lists models in display order.
var catalogue = []ModelInfo{
	{ID: ModelClaude45Sonnet, Name: "Claude 4.5 Sonnet", Provider: ProviderAnthropic, APIModel: "claude-sonnet-4-5"},
	{ID: ModelClaude35Sonnet, Name: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, APIModel: "claude-3-5-sonnet-latest"},
	{ID: ModelGPT4o, Name: "GPT-4o", Provider: ProviderOpenAI, APIModel: "gpt-4o"},
	{ID: ModelO3Mini, Name: "o3-mini", Provider: ProviderOpenAI, APIModel: "o3-mini", Reasoning: true},
	{ID: ModelGemini20Flash, Name: "Gemini 2.0 Flash", Provider: ProviderGemini, APIModel: "gemini-2.0-flash"},
	{ID: ModelDeepSeekR1, Name: "DeepSeek R1", Provider: ProviderDeepSeek, APIModel: "deepseek-reasoner", Reasoning: true},
	{ID: ModelDeepSeekV3, Name: "DeepSeek V3", Provider: ProviderDeepSeek, APIModel: "deepseek-chat"},
}

// openRouterModels maps DeepSeek models to their OpenRouter names.
var openRouterModels = map[ModelID]string{
	ModelDeepSeekR1: "deepseek/deepseek-r1",
	ModelDeepSeekV3: "deepseek/deepseek-v3.2",
}

// Models returns the catalogue in display order.
func Models() []ModelInfo {
	out := make([]ModelInfo, len(catalogue))
	copy(out, catalogue)
	return out
}

// ParseModelID resolves a caller-supplied identifier. Matching ignores case
// and surrounding whitespace.
func ParseModelID(s string) (ModelID, bool) {
	id := ModelID(strings.ToLower(strings.TrimSpace(s)))
	_, ok := Lookup(id)
	return id, ok
}

// Lookup returns catalogue information for a model.
func Lookup(id ModelID) (ModelInfo, bool) {
	for _, m := range catalogue {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Valid reports whether id is a known model.
func (id ModelID) Valid() bool {
	_, ok := Lookup(id)
	return ok
}

// Provider returns the vendor serving the model, or "" for unknown models.
func (id ModelID) Provider() Provider {
	m, _ := Lookup(id)
	return m.Provider
}

func (id ModelID) String() string {
	return string(id)
}
