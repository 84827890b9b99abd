package workflow

import "strings"

// Provider ids understood by the workflow engine.
const (
	ProviderOpenAI    = "openai_textgen"
	ProviderGemini    = "gemini_textgen"
	ProviderBedrock   = "bedrock_textgen"
	ProviderAnthropic = "anthropic_textgen"

	DefaultProvider = ProviderOpenAI
)

// ModelCatalog resolves model names to provider ids.
type ModelCatalog struct {
	exact    map[string]string
	prefixes []modelPrefix
}

type modelPrefix struct {
	prefix   string
	provider string
}

// DefaultModelCatalog returns the models offered in the studio model picker.
func DefaultModelCatalog() *ModelCatalog {
	c := NewModelCatalog()
	c.Register("gpt-4o", ProviderOpenAI)
	c.Register("gpt-4o-mini", ProviderOpenAI)
	c.Register("gpt-4.1", ProviderOpenAI)
	c.Register("o3-mini", ProviderOpenAI)
	c.Register("gemini-1.5-flash", ProviderGemini)
	c.Register("gemini-1.5-pro", ProviderGemini)
	c.Register("gemini-2.0-flash", ProviderGemini)
	c.RegisterPrefix("gpt-", ProviderOpenAI)
	c.RegisterPrefix("gemini-", ProviderGemini)
	c.RegisterPrefix("anthropic.", ProviderBedrock)
	c.RegisterPrefix("amazon.", ProviderBedrock)
	c.RegisterPrefix("meta.", ProviderBedrock)
	c.RegisterPrefix("claude-", ProviderAnthropic)
	return c
}

// NewModelCatalog creates an empty catalog.
func NewModelCatalog() *ModelCatalog {
	return &ModelCatalog{exact: make(map[string]string)}
}

// Register maps an exact model name to a provider.
func (c *ModelCatalog) Register(model, provider string) {
	c.exact[model] = provider
}

// RegisterPrefix maps every model starting with prefix to a provider.
// Prefixes are matched in registration order.
func (c *ModelCatalog) RegisterPrefix(prefix, provider string) {
	c.prefixes = append(c.prefixes, modelPrefix{prefix: prefix, provider: provider})
}

// Resolve returns the provider for model.
func (c *ModelCatalog) Resolve(model string) (string, bool) {
	if model == "" {
		return "", false
	}
	if p, ok := c.exact[model]; ok {
		return p, true
	}
	for _, mp := range c.prefixes {
		if strings.HasPrefix(model, mp.prefix) {
			return mp.provider, true
		}
	}
	return "", false
}

// Personalities holds the canned instruction prefixes of agent personality
// presets, keyed by preset id.
type Personalities map[string]string

// DefaultPersonalities returns the built-in presets.
func DefaultPersonalities() Personalities {
	return Personalities{
		"professional": "You are a professional assistant. Respond in a clear, formal and precise manner, and keep answers focused on the task.",
		"friendly":     "You are a friendly assistant. Use a warm, conversational tone and keep explanations approachable.",
		"concise":      "You are a concise assistant. Answer in as few words as possible without losing essential information.",
		"creative":     "You are a creative assistant. Offer original ideas and explore alternatives before settling on an answer.",
		"analytical":   "You are an analytical assistant. Break problems into steps, state assumptions and justify conclusions with evidence.",
		"supportive":   "You are a patient support agent. Acknowledge the user's issue, ask clarifying questions and guide them to a resolution.",
	}
}

// Instructions combines a preset prefix with the node's own instructions,
// separated by a blank line when both are present.
func (p Personalities) Instructions(preset, instructions string) string {
	prefix := p[preset]
	switch {
	case prefix != "" && instructions != "":
		return prefix + "\n\n" + instructions
	case prefix != "":
		return prefix
	default:
		return instructions
	}
}
