package ai

// DefaultModel returns the model used when none is configured for provider.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGroq, "":
		return "llama3-70b-8192"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	case ProviderGemini:
		return "gemini-1.5-flash"
	case ProviderOllama:
		return "llama3:latest"
	}
	return ""
}

// RecommendModel returns a recommended model name for a given tier and provider.
// If provider is empty, defaults to groq. Tiers: cheap|balanced|high-context.
func RecommendModel(provider, tier string) (string, bool) {
	if provider == "" {
		provider = ProviderGroq
	}
	switch tier {
	case "cheap":
		switch provider {
		case ProviderGroq:
			return "llama3-8b-8192", true
		case ProviderOpenAI:
			return "gpt-4o-mini", true
		case ProviderOpenRouter:
			return "deepseek/deepseek-r1:free", true
		case ProviderGemini:
			return "gemini-1.5-flash", true
		case ProviderOllama:
			return "phi3:mini-4k-instruct", true
		}
	case "balanced":
		if m := DefaultModel(provider); m != "" {
			return m, true
		}
	case "high-context":
		switch provider {
		case ProviderGroq:
			return "llama-3.1-70b-versatile", true
		case ProviderOpenAI:
			return "gpt-4o", true
		case ProviderOpenRouter:
			return "anthropic/claude-3.5-sonnet", true // ~200k context
		case ProviderGemini:
			return "gemini-1.5-pro", true
		}
	}
	return "", false
}
