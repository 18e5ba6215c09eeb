package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultModelPerProvider(t *testing.T) {
	assert.Equal(t, "llama3-70b-8192", DefaultModel(ProviderGroq))
	assert.Equal(t, "llama3-70b-8192", DefaultModel(""))
	for _, p := range Providers() {
		m := DefaultModel(p)
		if assert.NotEmpty(t, m, p) {
			info, ok := LookupModel(m)
			assert.True(t, ok, m)
			assert.Equal(t, p, info.Provider)
		}
	}
}

func TestRecommendModel(t *testing.T) {
	name, ok := RecommendModel("", "cheap")
	assert.True(t, ok)
	assert.Equal(t, "llama3-8b-8192", name)

	name, ok = RecommendModel(ProviderGemini, "high-context")
	assert.True(t, ok)
	assert.Equal(t, "gemini-1.5-pro", name)

	_, ok = RecommendModel(ProviderOllama, "high-context")
	assert.False(t, ok)
}

func TestModelsForAndCost(t *testing.T) {
	groq := ModelsFor(ProviderGroq)
	assert.NotEmpty(t, groq)
	for i := 1; i < len(groq); i++ {
		assert.Less(t, groq[i-1].Name, groq[i].Name)
	}
	cost, ok := EstimateCostUSD("gpt-4o", 1000, 1000)
	assert.True(t, ok)
	assert.InDelta(t, 0.02, cost, 1e-9)
	_, ok = EstimateCostUSD("unknown", 1, 1)
	assert.False(t, ok)
}
