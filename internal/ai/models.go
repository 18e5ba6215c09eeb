package ai

import (
	"encoding/json"
	"os"
	"sort"
)

// Model metadata and simple pricing helpers for UX warnings.
// Prices are illustrative and should be verified against provider docs.

type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	// Groq
	"llama3-70b-8192":         {Name: "llama3-70b-8192", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.00059, OutputPerK: 0.00079},
	"llama3-8b-8192":          {Name: "llama3-8b-8192", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.00005, OutputPerK: 0.00008},
	"llama-3.1-70b-versatile": {Name: "llama-3.1-70b-versatile", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00059, OutputPerK: 0.00079},
	"mixtral-8x7b-32768":      {Name: "mixtral-8x7b-32768", Provider: ProviderGroq, ContextTokens: 32768, InputPerK: 0.00024, OutputPerK: 0.00024},
	"gemma2-9b-it":            {Name: "gemma2-9b-it", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.0002, OutputPerK: 0.0002},
	// OpenAI
	"gpt-4o":      {Name: "gpt-4o", Provider: ProviderOpenAI, ContextTokens: 128000, InputPerK: 0.005, OutputPerK: 0.015},
	"gpt-4o-mini": {Name: "gpt-4o-mini", Provider: ProviderOpenAI, ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	// OpenRouter
	"openai/gpt-4o-mini":                {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000, InputPerK: 0.0006, OutputPerK: 0.0024},
	"anthropic/claude-3.5-sonnet":       {Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
	"deepseek/deepseek-r1:free":         {Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"meta-llama/llama-3.1-70b-instruct": {Name: "meta-llama/llama-3.1-70b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},
	// Gemini
	"gemini-1.5-flash": {Name: "gemini-1.5-flash", Provider: ProviderGemini, ContextTokens: 1000000, InputPerK: 0.0002, OutputPerK: 0.0008},
	"gemini-1.5-pro":   {Name: "gemini-1.5-pro", Provider: ProviderGemini, ContextTokens: 1000000, InputPerK: 0.00125, OutputPerK: 0.005},
	// Common local (Ollama) tags
	"llama3:latest":         {Name: "llama3:latest", Provider: ProviderOllama, ContextTokens: 8192},
	"llama3.1:8b-instruct":  {Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
	"mistral:7b-instruct":   {Name: "mistral:7b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
	"phi3:mini-4k-instruct": {Name: "phi3:mini-4k-instruct", Provider: ProviderOllama, ContextTokens: 4096},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ModelsFor lists catalog entries for provider, sorted by name.
func ModelsFor(provider string) []ModelInfo {
	var out []ModelInfo
	for _, m := range models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example JSON entry:
// { "gpt-4o-mini": {"Name":"gpt-4o-mini","Provider":"openai","ContextTokens":128000} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a copy of the in-memory catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}

// OverrideCatalog replaces the in-memory catalog.
func OverrideCatalog(m map[string]ModelInfo) {
	models = make(map[string]ModelInfo, len(m))
	for k, v := range m {
		models[k] = v
	}
}
