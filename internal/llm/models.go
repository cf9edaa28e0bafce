// Package llm routes chat requests to the provider that serves the requested model.
package llm

import (
	"fmt"
	"slices"
)

// Provider names a backend family with its own authentication and wire protocol.
type Provider string

const (
	ProviderOpenAI    Provider = "OpenAI"
	ProviderAzure     Provider = "Azure"
	ProviderAnthropic Provider = "Anthropic"
	ProviderOllama    Provider = "Ollama"
	ProviderVLLM      Provider = "NCSAHostedVLM"
	// ProviderWebLLM models run in the browser and can never be served here.
	ProviderWebLLM Provider = "WebLLM"
)

// ModelInfo describes one supported model.
type ModelInfo struct {
	ID         string
	Name       string
	TokenLimit int
	Vision     bool
	Provider   Provider
}

var openAIModels = []ModelInfo{
	{ID: "gpt-4o", Name: "GPT-4o", TokenLimit: 128000, Vision: true},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", TokenLimit: 128000, Vision: true},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", TokenLimit: 128000, Vision: true},
	{ID: "gpt-4", Name: "GPT-4", TokenLimit: 8192},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", TokenLimit: 16385},
	{ID: "o3-mini", Name: "o3-mini", TokenLimit: 200000},
}

var azureModels = []ModelInfo{
	{ID: "azure-gpt-4o", Name: "GPT-4o (Azure)", TokenLimit: 128000, Vision: true},
	{ID: "azure-gpt-4o-mini", Name: "GPT-4o mini (Azure)", TokenLimit: 128000, Vision: true},
	{ID: "azure-gpt-4", Name: "GPT-4 (Azure)", TokenLimit: 8192},
	{ID: "azure-gpt-35-turbo", Name: "GPT-3.5 Turbo (Azure)", TokenLimit: 16385},
}

var anthropicModels = []ModelInfo{
	{ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", TokenLimit: 200000},
	{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", TokenLimit: 200000},
	{ID: "claude-3-opus-latest", Name: "Claude 3 Opus", TokenLimit: 200000},
}

var ollamaModels = []ModelInfo{
	{ID: "llama3.1:8b-instruct-fp16", Name: "Llama 3.1 8B", TokenLimit: 128000},
	{ID: "qwen2.5:14b-instruct-fp16", Name: "Qwen 2.5 14B", TokenLimit: 32000},
	{ID: "llama3.2-vision:11b", Name: "Llama 3.2 Vision 11B", TokenLimit: 128000, Vision: true},
}

var vllmModels = []ModelInfo{
	{ID: "Qwen/Qwen2-VL-72B-Instruct", Name: "Qwen2-VL 72B", TokenLimit: 32768, Vision: true},
	{ID: "meta-llama/Llama-3.2-11B-Vision-Instruct", Name: "Llama 3.2 11B Vision", TokenLimit: 128000, Vision: true},
	{ID: "allenai/Molmo-7B-D-0924", Name: "Molmo 7B-D", TokenLimit: 4096, Vision: true},
}

var webLLMModels = []ModelInfo{
	{ID: "Llama-3.1-8B-Instruct-q4f32_1-MLC", Name: "Llama 3.1 8B (WebLLM)", TokenLimit: 4096},
	{ID: "Phi-3.5-mini-instruct-q4f16_1-MLC", Name: "Phi 3.5 mini (WebLLM)", TokenLimit: 4096},
}

// catalog lists every model once, in display order.
var catalog = buildCatalog(map[Provider][]ModelInfo{
	ProviderOpenAI:    openAIModels,
	ProviderAzure:     azureModels,
	ProviderAnthropic: anthropicModels,
	ProviderOllama:    ollamaModels,
	ProviderVLLM:      vllmModels,
	ProviderWebLLM:    webLLMModels,
})

var providerOrder = []Provider{ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderVLLM, ProviderWebLLM}

type modelCatalog struct {
	byID    map[string]ModelInfo
	ordered []ModelInfo
}

func buildCatalog(enums map[Provider][]ModelInfo) modelCatalog {
	c := modelCatalog{byID: make(map[string]ModelInfo)}
	for _, p := range providerOrder {
		for _, m := range enums[p] {
			if prev, ok := c.byID[m.ID]; ok {
				panic(fmt.Sprintf("llm: model %q listed for both %s and %s", m.ID, prev.Provider, p))
			}
			m.Provider = p
			c.byID[m.ID] = m
			c.ordered = append(c.ordered, m)
		}
	}
	return c
}

// Lookup returns the model with the given id.
func Lookup(id string) (ModelInfo, bool) {
	m, ok := catalog.byID[id]
	return m, ok
}

// Servable reports whether id names a model this service can route.
func Servable(id string) bool {
	m, ok := Lookup(id)
	return ok && m.Provider != ProviderWebLLM
}

// SupportedModels lists the ids of every routable model.
func SupportedModels() []string {
	var ids []string
	for _, m := range catalog.ordered {
		if m.Provider != ProviderWebLLM {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// VisionModels lists the ids of every routable model that accepts images.
func VisionModels() []string {
	var ids []string
	for _, m := range catalog.ordered {
		if m.Vision && m.Provider != ProviderWebLLM {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Models returns the catalog entries for provider.
func Models(p Provider) []ModelInfo {
	var out []ModelInfo
	for _, m := range catalog.ordered {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return slices.Clip(out)
}
