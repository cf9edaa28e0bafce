// Package provider implements the model invocations the router dispatches to.
package provider

import (
	"net/http"

	"github.com/uiucchat/chatcore/internal/llm"
)

// Invokers returns an invoker for every routable provider, all sharing client.
func Invokers(client *http.Client) map[llm.Provider]llm.Invoker {
	if client == nil {
		client = http.DefaultClient
	}
	return map[llm.Provider]llm.Invoker{
		llm.ProviderOpenAI:    OpenAI(client),
		llm.ProviderAzure:     Azure(client),
		llm.ProviderAnthropic: Anthropic(client),
		llm.ProviderOllama:    Ollama(client),
		llm.ProviderVLLM:      VLLM(client),
	}
}
