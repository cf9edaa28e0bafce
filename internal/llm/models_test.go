package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	m, ok := Lookup("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, m.Provider)
	assert.True(t, m.Vision)

	m, ok = Lookup("Llama-3.1-8B-Instruct-q4f32_1-MLC")
	require.True(t, ok)
	assert.Equal(t, ProviderWebLLM, m.Provider)
	assert.False(t, Servable(m.ID))
	assert.NotContains(t, SupportedModels(), m.ID)

	for _, id := range VisionModels() {
		info, _ := Lookup(id)
		assert.True(t, info.Vision, id)
		assert.Contains(t, SupportedModels(), id)
	}
	assert.Len(t, Models(ProviderAzure), len(azureModels))
}

func TestBuildCatalogRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		buildCatalog(map[Provider][]ModelInfo{
			ProviderOpenAI: {{ID: "shared"}},
			ProviderAzure:  {{ID: "shared"}},
		})
	})
}

func TestProviderConfigs(t *testing.T) {
	base := ProviderConfigs{ProviderOpenAI: {Enabled: false, APIKey: "server"}}
	override := base.WithOpenAIKey("sk-user")
	assert.Equal(t, "server", base[ProviderOpenAI].APIKey)
	assert.Equal(t, "sk-user", override.For(ProviderOpenAI).APIKey)
	assert.True(t, override.For(ProviderOpenAI).Enabled)
	assert.Equal(t, ProviderAnthropic, base.For(ProviderAnthropic).Provider)

	azure := ProviderConfig{Deployments: map[string]string{"azure-gpt-4o": "prod-4o"}}
	assert.Equal(t, "prod-4o", azure.Deployment("azure-gpt-4o"))
	assert.Equal(t, "gpt-4", azure.Deployment("azure-gpt-4"))
}
