package llm

// ProviderConfig carries the credentials and endpoint for one provider.
type ProviderConfig struct {
	Provider   Provider
	Enabled    bool
	APIKey     string
	BaseURL    string
	APIVersion string
	// Deployments maps a model id to its Azure deployment name.
	Deployments map[string]string
}

// Deployment returns the deployment name for model, defaulting to the id without
// its "azure-" prefix.
func (c ProviderConfig) Deployment(model string) string {
	if d, ok := c.Deployments[model]; ok && d != "" {
		return d
	}
	const prefix = "azure-"
	if len(model) > len(prefix) && model[:len(prefix)] == prefix {
		return model[len(prefix):]
	}
	return model
}

// ProviderConfigs holds one config per provider.
type ProviderConfigs map[Provider]ProviderConfig

// For returns the config for p. Missing providers come back disabled.
func (c ProviderConfigs) For(p Provider) ProviderConfig {
	cfg, ok := c[p]
	if !ok {
		return ProviderConfig{Provider: p}
	}
	cfg.Provider = p
	return cfg
}

// WithOpenAIKey returns a copy in which key overrides the OpenAI key and enables OpenAI.
// An empty key returns c unchanged.
func (c ProviderConfigs) WithOpenAIKey(key string) ProviderConfigs {
	if key == "" {
		return c
	}
	out := make(ProviderConfigs, len(c)+1)
	for p, cfg := range c {
		out[p] = cfg
	}
	cfg := out.For(ProviderOpenAI)
	cfg.APIKey = key
	cfg.Enabled = true
	out[ProviderOpenAI] = cfg
	return out
}
