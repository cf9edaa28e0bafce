package provider

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/llm"
)

const (
	defaultAzureAPIVersion = "2024-06-01"
	// The client refuses Azure configs without an embedding deployment, even for chat.
	azureEmbeddingModel = "text-embedding-3-small"
)

// OpenAI invokes the OpenAI chat completions API.
func OpenAI(client *http.Client) llm.Invoker {
	return func(ctx context.Context, conv *chat.Conversation, cfg llm.ProviderConfig, stream bool) (*llm.Response, error) {
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(conv.Model.ID),
			openai.WithHTTPClient(client),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create openai client")
		}
		return generate(ctx, model, conv, true, stream)
	}
}

// Azure invokes an Azure OpenAI deployment.
func Azure(client *http.Client) llm.Invoker {
	return func(ctx context.Context, conv *chat.Conversation, cfg llm.ProviderConfig, stream bool) (*llm.Response, error) {
		version := cfg.APIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}
		model, err := openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithAPIVersion(version),
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Deployment(conv.Model.ID)),
			openai.WithEmbeddingModel(cfg.Deployment(azureEmbeddingModel)),
			openai.WithHTTPClient(client),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create azure openai client")
		}
		return generate(ctx, model, conv, true, stream)
	}
}
