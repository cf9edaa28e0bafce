package provider

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/llm"
)

// Ollama invokes a self-hosted Ollama server.
func Ollama(client *http.Client) llm.Invoker {
	return func(ctx context.Context, conv *chat.Conversation, cfg llm.ProviderConfig, stream bool) (*llm.Response, error) {
		if cfg.BaseURL == "" {
			return nil, errors.New("ollama base url is not configured")
		}
		model, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(conv.Model.ID),
			ollama.WithHTTPClient(client),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create ollama client")
		}
		return generate(ctx, model, conv, true, stream)
	}
}
