package provider

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/llm"
)

// Anthropic invokes the Anthropic messages API. Images are not forwarded: the catalog
// lists no Anthropic model as vision-capable.
func Anthropic(client *http.Client) llm.Invoker {
	return func(ctx context.Context, conv *chat.Conversation, cfg llm.ProviderConfig, stream bool) (*llm.Response, error) {
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(conv.Model.ID),
			anthropic.WithHTTPClient(client),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		model, err := anthropic.New(opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create anthropic client")
		}
		return generate(ctx, model, conv, false, stream)
	}
}
