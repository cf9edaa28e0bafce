package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uiucchat/chatcore/internal/chat"
)

// ErrModelNotSupported is returned for model ids that no provider serves.
var ErrModelNotSupported = errors.New("model not supported")

// Invoker calls one provider. Implementations stream when stream is true.
type Invoker func(ctx context.Context, conv *chat.Conversation, cfg ProviderConfig, stream bool) (*Response, error)

// Router dispatches on the conversation's model id.
type Router struct {
	invokers map[Provider]Invoker
}

// NewRouter returns a Router. Providers without an invoker fail with an error envelope.
func NewRouter(invokers map[Provider]Invoker) *Router {
	return &Router{invokers: invokers}
}

// Route invokes the provider that serves conv.Model.ID. Only an unknown model is
// returned as an error; every provider failure becomes a 500 envelope.
func (r *Router) Route(ctx context.Context, conv *chat.Conversation, configs ProviderConfigs, stream bool) (*Response, error) {
	info, ok := Lookup(conv.Model.ID)
	if !ok || info.Provider == ProviderWebLLM {
		return nil, fmt.Errorf("%w: %q", ErrModelNotSupported, conv.Model.ID)
	}

	invoke, ok := r.invokers[info.Provider]
	if !ok {
		return ErrorResponse(fmt.Sprintf("provider %s is not available", info.Provider)), nil
	}
	cfg := configs.For(info.Provider)
	if !cfg.Enabled {
		return ErrorResponse(fmt.Sprintf("provider %s is not configured", info.Provider)), nil
	}

	resp, err := r.invoke(ctx, invoke, conv, cfg, stream)
	if err != nil {
		slog.Error("provider invocation failed", "provider", info.Provider, "model", info.ID, "err", err)
		return ErrorResponse(err.Error()), nil
	}
	return resp, nil
}

func (r *Router) invoke(ctx context.Context, invoke Invoker, conv *chat.Conversation, cfg ProviderConfig, stream bool) (resp *Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp, err = nil, fmt.Errorf("provider %s panicked: %v", cfg.Provider, p)
		}
	}()
	resp, err = invoke(ctx, conv, cfg, stream)
	if err == nil && resp == nil {
		err = fmt.Errorf("provider %s returned no response", cfg.Provider)
	}
	return resp, err
}
