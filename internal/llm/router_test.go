package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/internal/chat"
)

func conversationFor(model string) *chat.Conversation {
	return &chat.Conversation{Model: chat.Model{ID: model}, Messages: []chat.Message{{Role: chat.RoleUser, Content: chat.TextContent("hi")}}}
}

func enabled(providers ...Provider) ProviderConfigs {
	configs := ProviderConfigs{}
	for _, p := range providers {
		configs[p] = ProviderConfig{Enabled: true}
	}
	return configs
}

func TestRouteDispatchesByModel(t *testing.T) {
	var got []Provider
	record := func(p Provider) Invoker {
		return func(_ context.Context, _ *chat.Conversation, cfg ProviderConfig, _ bool) (*Response, error) {
			assert.Equal(t, p, cfg.Provider)
			got = append(got, p)
			return TextResponse(string(p)), nil
		}
	}
	r := NewRouter(map[Provider]Invoker{
		ProviderOpenAI:    record(ProviderOpenAI),
		ProviderAzure:     record(ProviderAzure),
		ProviderAnthropic: record(ProviderAnthropic),
		ProviderOllama:    record(ProviderOllama),
		ProviderVLLM:      record(ProviderVLLM),
	})
	configs := enabled(ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderVLLM)

	for _, model := range []string{"gpt-4o", "azure-gpt-4", "claude-3-5-sonnet-latest", "llama3.1:8b-instruct-fp16", "Qwen/Qwen2-VL-72B-Instruct"} {
		resp, err := r.Route(context.Background(), conversationFor(model), configs, false)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
	}
	assert.Equal(t, []Provider{ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderVLLM}, got)
}

func TestRouteUnknownModel(t *testing.T) {
	r := NewRouter(nil)
	for _, model := range []string{"gpt-99", "", "Phi-3.5-mini-instruct-q4f16_1-MLC"} {
		resp, err := r.Route(context.Background(), conversationFor(model), nil, false)
		require.ErrorIs(t, err, ErrModelNotSupported)
		assert.Nil(t, resp)
	}
}

func TestRouteProviderFailuresBecomeEnvelopes(t *testing.T) {
	failing := func(context.Context, *chat.Conversation, ProviderConfig, bool) (*Response, error) {
		return nil, errors.New("connection refused")
	}
	panicking := func(context.Context, *chat.Conversation, ProviderConfig, bool) (*Response, error) {
		panic("boom")
	}
	empty := func(context.Context, *chat.Conversation, ProviderConfig, bool) (*Response, error) {
		return nil, nil
	}
	r := NewRouter(map[Provider]Invoker{
		ProviderOpenAI:    failing,
		ProviderAnthropic: panicking,
		ProviderOllama:    empty,
	})
	configs := enabled(ProviderOpenAI, ProviderAnthropic, ProviderOllama)

	tests := map[string]string{
		"gpt-4o":                    "connection refused",
		"claude-3-opus-latest":      "panicked: boom",
		"qwen2.5:14b-instruct-fp16": "returned no response",
		"azure-gpt-4o":              "provider Azure is not available",
	}
	for model, msg := range tests {
		t.Run(model, func(t *testing.T) {
			resp, err := r.Route(context.Background(), conversationFor(model), configs, true)
			require.NoError(t, err)
			assert.True(t, resp.Failed())
			assert.Equal(t, http.StatusInternalServerError, resp.Status)
			assert.Contains(t, resp.ErrorBody()["error"], msg)
		})
	}
}

func TestRouteDisabledProvider(t *testing.T) {
	called := false
	r := NewRouter(map[Provider]Invoker{ProviderOpenAI: func(context.Context, *chat.Conversation, ProviderConfig, bool) (*Response, error) {
		called = true
		return TextResponse("x"), nil
	}})
	resp, err := r.Route(context.Background(), conversationFor("gpt-4o"), ProviderConfigs{}, false)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, "provider OpenAI is not configured", resp.Error)

	resp, err = r.Route(context.Background(), conversationFor("gpt-4o"), ProviderConfigs{}.WithOpenAIKey("sk-user"), false)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "x", resp.Text)
}
