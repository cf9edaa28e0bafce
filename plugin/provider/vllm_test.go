package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/llm"
)

func visionConversation() *chat.Conversation {
	return &chat.Conversation{
		Model:       chat.Model{ID: "Qwen/Qwen2-VL-72B-Instruct"},
		Temperature: 0.2,
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: chat.TextContent("earlier question")},
			{Role: chat.RoleAssistant, Content: chat.TextContent("earlier answer")},
			{
				Role: chat.RoleUser,
				Content: chat.PartsContent(
					chat.Content{Type: chat.ContentText, Text: "What is in the image?"},
					chat.Content{Type: chat.ContentImageURL, ImageURL: &chat.ImageURL{URL: "https://img.example.com/cell.png"}},
				),
				LatestSystemMessage:          "You are a TA.",
				FinalPromptEngineeredMessage: "<User Query>\nWhat is in the image?\n</User Query>",
			},
		},
	}
}

func TestVLLMNonStreaming(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"A mitochondrion."}}]}`)
	}))
	defer srv.Close()

	invoke := VLLM(srv.Client())
	resp, err := invoke(context.Background(), visionConversation(), llm.ProviderConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret"}, false)
	require.NoError(t, err)
	assert.False(t, resp.Streaming())
	assert.Equal(t, "A mitochondrion.", resp.Text)

	assert.Equal(t, "Qwen/Qwen2-VL-72B-Instruct", got["model"])
	assert.Equal(t, false, got["stream"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 4)
	assert.Equal(t, map[string]any{"role": "system", "content": "You are a TA."}, messages[0])
	assert.Equal(t, map[string]any{"role": "assistant", "content": "earlier answer"}, messages[2])
	last := messages[3].(map[string]any)
	parts := last["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "<User Query>\nWhat is in the image?\n</User Query>", parts[0].(map[string]any)["text"])
	assert.Equal(t, "https://img.example.com/cell.png", parts[1].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestVLLMStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Cells <ci\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"te>1</cite>.\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	}))
	defer srv.Close()

	resp, err := VLLM(srv.Client())(context.Background(), visionConversation(), llm.ProviderConfig{BaseURL: srv.URL}, true)
	require.NoError(t, err)
	require.True(t, resp.Streaming())
	text, err := resp.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cells <cite>1</cite>.", text)
}

func TestVLLMStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"out of memory\"}}\n\n")
	}))
	defer srv.Close()

	resp, err := VLLM(srv.Client())(context.Background(), visionConversation(), llm.ProviderConfig{BaseURL: srv.URL}, true)
	require.NoError(t, err)
	text, err := resp.Collect(context.Background())
	require.EqualError(t, err, "vllm stream error: out of memory")
	assert.Equal(t, "partial", text)
}

func TestVLLMErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := VLLM(srv.Client())(context.Background(), visionConversation(), llm.ProviderConfig{BaseURL: srv.URL}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")

	_, err = VLLM(srv.Client())(context.Background(), visionConversation(), llm.ProviderConfig{}, false)
	require.EqualError(t, err, "vllm base url is not configured")
}

func TestOpenAINonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":"ATP is energy."},"finish_reason":"stop"}],`+
			`"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`)
	}))
	defer srv.Close()

	conv := visionConversation()
	conv.Model.ID = "gpt-4o"
	resp, err := OpenAI(srv.Client())(context.Background(), conv, llm.ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL}, false)
	require.NoError(t, err)
	assert.Equal(t, "ATP is energy.", resp.Text)
}

func TestTurnsFallsBackToRawText(t *testing.T) {
	conv := &chat.Conversation{Messages: []chat.Message{
		{Role: chat.RoleSystem, Content: chat.TextContent("ignored")},
		{Role: chat.RoleUser, Content: chat.TextContent("plain question")},
	}}
	got := turns(conv)
	require.Len(t, got, 1)
	assert.Equal(t, "plain question", got[0].text)
	assert.Nil(t, turns(&chat.Conversation{}))

	mc := messageContent(visionConversation(), false)
	require.Len(t, mc, 4)
	assert.Len(t, mc[3].Parts, 1)
}
