package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/llm"
)

const maxErrorBody = 1 << 10

// VLLM invokes a self-hosted OpenAI-compatible vLLM server over plain HTTP.
func VLLM(client *http.Client) llm.Invoker {
	return func(ctx context.Context, conv *chat.Conversation, cfg llm.ProviderConfig, stream bool) (*llm.Response, error) {
		if cfg.BaseURL == "" {
			return nil, errors.New("vllm base url is not configured")
		}
		bodyBytes, err := json.Marshal(map[string]any{
			"model":       conv.Model.ID,
			"messages":    openAIMessages(conv),
			"temperature": conv.Temperature,
			"stream":      stream,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode vllm request")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, errors.Wrap(err, "failed to build vllm request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, errors.Wrap(err, "vllm request failed")
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, fmt.Errorf("vllm returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		if !stream {
			defer resp.Body.Close()
			var apiResp struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
				return nil, errors.Wrap(err, "failed to decode vllm response")
			}
			if len(apiResp.Choices) == 0 {
				return nil, errEmptyCompletion
			}
			return llm.TextResponse(apiResp.Choices[0].Message.Content), nil
		}

		chunks := make(chan llm.Chunk)
		go readSSE(ctx, resp.Body, chunks)
		return llm.StreamResponse(chunks), nil
	}
}

// readSSE forwards the delta content of an OpenAI-style event stream until [DONE].
func readSSE(ctx context.Context, body io.ReadCloser, out chan<- llm.Chunk) {
	defer close(out)
	defer body.Close()

	send := func(c llm.Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Debug("skipping malformed vllm event", "err", err)
			continue
		}
		if chunk.Error != nil {
			send(llm.Chunk{Err: fmt.Errorf("vllm stream error: %s", chunk.Error.Message)})
			return
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if !send(llm.Chunk{Text: ch.Delta.Content}) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(llm.Chunk{Err: errors.Wrap(err, "failed to read vllm stream")})
	}
}
