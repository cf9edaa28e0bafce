package provider

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/llm"
)

var errEmptyCompletion = errors.New("empty completion")

// generate runs a langchaingo model and adapts the result to a Response.
func generate(ctx context.Context, model llms.Model, conv *chat.Conversation, withImages, stream bool) (*llm.Response, error) {
	messages := messageContent(conv, withImages)
	opts := []llms.CallOption{llms.WithTemperature(conv.Temperature)}

	if !stream {
		resp, err := model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errEmptyCompletion
		}
		return llm.TextResponse(resp.Choices[0].Content), nil
	}

	chunks := make(chan llm.Chunk)
	go func() {
		defer close(chunks)
		onChunk := func(ctx context.Context, b []byte) error {
			if len(b) == 0 {
				return nil
			}
			select {
			case chunks <- llm.Chunk{Text: string(b)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		_, err := model.GenerateContent(ctx, messages, append(opts, llms.WithStreamingFunc(onChunk))...)
		if err != nil {
			select {
			case chunks <- llm.Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return llm.PeekStream(ctx, chunks)
}
