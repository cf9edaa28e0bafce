package llm

import (
	"context"
	"net/http"
	"strings"
)

// Chunk is one piece of streamed model output, or the error that ended the stream.
type Chunk struct {
	Text string
	Err  error
}

// Response is what a provider returned. Exactly one of Chunks, Text or Error is meaningful:
// Chunks for a stream, Text for a complete answer, Error for a failure.
type Response struct {
	Status int
	Text   string
	Chunks <-chan Chunk
	Error  string
}

// StreamResponse wraps a chunk channel. The producer closes it when done.
func StreamResponse(chunks <-chan Chunk) *Response {
	return &Response{Status: http.StatusOK, Chunks: chunks}
}

// TextResponse wraps a complete answer.
func TextResponse(text string) *Response {
	return &Response{Status: http.StatusOK, Text: text}
}

// ErrorResponse is the uniform failure envelope.
func ErrorResponse(msg string) *Response {
	return &Response{Status: http.StatusInternalServerError, Error: msg}
}

// Streaming reports whether the response carries a chunk stream.
func (r *Response) Streaming() bool {
	return r.Chunks != nil
}

// Failed reports whether the response is an error envelope.
func (r *Response) Failed() bool {
	return r.Status >= http.StatusBadRequest
}

// ErrorBody renders the envelope as {"error": msg}.
func (r *Response) ErrorBody() map[string]string {
	return map[string]string{"error": r.Error}
}

// Collect drains a streaming response into its full text. Non-streaming responses
// return their text directly.
func (r *Response) Collect(ctx context.Context) (string, error) {
	if !r.Streaming() {
		return r.Text, nil
	}
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case c, ok := <-r.Chunks:
			if !ok {
				return sb.String(), nil
			}
			if c.Err != nil {
				return sb.String(), c.Err
			}
			sb.WriteString(c.Text)
		}
	}
}

// PeekStream waits for the first chunk so that failures raised before any output
// surface as an error instead of as a stream that fails immediately.
func PeekStream(ctx context.Context, chunks <-chan Chunk) (*Response, error) {
	var first Chunk
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-chunks:
		if !ok {
			closed := make(chan Chunk)
			close(closed)
			return StreamResponse(closed), nil
		}
		if c.Err != nil {
			return nil, c.Err
		}
		first = c
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		select {
		case out <- first:
		case <-ctx.Done():
			return
		}
		for c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return StreamResponse(out), nil
}
