package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(chunks ...Chunk) <-chan Chunk {
	ch := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestPeekStreamReplaysFirstChunk(t *testing.T) {
	resp, err := PeekStream(context.Background(), feed(Chunk{Text: "Hel"}, Chunk{Text: "lo"}))
	require.NoError(t, err)
	text, err := resp.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestPeekStreamSurfacesEarlyError(t *testing.T) {
	_, err := PeekStream(context.Background(), feed(Chunk{Err: errors.New("401 unauthorized")}))
	require.EqualError(t, err, "401 unauthorized")
}

func TestPeekStreamEmpty(t *testing.T) {
	resp, err := PeekStream(context.Background(), feed())
	require.NoError(t, err)
	text, err := resp.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestCollectStopsAtError(t *testing.T) {
	resp := StreamResponse(feed(Chunk{Text: "partial "}, Chunk{Err: errors.New("reset")}, Chunk{Text: "never"}))
	text, err := resp.Collect(context.Background())
	require.EqualError(t, err, "reset")
	assert.Equal(t, "partial ", text)

	text, err = TextResponse("whole").Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "whole", text)
}
