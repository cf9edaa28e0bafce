package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/plugin/tokenizer/tokenizertest"
)

func TestTrimHistoryKeepsContiguousSuffix(t *testing.T) {
	conv := newConversation(1000,
		userMessage(words(30)),
		userMessage(words(5)),
		userMessage(words(10)),
		userMessage(words(4)),
		userMessage("final question"),
	)

	trimmed := TrimHistory(conv, tokenizertest.Words{}, 15)
	require.Len(t, trimmed.Messages, 3)
	assert.Equal(t, words(10), trimmed.Messages[0].Text())
	assert.Equal(t, "final question", trimmed.Messages[2].Text())
	assert.Len(t, conv.Messages, 5)

	trimmed = TrimHistory(conv, tokenizertest.Words{}, 0)
	require.Len(t, trimmed.Messages, 1)

	trimmed = TrimHistory(conv, nil, 0)
	assert.Len(t, trimmed.Messages, 5)
}
