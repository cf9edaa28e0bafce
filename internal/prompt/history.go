package prompt

import (
	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/plugin/tokenizer"
)

// TrimHistory returns a copy of conv whose prior messages are the longest contiguous
// suffix that fits budget tokens. The final message is always kept. A nil tokenizer
// keeps the full history.
func TrimHistory(conv *chat.Conversation, tok tokenizer.Tokenizer, budget int) *chat.Conversation {
	trimmed := *conv
	if tok == nil || len(conv.Messages) <= 1 {
		return &trimmed
	}

	last := len(conv.Messages) - 1
	start := last
	used := 0
	for i := last - 1; i >= 0; i-- {
		cost := tok.Count(conv.Messages[i].Text())
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	trimmed.Messages = append([]chat.Message(nil), conv.Messages[start:]...)
	return &trimmed
}
