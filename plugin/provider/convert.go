package provider

import (
	"github.com/tmc/langchaingo/llms"

	"github.com/uiucchat/chatcore/internal/chat"
)

// turn is a provider-neutral message.
type turn struct {
	role   chat.Role
	text   string
	images []string
}

// turns flattens a conversation for sending: the assembled system prompt first, prior
// messages as plain text, then the engineered final prompt with its images.
func turns(conv *chat.Conversation) []turn {
	last := conv.LastMessage()
	if last == nil {
		return nil
	}

	var out []turn
	if last.LatestSystemMessage != "" {
		out = append(out, turn{role: chat.RoleSystem, text: last.LatestSystemMessage})
	}
	for i := range conv.Messages[:len(conv.Messages)-1] {
		m := &conv.Messages[i]
		if m.Role == chat.RoleSystem {
			continue
		}
		out = append(out, turn{role: m.Role, text: m.Text()})
	}

	text := last.FinalPromptEngineeredMessage
	if text == "" {
		text = last.Text()
	}
	return append(out, turn{role: last.Role, text: text, images: last.ImageURLs()})
}

func messageContent(conv *chat.Conversation, withImages bool) []llms.MessageContent {
	var out []llms.MessageContent
	for _, t := range turns(conv) {
		mc := llms.MessageContent{Role: chatMessageType(t.role)}
		mc.Parts = append(mc.Parts, llms.TextContent{Text: t.text})
		if withImages {
			for _, u := range t.images {
				mc.Parts = append(mc.Parts, llms.ImageURLContent{URL: u})
			}
		}
		out = append(out, mc)
	}
	return out
}

func chatMessageType(r chat.Role) llms.ChatMessageType {
	switch r {
	case chat.RoleSystem:
		return llms.ChatMessageTypeSystem
	case chat.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// openAIMessages renders the OpenAI-compatible wire format.
func openAIMessages(conv *chat.Conversation) []map[string]any {
	var out []map[string]any
	for _, t := range turns(conv) {
		if len(t.images) == 0 {
			out = append(out, map[string]any{"role": string(t.role), "content": t.text})
			continue
		}
		parts := []map[string]any{{"type": "text", "text": t.text}}
		for _, u := range t.images {
			parts = append(parts, map[string]any{"type": "image_url", "image_url": map[string]string{"url": u}})
		}
		out = append(out, map[string]any{"role": string(t.role), "content": parts})
	}
	return out
}
