package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uiucchat/chatcore/internal/chat"
)

// RenderToolOutputs renders the tool transcript and collects generated image URLs as
// image content parts. It does not modify its input.
func RenderToolOutputs(tools []chat.UIUCTool) (string, []chat.Content) {
	var (
		blocks []string
		images []chat.Content
	)
	for _, t := range tools {
		name := t.ReadableName
		if name == "" {
			name = t.Name
		}
		line, toolImages := renderToolResult(t)
		images = append(images, toolImages...)
		if line == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Tool: %s\n%s", name, line))
	}
	if len(blocks) == 0 {
		return NoToolsUsed, images
	}
	return strings.Join(blocks, "\n\n"), images
}

func renderToolResult(t chat.UIUCTool) (string, []chat.Content) {
	out := t.Output
	switch {
	case out != nil && out.Text != "":
		return "Tool output: " + out.Text, nil
	case out != nil && len(out.ImageURLs) > 0:
		images := make([]chat.Content, 0, len(out.ImageURLs))
		for _, u := range out.ImageURLs {
			images = append(images, chat.Content{Type: chat.ContentImageURL, ImageURL: &chat.ImageURL{URL: u}})
		}
		return "Tool output: [Images generated, attached to this message]", images
	case out != nil && len(out.Data) > 0:
		data, err := json.MarshalIndent(out.Data, "", "  ")
		if err != nil {
			return "Tool output: " + fmt.Sprint(out.Data), nil
		}
		return "Tool output: " + string(data), nil
	case t.Error != "":
		return "Tool error: " + t.Error, nil
	default:
		return "", nil
	}
}

// AppendImageParts returns a new content value holding content's parts followed by
// images. Plain string content becomes a leading text part.
func AppendImageParts(content chat.MessageContent, images []chat.Content) chat.MessageContent {
	if len(images) == 0 {
		return content
	}
	var parts []chat.Content
	if content.IsParts() {
		parts = make([]chat.Content, 0, len(content.Parts)+len(images))
		parts = append(parts, content.Parts...)
	} else if content.Text != "" {
		parts = append(parts, chat.Content{Type: chat.ContentText, Text: content.Text})
	}
	parts = append(parts, images...)
	return chat.PartsContent(parts...)
}
