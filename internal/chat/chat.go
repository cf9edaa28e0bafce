// Package chat holds the conversation data model shared by the prompt, routing and
// citation stages.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType is the kind of a single content part.
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentImageURL     ContentType = "image_url"
	ContentToolImageURL ContentType = "tool_image_url"
)

// ImageURL points at an image attached to a message.
type ImageURL struct {
	URL string `json:"url"`
}

// Content is one typed part of a multi-part message.
type Content struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *ImageURL   `json:"image_url,omitempty"`
}

// IsImage reports whether the part references an image.
func (c Content) IsImage() bool {
	return c.Type == ContentImageURL || c.Type == ContentToolImageURL
}

// MessageContent is either a plain string or an ordered list of parts.
// On the wire it is a JSON string or a JSON array.
type MessageContent struct {
	Text  string
	Parts []Content
}

// TextContent builds plain string content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// PartsContent builds multi-part content.
func PartsContent(parts ...Content) MessageContent {
	return MessageContent{Parts: parts}
}

// IsParts reports whether the content is in multi-part form.
func (c MessageContent) IsParts() bool {
	return c.Parts != nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = MessageContent{}
		return nil
	}
	if data[0] == '[' {
		var parts []Content
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
		*c = MessageContent{Parts: parts}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("content must be a string or an array of parts: %w", err)
	}
	*c = MessageContent{Text: s}
	return nil
}

// PageNumber is a page reference that arrives either as a JSON string or a number.
type PageNumber string

func (p *PageNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*p = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PageNumber(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("pagenumber must be a string or a number: %w", err)
		}
		*p = PageNumber(n.String())
	}
	return nil
}

// Int returns the page as a positive integer, or 0 when unset or not numeric.
func (p PageNumber) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(p)))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// ContextWithMetadata is one retrieved document snippet.
type ContextWithMetadata struct {
	ID               string     `json:"id,omitempty"`
	Text             string     `json:"text"`
	ReadableFilename string     `json:"readable_filename"`
	CourseName       string     `json:"course_name,omitempty"`
	S3Path           string     `json:"s3_path,omitempty"`
	PageNumber       PageNumber `json:"pagenumber,omitempty"`
	URL              string     `json:"url,omitempty"`
	BaseURL          string     `json:"base_url,omitempty"`
}

// ToolOutput is the structured result of a successful tool invocation.
type ToolOutput struct {
	Text      string         `json:"text,omitempty"`
	ImageURLs []string       `json:"imageUrls,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// UIUCTool records one tool invocation made on behalf of the user turn.
type UIUCTool struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	ReadableName string         `json:"readableName"`
	Description  string         `json:"description,omitempty"`
	Arguments    map[string]any `json:"aiGeneratedArgumentValues,omitempty"`
	Output       *ToolOutput    `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Message is a single turn in a conversation.
type Message struct {
	ID       string                `json:"id,omitempty"`
	Role     Role                  `json:"role"`
	Content  MessageContent        `json:"content"`
	Contexts []ContextWithMetadata `json:"contexts,omitempty"`
	Tools    []UIUCTool            `json:"tools,omitempty"`

	// Set by prompt assembly.
	FinalPromptEngineeredMessage string `json:"finalPromptEngineeredMessage,omitempty"`
	LatestSystemMessage          string `json:"latestSystemMessage,omitempty"`
}

// Text returns the message text, joining text parts with newlines.
func (m *Message) Text() string {
	if !m.Content.IsParts() {
		return m.Content.Text
	}
	var texts []string
	for _, p := range m.Content.Parts {
		if p.Type == ContentText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// HasImage reports whether any content part is an image.
func (m *Message) HasImage() bool {
	for _, p := range m.Content.Parts {
		if p.IsImage() {
			return true
		}
	}
	return false
}

// ImageURLs returns the URLs of all image parts in order.
func (m *Message) ImageURLs() []string {
	var urls []string
	for _, p := range m.Content.Parts {
		if p.IsImage() && p.ImageURL != nil && p.ImageURL.URL != "" {
			urls = append(urls, p.ImageURL.URL)
		}
	}
	return urls
}

// Model describes the LLM a conversation targets.
type Model struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	TokenLimit   int    `json:"tokenLimit"`
	EnableVision bool   `json:"enableVision,omitempty"`
}

// LinkParameters are per-conversation mode switches carried by a shared chat link.
type LinkParameters struct {
	GuidedLearning   bool `json:"guidedLearning"`
	DocumentsOnly    bool `json:"documentsOnly"`
	SystemPromptOnly bool `json:"systemPromptOnly"`
}

// Conversation is an ordered sequence of messages plus the settings used to answer it.
type Conversation struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Model          Model          `json:"model"`
	Prompt         string         `json:"prompt,omitempty"`
	Temperature    float64        `json:"temperature"`
	LinkParameters LinkParameters `json:"linkParameters"`
	ProjectName    string         `json:"projectName,omitempty"`
	UserEmail      string         `json:"userEmail,omitempty"`
	Messages       []Message      `json:"messages"`
}

// LastMessage returns the final message, or nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if c == nil || len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// CourseMetadata is the per-project configuration that shapes prompt assembly.
type CourseMetadata struct {
	CourseName       string  `json:"course_name"`
	SystemPrompt     *string `json:"system_prompt,omitempty"`
	GuidedLearning   bool    `json:"guidedLearning"`
	DocumentsOnly    bool    `json:"documentsOnly"`
	SystemPromptOnly bool    `json:"systemPromptOnly"`
}
