package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/uiucchat/chatcore/internal/chat"
)

// DefaultTemperature applies when a request does not set one.
const DefaultTemperature = 0.1

// ChatRequest is the inbound chat body.
type ChatRequest struct {
	Model         string         `json:"model"`
	Messages      []chat.Message `json:"messages"`
	CourseName    string         `json:"course_name"`
	APIKey        string         `json:"api_key"`
	Stream        bool           `json:"stream"`
	Temperature   *float64       `json:"temperature,omitempty"`
	RetrievalOnly bool           `json:"retrieval_only"`
	OpenAIKey     string         `json:"openai_key,omitempty"`
	// DocumentGroups restricts retrieval to the named groups of the course.
	DocumentGroups []string `json:"doc_groups,omitempty"`

	ConversationID   string `json:"conversation_id,omitempty"`
	ConversationName string `json:"conversation_name,omitempty"`
	// Prompt overrides the default system prompt when the course sets none.
	Prompt         string              `json:"prompt,omitempty"`
	LinkParameters chat.LinkParameters `json:"linkParameters"`
	UserEmail      string              `json:"user_email,omitempty"`
}

// ValidationError describes why a request body was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// ValidateRequestBody checks raw before any budgeting or routing work and decodes it.
// Every rejection is a *ValidationError.
func ValidateRequestBody(raw []byte) (*ChatRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, invalid("body", "Request body must be a JSON object")
	}

	for _, name := range []string{"model", "messages", "course_name", "api_key"} {
		if isFalsy(fields[name]) {
			return nil, invalid(name, "Missing one or more required fields: model, messages, course_name, api_key")
		}
	}

	var model string
	if err := json.Unmarshal(fields["model"], &model); err != nil || !Servable(model) {
		return nil, invalid("model", "Invalid model provided. Supported models: "+strings.Join(SupportedModels(), ", "))
	}

	var messages []chat.Message
	if err := json.Unmarshal(fields["messages"], &messages); err != nil || !hasUserMessage(messages) {
		return nil, invalid("messages", "Messages must be a non-empty array containing at least one user message")
	}

	if t, ok := fields["temperature"]; ok && !isNull(t) {
		var temp float64
		if err := json.Unmarshal(t, &temp); err != nil || temp < 0 || temp > 1 {
			return nil, invalid("temperature", "Temperature must be a number between 0 and 1")
		}
	}

	var courseName string
	if err := json.Unmarshal(fields["course_name"], &courseName); err != nil {
		return nil, invalid("course_name", "Course name must be a string")
	}

	if s, ok := fields["stream"]; ok && !isNull(s) {
		var stream bool
		if err := json.Unmarshal(s, &stream); err != nil {
			return nil, invalid("stream", "Stream must be a boolean")
		}
	}

	info, _ := Lookup(model)
	if !info.Vision && anyImage(messages) {
		return nil, invalid("model", "The selected model does not support vision capabilities. Use one of these: "+
			strings.Join(VisionModels(), ", "))
	}

	var req ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, invalid("body", "Malformed request body: "+err.Error())
	}
	return &req, nil
}

// Conversation builds the conversation the request asks to answer.
func (r *ChatRequest) Conversation() *chat.Conversation {
	info, _ := Lookup(r.Model)
	temp := DefaultTemperature
	if r.Temperature != nil {
		temp = *r.Temperature
	}
	return &chat.Conversation{
		ID:   r.ConversationID,
		Name: r.ConversationName,
		Model: chat.Model{
			ID:           info.ID,
			Name:         info.Name,
			TokenLimit:   info.TokenLimit,
			EnableVision: info.Vision,
		},
		Prompt:         r.Prompt,
		Temperature:    temp,
		LinkParameters: r.LinkParameters,
		ProjectName:    r.CourseName,
		UserEmail:      r.UserEmail,
		Messages:       r.Messages,
	}
}

func hasUserMessage(messages []chat.Message) bool {
	for _, m := range messages {
		if m.Role == chat.RoleUser {
			return true
		}
	}
	return false
}

func anyImage(messages []chat.Message) bool {
	for i := range messages {
		if messages[i].HasImage() {
			return true
		}
	}
	return false
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// isFalsy treats absent, null, empty-string, false and zero values as missing.
func isFalsy(v json.RawMessage) bool {
	switch s := string(bytes.TrimSpace(v)); s {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}
