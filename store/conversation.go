package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/internal/chat"
)

// Conversation is the persisted header of a chat thread.
type Conversation struct {
	ID          int32
	UID         string
	Name        string
	CourseName  string
	ModelID     string
	Prompt      string
	Temperature float64
	UserEmail   string
	CreatedTs   int64
	UpdatedTs   int64
}

// ConversationMessage is a single persisted turn. Content, contexts and tools are
// stored as their JSON wire form.
type ConversationMessage struct {
	ID             int32
	ConversationID int32
	UID            string
	Role           string
	Content        string
	Contexts       string
	Tools          string
	// FinalPrompt is the assembled user prompt sent to the model.
	FinalPrompt  string
	SystemPrompt string
	CreatedTs    int64
}

type FindConversation struct {
	UID        *string
	CourseName *string
	UserEmail  *string
	Limit      *int
}

type FindConversationMessage struct {
	ConversationID int32
}

// UpsertConversation creates the conversation or updates its header by UID.
func (s *Store) UpsertConversation(ctx context.Context, upsert *Conversation) (*Conversation, error) {
	return s.driver.UpsertConversation(ctx, upsert)
}

// ListConversations lists conversations matching the filter, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the first conversation matching the filter, or nil.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteConversation deletes a conversation and all its messages.
func (s *Store) DeleteConversation(ctx context.Context, uid string) error {
	return s.driver.DeleteConversation(ctx, uid)
}

// ListConversationMessages returns the messages of a conversation, oldest first.
func (s *Store) ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ListConversationMessages(ctx, find)
}

// ReplaceConversationMessages stores messages as the whole thread of a conversation.
// On error the previously stored messages are left untouched.
func (s *Store) ReplaceConversationMessages(ctx context.Context, conversationID int32, messages []*ConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ReplaceConversationMessages(ctx, conversationID, messages)
}

// SaveConversation persists conv as the full current state of the thread: the
// header is upserted and the stored messages are replaced by conv.Messages.
func (s *Store) SaveConversation(ctx context.Context, conv *chat.Conversation, courseName string) (*Conversation, error) {
	if conv == nil || conv.ID == "" {
		return nil, errors.New("conversation id is required")
	}
	saved, err := s.UpsertConversation(ctx, &Conversation{
		UID:         conv.ID,
		Name:        conv.Name,
		CourseName:  courseName,
		ModelID:     conv.Model.ID,
		Prompt:      conv.Prompt,
		Temperature: conv.Temperature,
		UserEmail:   conv.UserEmail,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert conversation")
	}
	messages := make([]*ConversationMessage, 0, len(conv.Messages))
	for i := range conv.Messages {
		m, err := messageFromChat(saved.ID, &conv.Messages[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if _, err := s.ReplaceConversationMessages(ctx, saved.ID, messages); err != nil {
		return nil, errors.Wrap(err, "failed to save conversation messages")
	}
	return saved, nil
}

// LoadConversation rebuilds the chat form of a stored conversation.
func (s *Store) LoadConversation(ctx context.Context, uid string) (*chat.Conversation, error) {
	c, err := s.GetConversation(ctx, &FindConversation{UID: &uid})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	rows, err := s.ListConversationMessages(ctx, &FindConversationMessage{ConversationID: c.ID})
	if err != nil {
		return nil, err
	}
	conv := &chat.Conversation{
		ID:          c.UID,
		Name:        c.Name,
		Model:       chat.Model{ID: c.ModelID},
		Prompt:      c.Prompt,
		Temperature: c.Temperature,
		ProjectName: c.CourseName,
		UserEmail:   c.UserEmail,
		Messages:    make([]chat.Message, 0, len(rows)),
	}
	for _, row := range rows {
		m, err := row.ToChat()
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, *m)
	}
	return conv, nil
}

// ToChat decodes the stored JSON columns back into a chat message.
func (m *ConversationMessage) ToChat() (*chat.Message, error) {
	out := &chat.Message{
		ID:                           m.UID,
		Role:                         chat.Role(m.Role),
		FinalPromptEngineeredMessage: m.FinalPrompt,
		LatestSystemMessage:          m.SystemPrompt,
	}
	if err := json.Unmarshal([]byte(m.Content), &out.Content); err != nil {
		return nil, errors.Wrapf(err, "failed to decode content of message %s", m.UID)
	}
	if m.Contexts != "" {
		if err := json.Unmarshal([]byte(m.Contexts), &out.Contexts); err != nil {
			return nil, errors.Wrapf(err, "failed to decode contexts of message %s", m.UID)
		}
	}
	if m.Tools != "" {
		if err := json.Unmarshal([]byte(m.Tools), &out.Tools); err != nil {
			return nil, errors.Wrapf(err, "failed to decode tools of message %s", m.UID)
		}
	}
	return out, nil
}

func messageFromChat(conversationID int32, m *chat.Message) (*ConversationMessage, error) {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode message content")
	}
	out := &ConversationMessage{
		ConversationID: conversationID,
		UID:            m.ID,
		Role:           string(m.Role),
		Content:        string(content),
		FinalPrompt:    m.FinalPromptEngineeredMessage,
		SystemPrompt:   m.LatestSystemMessage,
	}
	if len(m.Contexts) > 0 {
		b, err := json.Marshal(m.Contexts)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode message contexts")
		}
		out.Contexts = string(b)
	}
	if len(m.Tools) > 0 {
		b, err := json.Marshal(m.Tools)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode message tools")
		}
		out.Tools = string(b)
	}
	return out, nil
}
