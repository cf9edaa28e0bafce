package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Conversation model related methods.
	UpsertConversation(ctx context.Context, upsert *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, uid string) error

	// ConversationMessage model related methods.
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)
	// ReplaceConversationMessages swaps the stored messages of a conversation for
	// messages in a single transaction.
	ReplaceConversationMessages(ctx context.Context, conversationID int32, messages []*ConversationMessage) ([]*ConversationMessage, error)

	// CourseMetadata model related methods.
	UpsertCourseMetadata(ctx context.Context, upsert *CourseMetadata) (*CourseMetadata, error)
	GetCourseMetadata(ctx context.Context, courseName string) (*CourseMetadata, error)
}
