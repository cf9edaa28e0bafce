package teststore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/store"
)

func TestConversationStoreSQLite(t *testing.T) {
	ctx := context.Background()
	testConversationStore(ctx, t, NewSQLiteStore(ctx, t))
}

func TestCourseMetadataStoreSQLite(t *testing.T) {
	ctx := context.Background()
	testCourseMetadataStore(ctx, t, NewSQLiteStore(ctx, t))
}

func sampleConversation(id string) *chat.Conversation {
	return &chat.Conversation{
		ID:          id,
		Name:        "Cell biology",
		Model:       chat.Model{ID: "gpt-4o-mini", TokenLimit: 128000},
		Prompt:      "Be brief.",
		Temperature: 0.3,
		UserEmail:   "student@example.edu",
		Messages: []chat.Message{
			{
				ID:   "m1",
				Role: chat.RoleUser,
				Content: chat.PartsContent(
					chat.Content{Type: chat.ContentText, Text: "What is this?"},
					chat.Content{Type: chat.ContentImageURL, ImageURL: &chat.ImageURL{URL: "https://example.com/cell.png"}},
				),
				Contexts:                     []chat.ContextWithMetadata{{Text: "Mitochondria", ReadableFilename: "bio.pdf", PageNumber: "3"}},
				Tools:                        []chat.UIUCTool{{Name: "search", ReadableName: "Search", Output: &chat.ToolOutput{Text: "found"}}},
				FinalPromptEngineeredMessage: "<User Query>\nWhat is this?\n</User Query>",
				LatestSystemMessage:          "You are helpful.",
			},
			{ID: "m2", Role: chat.RoleAssistant, Content: chat.TextContent("A cell [bio.pdf, page: 3](https://example.com/bio.pdf#page=3).")},
		},
	}
}

func testConversationStore(ctx context.Context, t *testing.T, s *store.Store) {
	conv := sampleConversation("c-1")
	saved, err := s.SaveConversation(ctx, conv, "BIO101")
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, "BIO101", saved.CourseName)

	loaded, err := s.LoadConversation(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Cell biology", loaded.Name)
	assert.Equal(t, "gpt-4o-mini", loaded.Model.ID)
	assert.InDelta(t, 0.3, loaded.Temperature, 1e-9)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, conv.Messages[0].Content, loaded.Messages[0].Content)
	assert.Equal(t, conv.Messages[0].Contexts, loaded.Messages[0].Contexts)
	assert.Equal(t, conv.Messages[0].Tools, loaded.Messages[0].Tools)
	assert.Equal(t, conv.Messages[0].FinalPromptEngineeredMessage, loaded.Messages[0].FinalPromptEngineeredMessage)
	assert.Equal(t, chat.RoleAssistant, loaded.Messages[1].Role)

	// Saving again replaces the messages instead of appending.
	conv.Name = "Renamed"
	conv.Messages = append(conv.Messages, chat.Message{ID: "m3", Role: chat.RoleUser, Content: chat.TextContent("More?")})
	again, err := s.SaveConversation(ctx, conv, "BIO101")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)
	loaded, err = s.LoadConversation(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, "m3", loaded.Messages[2].ID)

	// A rejected message rolls the whole replacement back.
	broken := sampleConversation("c-1")
	broken.Name = "Renamed"
	broken.Messages = append(broken.Messages, chat.Message{ID: "m9", Role: chat.Role("narrator"), Content: chat.TextContent("Meanwhile...")})
	_, err = s.SaveConversation(ctx, broken, "BIO101")
	require.Error(t, err)
	loaded, err = s.LoadConversation(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{loaded.Messages[0].ID, loaded.Messages[1].ID, loaded.Messages[2].ID})

	_, err = s.SaveConversation(ctx, sampleConversation("c-2"), "CHEM201")
	require.NoError(t, err)

	course := "BIO101"
	list, err := s.ListConversations(ctx, &store.FindConversation{CourseName: &course})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c-1", list[0].UID)

	limit := 1
	list, err = s.ListConversations(ctx, &store.FindConversation{Limit: &limit})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteConversation(ctx, "c-1"))
	loaded, err = s.LoadConversation(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
	msgs, err := s.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: saved.ID})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = s.SaveConversation(ctx, &chat.Conversation{}, "BIO101")
	assert.Error(t, err)
}

func testCourseMetadataStore(ctx context.Context, t *testing.T, s *store.Store) {
	missing, err := s.GetCourseMetadata(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	prompt := "You are the BIO101 assistant."
	require.NoError(t, s.UpsertCourseMetadata(ctx, &chat.CourseMetadata{CourseName: "BIO101", SystemPrompt: &prompt, GuidedLearning: true}))
	got, err := s.GetCourseMetadata(ctx, "BIO101")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.SystemPrompt)
	assert.Equal(t, prompt, *got.SystemPrompt)
	assert.True(t, got.GuidedLearning)

	require.NoError(t, s.UpsertCourseMetadata(ctx, &chat.CourseMetadata{CourseName: "BIO101", DocumentsOnly: true}))
	got, err = s.GetCourseMetadata(ctx, "BIO101")
	require.NoError(t, err)
	assert.Nil(t, got.SystemPrompt)
	assert.False(t, got.GuidedLearning)
	assert.True(t, got.DocumentsOnly)

	assert.Error(t, s.UpsertCourseMetadata(ctx, &chat.CourseMetadata{}))
}
