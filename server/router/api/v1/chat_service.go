package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/citation"
	"github.com/uiucchat/chatcore/internal/llm"
	"github.com/uiucchat/chatcore/internal/prompt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// maxChatBodyBytes bounds a chat request body, images included.
	maxChatBodyBytes = 16 << 20

	// persistTimeout bounds saving a finished conversation.
	persistTimeout = 15 * time.Second

	// closeTimeout bounds resolving the citations held back at the end of a stream.
	closeTimeout = 5 * time.Second

	defaultConversationName = "New Chat"
	maxNameRunes            = 60
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type chatResponse struct {
	Message        string                     `json:"message"`
	Contexts       []chat.ContextWithMetadata `json:"contexts"`
	ConversationID string                     `json:"conversation_id"`
}

type retrievalResponse struct {
	Contexts       []chat.ContextWithMetadata `json:"contexts"`
	ConversationID string                     `json:"conversation_id"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Main chat handler (JSON or SSE)
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) handleChat(c *echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxChatBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if len(raw) > maxChatBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// ── 1. Validate ──────────────────────────────────────────────────────────
	req, err := llm.ValidateRequestBody(raw)
	if err != nil {
		field := "body"
		var verr *llm.ValidationError
		if errors.As(err, &verr) {
			field = verr.Field
		}
		s.Metrics.ValidationFailures.WithLabelValues(field).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conv := req.Conversation()
	if conv.ID == "" {
		conv.ID = shortuuid.New()
	}
	if conv.Name == "" {
		conv.Name = conversationName(conv)
	}
	info, _ := llm.Lookup(conv.Model.ID)
	provider := string(info.Provider)

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.Profile.ChatTimeout)
	defer cancel()
	ctx, release := s.aborts.Start(ctx, conv.ID)
	defer release()

	// ── 2. Course metadata ───────────────────────────────────────────────────
	course := s.courseMetadata(ctx, req.CourseName)

	// ── 3. Retrieval ─────────────────────────────────────────────────────────
	last := conv.LastMessage()
	if len(last.Contexts) == 0 && s.Retriever != nil {
		contexts, err := s.Retriever.FetchContexts(ctx, req.CourseName, last.Text(), s.Profile.RetrievalTokenLimit, req.DocumentGroups)
		switch {
		case err != nil && req.RetrievalOnly:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch contexts: " + err.Error()})
		case err != nil:
			slog.Warn("continuing without retrieved contexts", "course", req.CourseName, "err", err)
		default:
			last.Contexts = contexts
		}
	}
	if req.RetrievalOnly {
		return c.JSON(http.StatusOK, retrievalResponse{Contexts: nonNil(last.Contexts), ConversationID: conv.ID})
	}

	// ── 4. Assemble prompt ───────────────────────────────────────────────────
	asm, err := s.assembler.Assemble(conv, course)
	if err != nil {
		s.Metrics.RecordChat(provider, "error")
		if errors.Is(err, prompt.ErrPromptTooLarge) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.Metrics.RecordAssembly(len(asm.Contexts), asm.RemainingTokens)

	tok, _ := s.Tokens.Tokenizer()
	routed := prompt.TrimHistory(conv, tok, asm.HistoryBudget)

	// ── 5. Route to the provider ─────────────────────────────────────────────
	configs := s.Profile.ProviderConfigs()
	if req.OpenAIKey != "" {
		configs = configs.WithOpenAIKey(req.OpenAIKey)
	}
	resp, err := s.Router.Route(ctx, routed, configs, req.Stream)
	if err != nil {
		s.Metrics.RecordChat(provider, "error")
		if errors.Is(err, llm.ErrModelNotSupported) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if resp.Failed() {
		s.Metrics.RecordChat(provider, "error")
		return c.JSON(resp.Status, resp.ErrorBody())
	}

	rewriter := citation.NewRewriter(asm.Contexts, req.CourseName, s.Links)
	newConversation := req.ConversationName == ""

	if req.Stream {
		outcome, answer := s.streamChat(ctx, c, conv.ID, resp, rewriter)
		s.Metrics.RecordChat(provider, outcome)
		s.persist(ctx, conv, req.CourseName, answer, newConversation, configs)
		return nil
	}

	// ── 6. Non-streaming answer ──────────────────────────────────────────────
	text, err := resp.Collect(ctx)
	if err != nil {
		s.Metrics.RecordChat(provider, outcomeOf(ctx, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errorMessage(ctx, err)})
	}
	message := rewriter.RewriteAll(ctx, text)
	s.Metrics.RecordChat(provider, "ok")
	s.persist(ctx, conv, req.CourseName, message, newConversation, configs)
	return c.JSON(http.StatusOK, chatResponse{
		Message:        message,
		Contexts:       nonNil(asm.Contexts),
		ConversationID: conv.ID,
	})
}

// streamChat relays the provider stream through the citation rewriter as SSE events
// and returns the outcome label and the text that reached the client.
func (s *APIV1Service) streamChat(ctx context.Context, c *echo.Context, conversationID string, resp *llm.Response, rewriter *citation.Rewriter) (string, string) {
	// ── Set up SSE ───────────────────────────────────────────────────────────
	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)

	emit := func(eventType, payload string) {
		data, _ := json.Marshal(map[string]string{"type": eventType, "content": payload})
		fmt.Fprintf(rw, "data: %s\n\n", data)
		if f, ok := rw.(http.Flusher); ok {
			f.Flush()
		}
	}

	s.Metrics.ChatStreamsActive.Inc()
	defer s.Metrics.ChatStreamsActive.Dec()

	chunks := resp.Chunks
	if !resp.Streaming() {
		one := make(chan llm.Chunk, 1)
		one <- llm.Chunk{Text: resp.Text}
		close(one)
		chunks = one
	}

	var (
		answer    strings.Builder
		streamErr error
	)
loop:
	for {
		select {
		case <-ctx.Done():
			streamErr = context.Cause(ctx)
			break loop
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
				break loop
			}
			if text := rewriter.Feed(ctx, []byte(chunk.Text)); text != "" {
				answer.WriteString(text)
				emit("token", text)
			}
		}
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if tail := rewriter.Close(closeCtx); tail != "" {
		answer.WriteString(tail)
		emit("token", tail)
	}

	switch {
	case streamErr == nil:
		emit("done", conversationID)
		return "ok", answer.String()
	case errors.Is(streamErr, errStopped):
		s.Metrics.StoppedStreams.Inc()
		emit("done", conversationID)
		return "stopped", answer.String()
	default:
		slog.Warn("chat stream ended early", "conversation", conversationID, "err", streamErr)
		emit("error", errorMessage(ctx, streamErr))
		return outcomeOf(ctx, streamErr), answer.String()
	}
}

// persist saves the conversation with the answer appended, even when the request
// context is already cancelled.
func (s *APIV1Service) persist(ctx context.Context, conv *chat.Conversation, courseName, answer string, newConversation bool, configs llm.ProviderConfigs) {
	if s.Store == nil {
		return
	}
	if answer != "" {
		conv.Messages = append(conv.Messages, chat.Message{
			ID:      uuid.NewString(),
			Role:    chat.RoleAssistant,
			Content: chat.TextContent(answer),
		})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if _, err := s.Store.SaveConversation(ctx, conv, courseName); err != nil {
		slog.Error("failed to persist conversation", "conversation", conv.ID, "err", err)
		return
	}

	if newConversation && s.Profile.AutoTitle && answer != "" {
		go s.autoTitleConversation(context.Background(), conv, configs)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Stop
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) stopChat(c *echo.Context) error {
	id := c.Param("conversationId")
	if !s.aborts.Stop(id) {
		return echo.NewHTTPError(http.StatusNotFound, "no active request for this conversation")
	}
	return c.NoContent(http.StatusAccepted)
}

// ─────────────────────────────────────────────────────────────────────────────
// Auto-title
// ─────────────────────────────────────────────────────────────────────────────

const titlePrompt = "Generate a short (5-7 word) title for a chat that starts with:\n\"%s\"\nReturn only the title, no quotes."

func (s *APIV1Service) autoTitleConversation(ctx context.Context, conv *chat.Conversation, configs llm.ProviderConfigs) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	first := firstUserText(conv)
	if first == "" {
		return
	}
	titleConv := &chat.Conversation{
		ID:    conv.ID,
		Model: conv.Model,
		Messages: []chat.Message{{
			Role:    chat.RoleUser,
			Content: chat.TextContent(fmt.Sprintf(titlePrompt, truncateRunes(first, 500))),
		}},
	}
	resp, err := s.Router.Route(ctx, titleConv, configs, false)
	if err != nil || resp.Failed() {
		return
	}
	title, err := resp.Collect(ctx)
	title = truncateRunes(strings.Trim(strings.TrimSpace(title), `"'`), maxNameRunes)
	if err != nil || title == "" {
		return
	}

	stored, err := s.Store.GetConversation(ctx, storeFindByUID(conv.ID))
	if err != nil || stored == nil {
		return
	}
	stored.Name = title
	if _, err := s.Store.UpsertConversation(ctx, stored); err != nil {
		slog.Warn("failed to save conversation title", "conversation", conv.ID, "err", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) courseMetadata(ctx context.Context, courseName string) *chat.CourseMetadata {
	if s.Store != nil {
		course, err := s.Store.GetCourseMetadata(ctx, courseName)
		if err != nil {
			slog.Warn("failed to load course metadata", "course", courseName, "err", err)
		}
		if course != nil {
			return course
		}
	}
	return &chat.CourseMetadata{CourseName: courseName}
}

func conversationName(conv *chat.Conversation) string {
	name := truncateRunes(strings.Join(strings.Fields(firstUserText(conv)), " "), maxNameRunes)
	if name == "" {
		return defaultConversationName
	}
	return name
}

func firstUserText(conv *chat.Conversation) string {
	for i := range conv.Messages {
		if conv.Messages[i].Role == chat.RoleUser {
			return strings.TrimSpace(conv.Messages[i].Text())
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func outcomeOf(ctx context.Context, err error) string {
	switch {
	case errors.Is(context.Cause(ctx), errStopped):
		return "stopped"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func errorMessage(ctx context.Context, err error) string {
	switch outcomeOf(ctx, err) {
	case "stopped":
		return "request stopped"
	case "timeout":
		return "request timed out"
	default:
		return err.Error()
	}
}

func nonNil(contexts []chat.ContextWithMetadata) []chat.ContextWithMetadata {
	if contexts == nil {
		return []chat.ContextWithMetadata{}
	}
	return contexts
}
