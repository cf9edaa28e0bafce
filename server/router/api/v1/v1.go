package v1

import (
	"context"

	"github.com/labstack/echo/v5"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/internal/citation"
	"github.com/uiucchat/chatcore/internal/llm"
	"github.com/uiucchat/chatcore/internal/profile"
	"github.com/uiucchat/chatcore/internal/prompt"
	"github.com/uiucchat/chatcore/plugin/tokenizer"
	"github.com/uiucchat/chatcore/server/metrics"
	"github.com/uiucchat/chatcore/store"
)

// Retriever finds course snippets relevant to a query.
type Retriever interface {
	FetchContexts(ctx context.Context, course, query string, tokenLimit int, docGroups []string) ([]chat.ContextWithMetadata, error)
}

// APIV1Service serves the chat API. Store, Retriever and Links are optional.
type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Retriever Retriever
	Links     citation.LinkResolver
	Router    *llm.Router
	Tokens    tokenizer.Source
	Metrics   *metrics.Metrics

	assembler *prompt.Assembler
	aborts    *abortRegistry
}

func NewAPIV1Service(p *profile.Profile, router *llm.Router, tokens tokenizer.Source, m *metrics.Metrics) *APIV1Service {
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &APIV1Service{
		Profile:   p,
		Router:    router,
		Tokens:    tokens,
		Metrics:   m,
		assembler: prompt.NewAssembler(tokens, p.TokenReserve),
		aborts:    newAbortRegistry(p.StopCooldown),
	}
}

// RegisterRoutes mounts the v1 API on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/chat", s.handleChat)
	g.POST("/chat/:conversationId/stop", s.stopChat)

	g.GET("/conversations", s.listConversations)
	g.GET("/conversations/:uid/messages", s.getConversation)
	g.DELETE("/conversations/:uid", s.deleteConversation)
}
