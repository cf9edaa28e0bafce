// Package prompt builds the token-budgeted system and user prompts for a chat turn.
package prompt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/plugin/tokenizer"
)

// DefaultTokenReserve is held back from the model's context window for provider overhead.
const DefaultTokenReserve = 1500

var (
	ErrNilConversation      = errors.New("prompt: conversation is nil")
	ErrEmptyConversation    = errors.New("prompt: conversation has no messages")
	ErrTokenizerUnavailable = errors.New("prompt: tokenizer unavailable for context budgeting")
	ErrPromptTooLarge       = errors.New("prompt: system prompt and query exceed the model token budget")
)

// Assembly is the outcome of a successful Assemble call.
type Assembly struct {
	SystemPrompt string
	UserPrompt   string
	// Contexts are the snippets that made it into the prompt, in citation order.
	Contexts []chat.ContextWithMetadata
	// RemainingTokens is what is left of the budget after every emitted section.
	RemainingTokens int
	// HistoryBudget is the token allowance for prior turns (reserve plus leftovers).
	HistoryBudget int
}

// Assembler composes prompts under a single token ceiling.
type Assembler struct {
	tokens  tokenizer.Source
	reserve int
}

// NewAssembler returns an Assembler. A non-positive reserve selects DefaultTokenReserve.
func NewAssembler(tokens tokenizer.Source, reserve int) *Assembler {
	if reserve <= 0 {
		reserve = DefaultTokenReserve
	}
	return &Assembler{tokens: tokens, reserve: reserve}
}

// Assemble populates the last message's LatestSystemMessage and
// FinalPromptEngineeredMessage, replaces its contexts with the selected subset and
// appends tool-generated images to its content. The message is left untouched on error.
func (a *Assembler) Assemble(conv *chat.Conversation, course *chat.CourseMetadata) (*Assembly, error) {
	if conv == nil {
		slog.Error("failed to assemble prompt", "err", ErrNilConversation)
		return nil, ErrNilConversation
	}
	last := conv.LastMessage()
	if last == nil {
		slog.Error("failed to assemble prompt", "conversation", conv.ID, "err", ErrEmptyConversation)
		return nil, ErrEmptyConversation
	}
	if course == nil {
		course = &chat.CourseMetadata{}
	}

	asm, content, err := a.assemble(conv, last, course)
	if err != nil {
		slog.Error("failed to assemble prompt", "conversation", conv.ID, "model", conv.Model.ID, "err", err)
		return nil, err
	}

	last.LatestSystemMessage = asm.SystemPrompt
	last.FinalPromptEngineeredMessage = asm.UserPrompt
	last.Contexts = asm.Contexts
	last.Content = content
	return asm, nil
}

func (a *Assembler) assemble(conv *chat.Conversation, last *chat.Message, course *chat.CourseMetadata) (*Assembly, chat.MessageContent, error) {
	hasContexts := len(last.Contexts) > 0

	tok, err := a.tokens.Tokenizer()
	if err != nil {
		if hasContexts {
			return nil, last.Content, fmt.Errorf("%w: %v", ErrTokenizerUnavailable, err)
		}
		slog.Warn("assembling prompt without token accounting", "conversation", conv.ID, "err", err)
	}

	b := &budget{tok: tok, remaining: conv.Model.TokenLimit - a.reserve}

	system := BuildSystemPrompt(conv, course, hasContexts)
	b.spend(system)

	query := WrapQuery(last.Text())
	b.spend(query)
	if b.enforced() && b.remaining < 0 {
		return nil, last.Content, fmt.Errorf("%w: limit %d, reserve %d, over by %d",
			ErrPromptTooLarge, conv.Model.TokenLimit, a.reserve, -b.remaining)
	}

	historyReserve := 0
	if b.enforced() {
		historyReserve = min(recentHistoryTokens(tok, conv.Messages), b.remaining)
		b.remaining -= historyReserve
	}

	var sections []string
	selected := last.Contexts
	if hasContexts {
		block, ctxs := a.contextsSection(b, last.Contexts)
		selected = ctxs
		if block != "" {
			sections = append(sections, block)
		}
	}

	content := last.Content
	if len(last.Tools) > 0 {
		transcript, images := RenderToolOutputs(last.Tools)
		if block := toolsSection(b, transcript); block != "" {
			sections = append(sections, block)
		}
		content = AppendImageParts(last.Content, images)
	}

	sections = append(sections, query)

	asm := &Assembly{
		SystemPrompt:    system,
		UserPrompt:      strings.Join(sections, ""),
		Contexts:        selected,
		RemainingTokens: b.remaining,
		HistoryBudget:   b.remaining + historyReserve,
	}
	return asm, content, nil
}

// contextsSection selects contexts under what is left of the budget and returns the
// emitted block (with its trailing separator) and the accepted contexts. Callers
// guarantee the budget is enforced whenever contexts exist.
func (a *Assembler) contextsSection(b *budget, contexts []chat.ContextWithMetadata) (string, []chat.ContextWithMetadata) {
	limit := b.remaining - b.tok.Count(ContextsBlock("")+sectionSeparator)
	for attempt := 0; attempt < 3; attempt++ {
		sel := SelectContexts(b.tok, contexts, limit)
		block := ContextsBlock(sel.Text) + sectionSeparator
		cost := b.tok.Count(block)
		if cost <= b.remaining {
			b.remaining -= cost
			return block, sel.Contexts
		}
		// Token counts are not strictly additive across joins; shrink and retry.
		limit -= cost - b.remaining
	}
	return "", nil
}

// toolsSection emits the tool instructions and transcript, truncating the transcript
// to the remaining budget. It returns "" when not even the instructions fit.
func toolsSection(b *budget, transcript string) string {
	render := func(t string) string {
		return ToolInstructions + "\n" + toolOutputsOpenTag + "\n" + t + "\n" + toolOutputsCloseTag + sectionSeparator
	}
	if !b.enforced() {
		return render(transcript)
	}

	block := render(transcript)
	cost := b.tok.Count(block)
	if cost > b.remaining {
		overhead := b.tok.Count(render(""))
		if overhead >= b.remaining {
			slog.Warn("dropping tool outputs from prompt", "remaining", b.remaining, "needed", cost)
			return ""
		}
		block = render(b.tok.Truncate(transcript, b.remaining-overhead))
		cost = b.tok.Count(block)
		if cost > b.remaining {
			slog.Warn("dropping tool outputs from prompt", "remaining", b.remaining, "needed", cost)
			return ""
		}
	}
	b.remaining -= cost
	return block
}

// ContextsBlock wraps the selector output in its delimiter tags.
func ContextsBlock(selected string) string {
	return contextsOpenTag + "\n" + selected + "\n" + contextsCloseTag + "\n" + contextsFooter
}

// WrapQuery wraps the literal user query in its delimiter tags.
func WrapQuery(query string) string {
	return queryOpenTag + "\n" + query + "\n" + queryCloseTag
}

// recentHistoryTokens counts the two messages that precede the final one.
func recentHistoryTokens(tok tokenizer.Tokenizer, messages []chat.Message) int {
	end := len(messages) - 1
	start := max(end-2, 0)
	total := 0
	for i := start; i < end; i++ {
		total += tok.Count(messages[i].Text())
	}
	return total
}

type budget struct {
	tok       tokenizer.Tokenizer
	remaining int
}

func (b *budget) enforced() bool {
	return b.tok != nil
}

func (b *budget) spend(s string) {
	if b.tok != nil {
		b.remaining -= b.tok.Count(s)
	}
}
