package prompt

import (
	"fmt"
	"strings"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/plugin/tokenizer"
)

// Selection is the budget-constrained subset of retrieved contexts.
type Selection struct {
	// Contexts are the accepted snippets in their original relative order.
	Contexts []chat.ContextWithMetadata
	// Text is the rendered block, or NoContextsText when nothing was accepted.
	Text string
	// Tokens is the token count of the accepted rendered items.
	Tokens int
}

// Empty reports whether no context was accepted.
func (s Selection) Empty() bool {
	return len(s.Contexts) == 0
}

// RenderContext renders one snippet exactly as it appears in the prompt.
// n is the 1-based number that citations use to reference it.
func RenderContext(n int, c chat.ContextWithMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d: %s", n, c.ReadableFilename)
	if c.PageNumber != "" {
		fmt.Fprintf(&sb, ", page: %s", c.PageNumber)
	}
	sb.WriteString("\n")
	sb.WriteString(c.Text)
	sb.WriteString("\n")
	return sb.String()
}

// SelectContexts greedily accepts contexts in rank order while they fit tokenLimit.
// A candidate that does not fit is skipped and later, shorter candidates are still
// considered. Accepted contexts are renumbered consecutively so citation N always
// refers to the Nth rendered document.
func SelectContexts(tok tokenizer.Tokenizer, contexts []chat.ContextWithMetadata, tokenLimit int) Selection {
	if len(contexts) == 0 || tokenLimit <= 0 {
		return Selection{Text: NoContextsText}
	}

	var (
		accepted []chat.ContextWithMetadata
		rendered []string
		total    int
	)
	for _, c := range contexts {
		candidate := RenderContext(len(accepted)+1, c)
		cost := tok.Count(candidate)
		if len(accepted) > 0 {
			cost = tok.Count(contextSeparator + candidate)
		}
		if total+cost > tokenLimit {
			continue
		}
		total += cost
		accepted = append(accepted, c)
		rendered = append(rendered, candidate)
	}

	if len(accepted) == 0 {
		return Selection{Text: NoContextsText}
	}
	return Selection{
		Contexts: accepted,
		Text:     strings.Join(rendered, contextSeparator),
		Tokens:   total,
	}
}
