// Package citation rewrites citation markers in streamed model output into markdown
// links to the cited documents.
package citation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/uiucchat/chatcore/internal/chat"
)

// LinkResolver exchanges a stored document path for a retrievable URL.
type LinkResolver interface {
	ResolveLink(ctx context.Context, s3Path, courseName string) (string, error)
}

// Rewriter rewrites one response. It is not safe for concurrent use.
type Rewriter struct {
	contexts   []chat.ContextWithMetadata
	courseName string
	resolver   LinkResolver

	state   State
	pending []byte
	// links caches the validated URL per citation index; "" means no link.
	links map[int]string
}

// NewRewriter returns a Rewriter that resolves citation N to contexts[N-1].
// resolver may be nil, in which case only the contexts' own URLs are used.
func NewRewriter(contexts []chat.ContextWithMetadata, courseName string, resolver LinkResolver) *Rewriter {
	return &Rewriter{
		contexts:   contexts,
		courseName: courseName,
		resolver:   resolver,
		state:      State{lead: 1},
		links:      make(map[int]string),
	}
}

// Feed consumes the next chunk and returns the rewritten text that is ready to emit.
// A trailing incomplete UTF-8 sequence is held until the next chunk.
func (w *Rewriter) Feed(ctx context.Context, chunk []byte) string {
	data := append(w.pending, chunk...)
	cut := incompleteSuffix(data)
	w.pending = append([]byte(nil), data[cut:]...)

	var segs []Segment
	w.state, segs = Advance(w.state, string(data[:cut]))
	return w.render(ctx, segs)
}

// Close ends the stream and returns everything still buffered.
func (w *Rewriter) Close(ctx context.Context) string {
	var segs []Segment
	if len(w.pending) > 0 {
		w.state, segs = Advance(w.state, string(w.pending))
		w.pending = nil
	}
	segs = appendSegments(segs, Flush(w.state)...)
	w.state = State{lead: 1}
	return w.render(ctx, segs)
}

// RewriteAll rewrites a complete response in one pass.
func (w *Rewriter) RewriteAll(ctx context.Context, text string) string {
	return w.Feed(ctx, []byte(text)) + w.Close(ctx)
}

func (w *Rewriter) render(ctx context.Context, segs []Segment) string {
	var sb strings.Builder
	for _, seg := range segs {
		switch seg.Kind {
		case SegmentCite:
			sb.WriteString(w.renderCite(ctx, seg))
		case SegmentFilenameLink:
			sb.WriteString(w.renderFilenameLink(ctx, seg))
		default:
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}

func (w *Rewriter) renderCite(ctx context.Context, seg Segment) string {
	parts := make([]string, 0, len(seg.Refs))
	resolved := 0
	for _, ref := range seg.Refs {
		link, ok := w.citation(ctx, ref.Index, ref.Page)
		if !ok {
			link = escapeHTML(ref.marker())
		} else {
			resolved++
		}
		parts = append(parts, link)
	}
	if resolved == 0 {
		return escapeHTML(seg.Text)
	}
	return strings.Join(parts, ", ")
}

func (w *Rewriter) renderFilenameLink(ctx context.Context, seg Segment) string {
	prefix := seg.Text[:strings.IndexByte(seg.Text, '[')]
	if w.inRange(seg.Index) {
		c := w.contexts[seg.Index-1]
		if seg.Target == "" || seg.Target == "#" || strings.TrimSpace(seg.Label) == c.ReadableFilename {
			link, _ := w.citation(ctx, seg.Index, 0)
			return prefix + link
		}
	}

	label := SanitizeTitle(seg.Label)
	if safeTarget(seg.Target) {
		return prefix + "[" + label + "](" + seg.Target + ")"
	}
	return prefix + "[" + label + `]\(` + escapeHTML(seg.Target) + ")"
}

// citation renders "[Title (N, p.P)](url#page=P)" for context N, or the same display
// text without a link when no valid URL is available.
func (w *Rewriter) citation(ctx context.Context, index, page int) (string, bool) {
	if !w.inRange(index) {
		return "", false
	}
	c := w.contexts[index-1]
	if page <= 0 {
		page = c.PageNumber.Int()
	}

	title := SanitizeTitle(c.ReadableFilename)
	if title == "" {
		title = "Document"
	}
	display := fmt.Sprintf("%s (%d)", title, index)
	if page > 0 {
		display = fmt.Sprintf("%s (%d, p.%d)", title, index, page)
	}

	link := w.link(ctx, index, c)
	if link == "" {
		return display, true
	}
	if page > 0 && !strings.Contains(link, "#") {
		link += "#page=" + strconv.Itoa(page)
	}
	return "[" + display + "](" + link + ")", true
}

func (w *Rewriter) link(ctx context.Context, index int, c chat.ContextWithMetadata) string {
	if link, ok := w.links[index]; ok {
		return link
	}

	var raw string
	if c.S3Path != "" && w.resolver != nil {
		resolved, err := w.resolver.ResolveLink(ctx, c.S3Path, w.courseName)
		switch {
		case err != nil:
			slog.Warn("failed to resolve citation link", "course", w.courseName, "s3Path", c.S3Path, "err", err)
		case !ValidURL(resolved):
			slog.Warn("dropping invalid resolved citation link", "course", w.courseName, "index", index)
		default:
			raw = resolved
		}
	}
	// The context's own URL backs up a document path that could not be resolved.
	if raw == "" && c.URL != "" {
		if ValidURL(c.URL) {
			raw = c.URL
		} else {
			slog.Warn("dropping invalid citation link", "course", w.courseName, "index", index)
		}
	}
	w.links[index] = raw
	return raw
}

func (w *Rewriter) inRange(index int) bool {
	return index >= 1 && index <= len(w.contexts)
}

// incompleteSuffix returns the offset where a trailing partial UTF-8 sequence starts,
// or len(data) when data ends on a rune boundary.
func incompleteSuffix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			break
		}
	}
	return len(data)
}
