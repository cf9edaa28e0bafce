package citation

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode is the scanner position of the citation state machine.
type Mode int

const (
	// Normal passes text through.
	Normal Mode = iota
	// TagOpen has seen "<" and the input so far could still become "<cite".
	TagOpen
	// InCiteTag is inside "<cite ...", waiting for ">".
	InCiteTag
	// InCiteContent is between "<cite>" and "</cite>".
	InCiteContent
	// PossibleFilename has seen a run of digits.
	PossibleFilename
	// AfterDigitPeriod has seen "N.".
	AfterDigitPeriod
	// AfterDigitPeriodSpace has seen "N. ".
	AfterDigitPeriodSpace
	// InFilenameLink is inside "N. [label](target".
	InFilenameLink
	// AfterBracket has seen "]" in normal text.
	AfterBracket
	// InLinkTarget is inside a markdown link destination "](...".
	InLinkTarget
	// Backticks is reading a run of backticks in normal text.
	Backticks
	// InCodeSpan is inside an inline code span, waiting for a closing run as long
	// as the opening one.
	InCodeSpan
	// FenceInfo is reading the info string after an opening code fence.
	FenceInfo
	// InFence is inside a fenced code block.
	InFence
	// FenceBackticks is reading a run of backticks inside a fenced code block.
	FenceBackticks
	// AfterBackslash has seen "\" in normal text.
	AfterBackslash
)

var modeNames = [...]string{
	Normal:                "Normal",
	TagOpen:               "TagOpen",
	InCiteTag:             "InCiteTag",
	InCiteContent:         "InCiteContent",
	PossibleFilename:      "PossibleFilename",
	AfterDigitPeriod:      "AfterDigitPeriod",
	AfterDigitPeriodSpace: "AfterDigitPeriodSpace",
	InFilenameLink:        "InFilenameLink",
	AfterBracket:          "AfterBracket",
	InLinkTarget:          "InLinkTarget",
	Backticks:             "Backticks",
	InCodeSpan:            "InCodeSpan",
	FenceInfo:             "FenceInfo",
	InFence:               "InFence",
	FenceBackticks:        "FenceBackticks",
	AfterBackslash:        "AfterBackslash",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
	return modeNames[m]
}

const (
	maxCiteTag        = 64
	maxCiteContent    = 128
	maxFootnoteDigits = 4
	maxLinkLabel      = 256
	maxLinkTarget     = 2048
	maxBackticks      = 32
	maxCodeSpan       = 1024
	maxFenceInfo      = 256
	minFence          = 3
	maxFenceIndent    = 3

	citeOpener = "<cite"
	citeCloser = "</cite>"
)

// State is the scanner mode plus the raw text of the candidate being read.
// Buf is empty in Normal and InFence and holds undecided input otherwise.
//
// Text inside code spans and fenced blocks is passed through verbatim; markdown
// renderers never treat it as markup.
type State struct {
	Mode Mode
	Buf  string

	// fence is the opening backtick run of the enclosing fenced block.
	fence string
	// lead is 0 once anything but indentation has been seen on the current line,
	// and 1 plus the indentation width before that.
	lead int
}

// SegmentKind tells literal output apart from parsed markers.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentCite
	SegmentFilenameLink
)

// Ref is one document reference inside a cite tag. Page is 0 when absent.
type Ref struct {
	Index int
	Page  int
}

func (r Ref) marker() string {
	if r.Page > 0 {
		return "<cite>" + strconv.Itoa(r.Index) + ", p." + strconv.Itoa(r.Page) + "</cite>"
	}
	return "<cite>" + strconv.Itoa(r.Index) + "</cite>"
}

// Segment is a unit of scanner output. For SegmentText, Text is ready to emit.
// For markers, Text is the raw marker as it appeared in the stream.
type Segment struct {
	Kind SegmentKind
	Text string

	// Refs is set for SegmentCite.
	Refs []Ref

	// Index, Label and Target are set for SegmentFilenameLink.
	Index  int
	Label  string
	Target string
}

func textSegment(s string) Segment {
	return Segment{Kind: SegmentText, Text: s}
}

// Advance feeds text through the state machine rune by rune.
func Advance(s State, text string) (State, []Segment) {
	var out []Segment
	for _, r := range text {
		var segs []Segment
		s, segs = Transition(s, r)
		out = appendSegments(out, segs...)
	}
	return s, out
}

// Flush ends the stream. Whatever is still buffered is released through the same path
// an aborted candidate takes, so it comes out as escaped literal text and any complete
// marker inside it still resolves.
func Flush(s State) []Segment {
	var out []Segment
	for s.Buf != "" {
		var segs []Segment
		switch s.Mode {
		case PossibleFilename, AfterDigitPeriod, AfterDigitPeriodSpace, AfterBracket,
			Backticks, FenceBackticks, AfterBackslash:
			s, segs = State{}, []Segment{textSegment(s.Buf)}
		case InCodeSpan:
			if codeSpanClosed(s.Buf) {
				s, segs = State{}, []Segment{textSegment(s.Buf)}
			} else {
				s, segs = abortCodeSpan(s.Buf)
			}
		case FenceInfo:
			s, segs = abortCodeSpan(s.Buf)
		case InLinkTarget:
			s, segs = disarm(s.Buf)
		default:
			s, segs = abort(s.Buf)
		}
		out = appendSegments(out, segs...)
	}
	return out
}

// Transition consumes one rune. It never looks past r: an undecided candidate stays in
// the returned State until later input settles it.
func Transition(s State, r rune) (State, []Segment) {
	next, segs := step(s, r)
	switch {
	case r == '\n':
		next.lead = 1
	case s.lead == 0:
		next.lead = 0
	case r == '`' && (next.Mode == Backticks || next.Mode == FenceBackticks):
		next.lead = s.lead
	case s.Mode == Backticks || s.Mode == FenceBackticks:
		next.lead = 0
	case r == ' ':
		next.lead = s.lead + 1
	case r == '\t':
		next.lead = s.lead + 4
	default:
		next.lead = 0
	}
	return next, segs
}

func step(s State, r rune) (State, []Segment) {
	switch s.Mode {
	case TagOpen:
		return tagOpen(s.Buf, r)
	case InCiteTag:
		return citeTag(s.Buf, r)
	case InCiteContent:
		return citeContent(s.Buf, r)
	case Backticks:
		return backticks(s, r)
	case InCodeSpan:
		return codeSpan(s.Buf, r)
	case FenceInfo:
		return fenceInfo(s.Buf, r)
	case InFence:
		return fenced(s.fence, r)
	case FenceBackticks:
		return fenceBackticks(s, r)
	case AfterBackslash:
		return afterBackslash(r)
	case PossibleFilename:
		return possibleFilename(s.Buf, r)
	case AfterDigitPeriod:
		return afterDigitPeriod(s.Buf, r)
	case AfterDigitPeriodSpace:
		return afterDigitPeriodSpace(s.Buf, r)
	case InFilenameLink:
		return filenameLink(s.Buf, r)
	case AfterBracket:
		return afterBracket(r)
	case InLinkTarget:
		return linkTarget(s.Buf, r)
	default:
		return normal(r)
	}
}

func normal(r rune) (State, []Segment) {
	switch {
	case r == '<':
		return State{Mode: TagOpen, Buf: "<"}, nil
	case isDigit(r):
		return State{Mode: PossibleFilename, Buf: string(r)}, nil
	case r == ']':
		return State{Mode: AfterBracket, Buf: "]"}, nil
	case r == '`':
		return State{Mode: Backticks, Buf: "`"}, nil
	case r == '\\':
		return State{Mode: AfterBackslash, Buf: `\`}, nil
	}
	return State{}, []Segment{textSegment(string(r))}
}

// tagOpen keeps reading while the input can still become a cite tag. Anything else
// that starts with "<" is released as escaped text.
func tagOpen(buf string, r rune) (State, []Segment) {
	next := buf + string(r)
	if strings.EqualFold(buf, citeOpener) {
		switch {
		case r == '>':
			return State{Mode: InCiteContent, Buf: next}, nil
		case unicode.IsSpace(r):
			return State{Mode: InCiteTag, Buf: next}, nil
		}
		return abort(next)
	}
	if len(next) <= len(citeOpener) && strings.EqualFold(next, citeOpener[:len(next)]) {
		return State{Mode: TagOpen, Buf: next}, nil
	}
	return abort(next)
}

func citeTag(buf string, r rune) (State, []Segment) {
	switch {
	case r == '>':
		return State{Mode: InCiteContent, Buf: buf + ">"}, nil
	case r == '<' || r == '\n' || len(buf) >= maxCiteTag:
		return abort(buf + string(r))
	}
	return State{Mode: InCiteTag, Buf: buf + string(r)}, nil
}

func citeContent(buf string, r rune) (State, []Segment) {
	next := buf + string(r)
	content := next[strings.IndexByte(next, '>')+1:]
	if r == '\n' || len(content) > maxCiteContent+len(citeCloser) {
		return abort(next)
	}

	if n := len(content) - len(citeCloser); n >= 0 && strings.EqualFold(content[n:], citeCloser) {
		refs, ok := parseRefs(content[:n])
		if !ok {
			return State{}, []Segment{textSegment(escapeHTML(next))}
		}
		return State{}, []Segment{{Kind: SegmentCite, Text: next, Refs: refs}}
	}

	// A "<" inside the content must be on its way to becoming the closer.
	if i := strings.LastIndexByte(content, '<'); i >= 0 {
		tail := content[i:]
		if len(tail) > len(citeCloser) || !strings.EqualFold(tail, citeCloser[:len(tail)]) {
			return abort(next)
		}
	}
	return State{Mode: InCiteContent, Buf: next}, nil
}

func possibleFilename(buf string, r rune) (State, []Segment) {
	switch {
	case isDigit(r) && len(buf) < maxFootnoteDigits:
		return State{Mode: PossibleFilename, Buf: buf + string(r)}, nil
	case r == '.':
		return State{Mode: AfterDigitPeriod, Buf: buf + "."}, nil
	}
	return release(buf, r)
}

func afterDigitPeriod(buf string, r rune) (State, []Segment) {
	switch r {
	case ' ':
		return State{Mode: AfterDigitPeriodSpace, Buf: buf + " "}, nil
	case '[':
		return State{Mode: InFilenameLink, Buf: buf + "["}, nil
	}
	return release(buf, r)
}

func afterDigitPeriodSpace(buf string, r rune) (State, []Segment) {
	if r == '[' {
		return State{Mode: InFilenameLink, Buf: buf + "["}, nil
	}
	return release(buf, r)
}

func filenameLink(buf string, r rune) (State, []Segment) {
	next := buf + string(r)
	if r == '\n' {
		return abort(next)
	}

	open := strings.IndexByte(buf, '[')
	label := buf[open+1:]
	closing := strings.IndexByte(label, ']')
	switch {
	case closing < 0:
		if len(label) >= maxLinkLabel {
			return abort(next)
		}
	case closing == len(label)-1:
		if r != '(' {
			return abort(next)
		}
	default:
		target := label[closing+2:]
		if r == ')' {
			index, _ := strconv.Atoi(buf[:strings.IndexByte(buf, '.')])
			return State{}, []Segment{{
				Kind:   SegmentFilenameLink,
				Text:   next,
				Index:  index,
				Label:  label[:closing],
				Target: target,
			}}
		}
		if unicode.IsSpace(r) || r == '<' || len(target) >= maxLinkTarget {
			return abort(next)
		}
	}
	return State{Mode: InFilenameLink, Buf: next}, nil
}

func afterBracket(r rune) (State, []Segment) {
	switch r {
	case '(':
		return State{Mode: InLinkTarget, Buf: "]("}, nil
	case ':':
		// "[label]: target" would define a link reference.
		return State{}, []Segment{textSegment(`]\:`)}
	}
	return release("]", r)
}

func linkTarget(buf string, r rune) (State, []Segment) {
	target := buf[len("]("):]
	switch {
	case r == ')':
		if safeTarget(target) {
			return State{}, []Segment{textSegment("](" + target + ")")}
		}
		return State{}, []Segment{textSegment(`]\(` + escapeHTML(target) + ")")}
	case unicode.IsSpace(r) || r == '<' || len(target) >= maxLinkTarget:
		return disarm(buf + string(r))
	}
	return State{Mode: InLinkTarget, Buf: buf + string(r)}, nil
}

// backticks ends or extends a backtick run. A run of three or more that starts an
// unindented line opens a fenced block; any other run opens an inline code span.
func backticks(s State, r rune) (State, []Segment) {
	if r == '`' {
		if len(s.Buf) < maxBackticks {
			return State{Mode: Backticks, Buf: s.Buf + "`"}, nil
		}
		return release(s.Buf, r)
	}
	if len(s.Buf) >= minFence && s.lead == 1 {
		return fenceInfo(s.Buf, r)
	}
	return codeSpan(s.Buf, r)
}

// codeSpan buffers an inline code span until a backtick run of the opening length
// closes it. Spans do not cross lines here, and a pipe gives the span up because
// table rows are split into cells before code spans are parsed.
func codeSpan(buf string, r rune) (State, []Segment) {
	if r != '`' {
		if codeSpanClosed(buf) {
			return release(buf, r)
		}
		if r == '\n' || r == '|' {
			return abortCodeSpan(buf + string(r))
		}
	}
	if len(buf) >= maxCodeSpan {
		return abortCodeSpan(buf + string(r))
	}
	return State{Mode: InCodeSpan, Buf: buf + string(r)}, nil
}

// codeSpanClosed reports whether buf is a complete code span.
func codeSpanClosed(buf string) bool {
	n := leadingBackticks(buf)
	body := buf[n:]
	k := len(body) - len(strings.TrimRight(body, "`"))
	return k == n && k < len(body)
}

// abortCodeSpan gives up on a code span: the opening run is emitted as literal
// backticks and the rest is scanned again from Normal.
func abortCodeSpan(text string) (State, []Segment) {
	n := leadingBackticks(text)
	s, segs := Advance(State{}, text[n:])
	return s, appendSegments([]Segment{textSegment(text[:n])}, segs...)
}

// fenceInfo holds the opening fence line. A backtick in the info string means the
// run was an inline code span after all.
func fenceInfo(buf string, r rune) (State, []Segment) {
	switch {
	case r == '\n':
		return State{Mode: InFence, fence: buf[:leadingBackticks(buf)]}, []Segment{textSegment(buf + "\n")}
	case r == '`' || len(buf) >= maxFenceInfo:
		return codeSpan(buf, r)
	}
	return State{Mode: FenceInfo, Buf: buf + string(r)}, nil
}

func fenced(fence string, r rune) (State, []Segment) {
	if r == '`' {
		return State{Mode: FenceBackticks, Buf: "`", fence: fence}, nil
	}
	return State{Mode: InFence, fence: fence}, []Segment{textSegment(string(r))}
}

// fenceBackticks ends the block on a run at least as long as the opening one that
// starts a line indented by at most three columns.
func fenceBackticks(s State, r rune) (State, []Segment) {
	if r == '`' && len(s.Buf) < maxBackticks {
		return State{Mode: FenceBackticks, Buf: s.Buf + "`", fence: s.fence}, nil
	}
	if len(s.Buf) >= len(s.fence) && s.lead > 0 && s.lead-1 <= maxFenceIndent {
		return release(s.Buf, r)
	}
	next, segs := fenced(s.fence, r)
	return next, appendSegments([]Segment{textSegment(s.Buf)}, segs...)
}

// afterBackslash keeps an escaped backtick from opening a code span.
func afterBackslash(r rune) (State, []Segment) {
	if r == '`' || r == '\\' {
		return State{}, []Segment{textSegment(`\` + string(r))}
	}
	return release(`\`, r)
}

func leadingBackticks(s string) int {
	return len(s) - len(strings.TrimLeft(s, "`"))
}

// abort gives up on a candidate: its first rune is emitted escaped and the rest is
// scanned again from Normal.
func abort(text string) (State, []Segment) {
	r, size := utf8.DecodeRuneInString(text)
	out := []Segment{textSegment(escapeRune(r))}
	s, segs := Advance(State{}, text[size:])
	return s, appendSegments(out, segs...)
}

// disarm gives up on a link destination so "](" can no longer form a link.
func disarm(text string) (State, []Segment) {
	out := []Segment{textSegment(`]\`)}
	s, segs := Advance(State{}, text[1:])
	return s, appendSegments(out, segs...)
}

// release emits buf as plain text and rescans r from Normal.
func release(buf string, r rune) (State, []Segment) {
	s, segs := normal(r)
	return s, appendSegments([]Segment{textSegment(buf)}, segs...)
}

func appendSegments(out []Segment, segs ...Segment) []Segment {
	for _, seg := range segs {
		if seg.Kind == SegmentText {
			if seg.Text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Kind == SegmentText {
				out[n-1].Text += seg.Text
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

// parseRefs parses "1", "1,p.3" or "1, 3, p.7" into references.
func parseRefs(content string) ([]Ref, bool) {
	var refs []Ref
	for _, part := range strings.Split(content, ",") {
		part = strings.TrimSpace(part)
		if page, ok := parsePage(part); ok {
			if len(refs) == 0 || refs[len(refs)-1].Page != 0 {
				return nil, false
			}
			refs[len(refs)-1].Page = page
			continue
		}
		index, ok := parseNumber(part)
		if !ok {
			return nil, false
		}
		refs = append(refs, Ref{Index: index})
	}
	return refs, len(refs) > 0
}

func parsePage(s string) (int, bool) {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "page"):
		lower = lower[len("page"):]
	case strings.HasPrefix(lower, "p"):
		lower = lower[1:]
	default:
		return 0, false
	}
	lower = strings.TrimSpace(strings.TrimPrefix(lower, "."))
	n, ok := parseNumber(lower)
	return n, ok && n > 0
}

func parseNumber(s string) (int, bool) {
	if s == "" || len(s) > 6 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(rune(s[i])) {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

