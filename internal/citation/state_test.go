package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		r    rune
		to   State
		segs []Segment
	}{
		{"plain text", State{}, 'a', State{}, []Segment{textSegment("a")}},
		{"open angle", State{}, '<', State{Mode: TagOpen, Buf: "<"}, nil},
		{"angle before space", State{Mode: TagOpen, Buf: "<"}, ' ', State{}, []Segment{textSegment("&lt; ")}},
		{"tag name grows", State{Mode: TagOpen, Buf: "<cit"}, 'e', State{Mode: TagOpen, Buf: "<cite"}, nil},
		{"cite opens", State{Mode: TagOpen, Buf: "<cite"}, '>', State{Mode: InCiteContent, Buf: "<cite>"}, nil},
		{"cite with attributes", State{Mode: TagOpen, Buf: "<CITE"}, ' ', State{Mode: InCiteTag, Buf: "<CITE "}, nil},
		{"cite attributes close", State{Mode: InCiteTag, Buf: "<cite id=a"}, '>', State{Mode: InCiteContent, Buf: "<cite id=a>"}, nil},
		{"other tag escaped", State{Mode: TagOpen, Buf: "<"}, 'b', State{}, []Segment{textSegment("&lt;b")}},
		{"generic type escaped", State{Mode: TagOpen, Buf: "<"}, 'S', State{}, []Segment{textSegment("&lt;S")}},
		{"cite prefix broken", State{Mode: TagOpen, Buf: "<ci"}, '"', State{}, []Segment{textSegment(`&lt;ci"`)}},
		{"longer tag name escaped", State{Mode: TagOpen, Buf: "<cite"}, 's', State{}, []Segment{textSegment("&lt;cites")}},
		{
			"cite completes", State{Mode: InCiteContent, Buf: "<cite>1</cite"}, '>', State{},
			[]Segment{{Kind: SegmentCite, Text: "<cite>1</cite>", Refs: []Ref{{Index: 1}}}},
		},
		{
			"cite with page completes", State{Mode: InCiteContent, Buf: "<cite>2,p.14</CITE"}, '>', State{},
			[]Segment{{Kind: SegmentCite, Text: "<cite>2,p.14</CITE>", Refs: []Ref{{Index: 2, Page: 14}}}},
		},
		{"unparsable cite is escaped", State{Mode: InCiteContent, Buf: "<cite>abc</cite"}, '>', State{}, []Segment{textSegment("&lt;cite&gt;abc&lt;/cite&gt;")}},
		{"closer may start", State{Mode: InCiteContent, Buf: "<cite>1"}, '<', State{Mode: InCiteContent, Buf: "<cite>1<"}, nil},
		{"wrong closer aborts", State{Mode: InCiteContent, Buf: "<cite>1<"}, 'b', State{}, []Segment{textSegment("&lt;cite>1&lt;b")}},
		{"newline aborts cite", State{Mode: InCiteContent, Buf: "<cite>x"}, '\n', State{lead: 1}, []Segment{textSegment("&lt;cite>x\n")}},
		{"digits", State{Mode: PossibleFilename, Buf: "1"}, '2', State{Mode: PossibleFilename, Buf: "12"}, nil},
		{"digits then period", State{Mode: PossibleFilename, Buf: "12"}, '.', State{Mode: AfterDigitPeriod, Buf: "12."}, nil},
		{"digits released", State{Mode: PossibleFilename, Buf: "12"}, 'x', State{}, []Segment{textSegment("12x")}},
		{"decimal released", State{Mode: AfterDigitPeriod, Buf: "2."}, '5', State{Mode: PossibleFilename, Buf: "5"}, []Segment{textSegment("2.")}},
		{"period space", State{Mode: AfterDigitPeriod, Buf: "1."}, ' ', State{Mode: AfterDigitPeriodSpace, Buf: "1. "}, nil},
		{"footnote link opens", State{Mode: AfterDigitPeriodSpace, Buf: "1. "}, '[', State{Mode: InFilenameLink, Buf: "1. ["}, nil},
		{"footnote without space", State{Mode: AfterDigitPeriod, Buf: "3."}, '[', State{Mode: InFilenameLink, Buf: "3.["}, nil},
		{"numbered list released", State{Mode: AfterDigitPeriodSpace, Buf: "1. "}, 'F', State{}, []Segment{textSegment("1. F")}},
		{
			"footnote completes", State{Mode: InFilenameLink, Buf: "1. [a.pdf](#"}, ')', State{},
			[]Segment{{Kind: SegmentFilenameLink, Text: "1. [a.pdf](#)", Index: 1, Label: "a.pdf", Target: "#"}},
		},
		{"footnote label without target aborts", State{Mode: InFilenameLink, Buf: "1. [a]"}, 'x', State{}, []Segment{textSegment("1. [a]x")}},
		{"bracket then paren", State{Mode: AfterBracket, Buf: "]"}, '(', State{Mode: InLinkTarget, Buf: "]("}, nil},
		{"reference definition disarmed", State{Mode: AfterBracket, Buf: "]"}, ':', State{}, []Segment{textSegment(`]\:`)}},
		{"safe link kept", State{Mode: InLinkTarget, Buf: "](https://x.org"}, ')', State{}, []Segment{textSegment("](https://x.org)")}},
		{"unsafe link disarmed", State{Mode: InLinkTarget, Buf: "](javascript:alert(1"}, ')', State{}, []Segment{textSegment(`]\(javascript:alert(1)`)}},
		{"link target with space disarmed", State{Mode: InLinkTarget, Buf: "](a"}, ' ', State{}, []Segment{textSegment(`]\(a `)}},
		{"backtick opens run", State{}, '`', State{Mode: Backticks, Buf: "`"}, nil},
		{"code span opens", State{Mode: Backticks, Buf: "`"}, '<', State{Mode: InCodeSpan, Buf: "`<"}, nil},
		{"code span closes verbatim", State{Mode: InCodeSpan, Buf: "`a<b`"}, ' ', State{}, []Segment{textSegment("`a<b` ")}},
		{"longer run keeps span open", State{Mode: InCodeSpan, Buf: "`a`"}, '`', State{Mode: InCodeSpan, Buf: "`a``"}, nil},
		{"code span ends at newline", State{Mode: InCodeSpan, Buf: "`a<b"}, '\n', State{lead: 1}, []Segment{textSegment("`a&lt;b\n")}},
		{"pipe gives up code span", State{Mode: InCodeSpan, Buf: "`<b"}, '|', State{}, []Segment{textSegment("`&lt;b|")}},
		{"run at line start keeps lead", State{lead: 1}, '`', State{Mode: Backticks, Buf: "`", lead: 1}, nil},
		{"fence opens at line start", State{Mode: Backticks, Buf: "```", lead: 1}, 'g', State{Mode: FenceInfo, Buf: "```g"}, nil},
		{"indented run is a code span", State{Mode: Backticks, Buf: "```", lead: 3}, 'g', State{Mode: InCodeSpan, Buf: "```g"}, nil},
		{"mid-line run is a code span", State{Mode: Backticks, Buf: "```"}, 'g', State{Mode: InCodeSpan, Buf: "```g"}, nil},
		{"fence info ends", State{Mode: FenceInfo, Buf: "```go"}, '\n', State{Mode: InFence, fence: "```", lead: 1}, []Segment{textSegment("```go\n")}},
		{"backtick in fence info", State{Mode: FenceInfo, Buf: "```a"}, '`', State{Mode: InCodeSpan, Buf: "```a`"}, nil},
		{"fenced text verbatim", State{Mode: InFence, fence: "```"}, '<', State{Mode: InFence, fence: "```"}, []Segment{textSegment("<")}},
		{"fenced indentation counted", State{Mode: InFence, fence: "```", lead: 1}, ' ', State{Mode: InFence, fence: "```", lead: 2}, []Segment{textSegment(" ")}},
		{"fence closes", State{Mode: FenceBackticks, Buf: "```", fence: "```", lead: 1}, '\n', State{lead: 1}, []Segment{textSegment("```\n")}},
		{"short run stays fenced", State{Mode: FenceBackticks, Buf: "``", fence: "```", lead: 1}, '<', State{Mode: InFence, fence: "```"}, []Segment{textSegment("``<")}},
		{"mid-line run stays fenced", State{Mode: FenceBackticks, Buf: "```", fence: "```"}, 'x', State{Mode: InFence, fence: "```"}, []Segment{textSegment("```x")}},
		{"deeply indented run stays fenced", State{Mode: FenceBackticks, Buf: "```", fence: "```", lead: 5}, '\n', State{Mode: InFence, fence: "```", lead: 1}, []Segment{textSegment("```\n")}},
		{"escaped backtick", State{Mode: AfterBackslash, Buf: `\`}, '`', State{}, []Segment{textSegment("\\`")}},
		{"backslash released", State{Mode: AfterBackslash, Buf: `\`}, '<', State{Mode: TagOpen, Buf: "<"}, []Segment{textSegment(`\`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			to, segs := Transition(tc.from, tc.r)
			assert.Equal(t, tc.to, to)
			assert.Equal(t, tc.segs, segs)
		})
	}
}

func TestFlush(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{State{}, ""},
		{State{Mode: TagOpen, Buf: "<cite"}, "&lt;cite"},
		{State{Mode: InCiteContent, Buf: "<cite>1"}, "&lt;cite>1"},
		{State{Mode: InCiteContent, Buf: "<cite>1</cite"}, "&lt;cite>1&lt;/cite"},
		{State{Mode: PossibleFilename, Buf: "12"}, "12"},
		{State{Mode: AfterDigitPeriodSpace, Buf: "12. "}, "12. "},
		{State{Mode: InFilenameLink, Buf: "1. [a.pdf](#"}, `1. [a.pdf]\(#`},
		{State{Mode: AfterBracket, Buf: "]"}, "]"},
		{State{Mode: InLinkTarget, Buf: "](http"}, `]\(http`},
		{State{Mode: Backticks, Buf: "``"}, "``"},
		{State{Mode: InCodeSpan, Buf: "`a<b`"}, "`a<b`"},
		{State{Mode: InCodeSpan, Buf: "`a<b"}, "`a&lt;b"},
		{State{Mode: FenceInfo, Buf: "```go"}, "```go"},
		{State{Mode: InFence, fence: "```"}, ""},
		{State{Mode: FenceBackticks, Buf: "``", fence: "```"}, "``"},
		{State{Mode: AfterBackslash, Buf: `\`}, `\`},
	}
	for _, tc := range tests {
		t.Run(tc.state.Mode.String(), func(t *testing.T) {
			var out string
			for _, seg := range Flush(tc.state) {
				assert.Equal(t, SegmentText, seg.Kind)
				out += seg.Text
			}
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestParseRefs(t *testing.T) {
	valid := map[string][]Ref{
		"1":                 {{Index: 1}},
		"1,p.3":             {{Index: 1, Page: 3}},
		" 2 , p. 14 ":       {{Index: 2, Page: 14}},
		"1, 3":              {{Index: 1}, {Index: 3}},
		"1, p.2, 3, page 4": {{Index: 1, Page: 2}, {Index: 3, Page: 4}},
		"4,P3":              {{Index: 4, Page: 3}},
	}
	for in, want := range valid {
		refs, ok := parseRefs(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, refs, in)
		}
	}

	for _, in := range []string{"", "abc", "p.3", "1,p.3,p.4", "1.5", "1234567", "1,", "1,p.0"} {
		_, ok := parseRefs(in)
		assert.False(t, ok, in)
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "InCiteContent", InCiteContent.String())
	assert.Equal(t, "Mode(42)", Mode(42).String())
}
