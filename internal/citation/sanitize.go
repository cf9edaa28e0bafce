package citation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy strips every tag and attribute. Policies are safe for concurrent use once built.
var strictPolicy = bluemonday.StrictPolicy()

// linkPattern admits absolute http(s) URLs whose characters cannot break out of a
// markdown link destination.
var linkPattern = regexp.MustCompile(
	`^https?://[A-Za-z0-9](?:[A-Za-z0-9.-]*[A-Za-z0-9])?(?::[0-9]{1,5})?` +
		`(?:/[A-Za-z0-9\-._~%!$&'*+,;=:@/]*)?` +
		`(?:\?[A-Za-z0-9\-._~%!$&'*+,;=:@/?]*)?` +
		`(?:#[A-Za-z0-9\-._~%!$&'*+,;=:@/?]*)?$`)

var (
	htmlEscaper     = strings.NewReplacer("<", "&lt;", ">", "&gt;")
	markdownEscaper = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`)
)

// SanitizeTitle strips markup from document-derived text and escapes the characters
// that would let it close a markdown link label.
func SanitizeTitle(s string) string {
	return markdownEscaper.Replace(strings.TrimSpace(strictPolicy.Sanitize(s)))
}

// ValidURL reports whether raw is a well-formed http(s) URL usable as a link target.
func ValidURL(raw string) bool {
	if len(raw) > maxLinkTarget || !linkPattern.MatchString(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

// safeTarget reports whether a model-written link destination may stay live: web and
// mail links, in-page anchors and relative paths.
func safeTarget(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	switch {
	case lower == "", strings.HasPrefix(lower, "#"), strings.HasPrefix(lower, "/"), strings.HasPrefix(lower, "."):
		return true
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "mailto:"):
		return true
	}
	colon := strings.IndexByte(lower, ':')
	slash := strings.IndexAny(lower, "/?#")
	return colon < 0 || (slash >= 0 && slash < colon)
}

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func escapeRune(r rune) string {
	switch r {
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	}
	return string(r)
}
