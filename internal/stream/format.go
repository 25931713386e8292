package stream

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Render is the one-time formatting transform applied when a stream
// completes. It is pure: same input, same output, no state. It must only
// run once per message; intermediate renders during streaming show raw
// text instead, because re-running a markup transform over its own output
// would corrupt it.
//
// Rules: blank lines split paragraphs, single line breaks become <br>,
// **text** becomes <strong>, `text` becomes <code>, and "- " / "1. "
// prefixed blocks become lists. The result passes through a bluemonday
// policy that admits only those elements.
func Render(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var out strings.Builder
	for _, block := range paragraphSplit.Split(raw, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out.WriteString(renderBlock(block))
	}
	return renderPolicy.Sanitize(out.String())
}

var (
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
	bulletLine     = regexp.MustCompile(`^[-*]\s+`)
	numberedLine   = regexp.MustCompile(`^\d+\.\s+`)
	boldSpan       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	codeSpan       = regexp.MustCompile("`([^`]+)`")

	renderPolicy = bluemonday.NewPolicy().
			AllowElements("p", "br", "strong", "code", "ul", "ol", "li")
)

func renderBlock(block string) string {
	lines := strings.Split(block, "\n")

	if allMatch(lines, bulletLine) {
		return renderList(lines, bulletLine, "ul")
	}
	if allMatch(lines, numberedLine) {
		return renderList(lines, numberedLine, "ol")
	}

	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = renderInline(line)
	}
	return "<p>" + strings.Join(rendered, "<br>") + "</p>"
}

func renderList(lines []string, marker *regexp.Regexp, tag string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s>", tag)
	for _, line := range lines {
		item := marker.ReplaceAllString(strings.TrimSpace(line), "")
		b.WriteString("<li>" + renderInline(item) + "</li>")
	}
	fmt.Fprintf(&b, "</%s>", tag)
	return b.String()
}

func renderInline(s string) string {
	s = html.EscapeString(s)
	s = codeSpan.ReplaceAllString(s, "<code>$1</code>")
	s = boldSpan.ReplaceAllString(s, "<strong>$1</strong>")
	return s
}

func allMatch(lines []string, re *regexp.Regexp) bool {
	for _, line := range lines {
		if !re.MatchString(strings.TrimSpace(line)) {
			return false
		}
	}
	return true
}
