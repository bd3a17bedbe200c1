package item

import (
	"strings"
	"unicode/utf8"

	"github.com/russross/blackfriday/v2"
)

// SummarizeBody produces a plaintext summary of a Post's Markdown body,
// suitable for use in feed previews. It strips inline/block HTML, joins
// block-level text with single spaces, appends ":" after a heading's text
// when the heading didn't already end with one, and truncates at the last
// valid UTF-8 boundary not exceeding maxLen bytes, appending "…" when
// truncated.
func SummarizeBody(markdown string, maxLen int) string {
	parser := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := parser.Parse([]byte(markdown))

	var parts []string
	for node := root.FirstChild; node != nil; node = node.Next {
		text := collapseWhitespace(blockText(node))
		if text == "" {
			continue
		}
		if node.Type == blackfriday.Heading && !strings.HasSuffix(text, ":") {
			text += ":"
		}
		parts = append(parts, text)
	}

	summary := strings.Join(parts, " ")
	truncated, didTruncate := truncateUTF8(summary, maxLen)
	if didTruncate {
		truncated = strings.TrimRight(truncated, " ") + "…"
	}
	return truncated
}

// blockText concatenates the renderable text of a block node's subtree,
// dropping raw HTML (spec §4.2: "strips HTML inline blocks").
func blockText(node *blackfriday.Node) string {
	var b strings.Builder
	node.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			return blackfriday.GoToNext
		}
		switch n.Type {
		case blackfriday.Text, blackfriday.Code:
			b.Write(n.Literal)
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			b.WriteByte(' ')
		case blackfriday.HTMLSpan, blackfriday.HTMLBlock:
			// Dropped entirely.
		}
		return blackfriday.GoToNext
	})
	return b.String()
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// truncateUTF8 truncates s to at most maxLen bytes without splitting a
// multi-byte rune, reporting whether truncation occurred.
func truncateUTF8(s string, maxLen int) (string, bool) {
	if len(s) <= maxLen {
		return s, false
	}
	idx := maxLen
	for idx > 0 && !utf8.RuneStart(s[idx]) {
		idx--
	}
	return s[:idx], true
}
