package item

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarizeBodyJoinsBlocksAndMarksHeadings(t *testing.T) {
	md := "# Title\n\nSome body text here."
	summary := SummarizeBody(md, 200)
	require.Equal(t, "Title: Some body text here.", summary)
}

func TestSummarizeBodyStripsHTML(t *testing.T) {
	md := "Hello <b>world</b>, and <script>alert(1)</script> after."
	summary := SummarizeBody(md, 200)
	require.NotContains(t, summary, "<b>")
	require.NotContains(t, summary, "<script>")
	require.Contains(t, summary, "Hello")
	require.Contains(t, summary, "world")
}

func TestSummarizeBodyTruncatesAtByteBoundary(t *testing.T) {
	md := strings.Repeat("a", 50)
	summary := SummarizeBody(md, 10)
	require.LessOrEqual(t, len(summary), 13) // 10 bytes + len("…")
	require.True(t, strings.HasSuffix(summary, "…"))
}

func TestSummarizeBodyNoTruncationNoEllipsis(t *testing.T) {
	summary := SummarizeBody("short", 200)
	require.Equal(t, "short", summary)
}
