package normalise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown_StripsHeadings(t *testing.T) {
	out := Markdown("# Hello World\n\nThis is a test.")
	assert.Equal(t, "Hello World\n\nThis is a test.", out)
}

func TestMarkdown_StripsCodeBlocks(t *testing.T) {
	out := Markdown("Before.\n\n```go\nfunc main() {}\n```\n\nAfter.")
	assert.NotContains(t, out, "func main")
	assert.Contains(t, out, "Before.")
	assert.Contains(t, out, "After.")
}

func TestMarkdown_ConvertsLinks(t *testing.T) {
	out := Markdown("See [the docs](https://example.com) for details.")
	assert.Equal(t, "See the docs for details.", out)
}

func TestMarkdown_RemovesImages(t *testing.T) {
	out := Markdown("Text ![diagram](img.png) more text.")
	assert.NotContains(t, out, "img.png")
	assert.NotContains(t, out, "diagram")
}

func TestMarkdown_StripsEmphasis(t *testing.T) {
	out := Markdown("Raju works at **DRC** and *likes* painting.")
	assert.Equal(t, "Raju works at DRC and likes painting.", out)
}

func TestMarkdown_StripsListMarkers(t *testing.T) {
	out := Markdown("- first point\n- second point\n1. numbered")
	assert.Equal(t, "first point\nsecond point\nnumbered", out)
}

func TestPlaintext_CollapsesBlankLines(t *testing.T) {
	out := Plaintext("one.\n\n\n\n\ntwo.")
	assert.Equal(t, "one.\n\ntwo.", out)
}

func TestFile_SelectsByExtension(t *testing.T) {
	md := File("notes.md", "# Title\n\nBody.")
	assert.Equal(t, "Title\n\nBody.", md)

	txt := File("notes.txt", "# not a heading in plain text")
	assert.Equal(t, "# not a heading in plain text", txt)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "meeting notes", Title("/tmp/meeting_notes.md"))
	assert.Equal(t, "project plan", Title("project-plan.txt"))
}
