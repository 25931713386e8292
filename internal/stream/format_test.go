package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text",
			in:   "Hi there!",
			want: "<p>Hi there!</p>",
		},
		{
			name: "blank line splits paragraphs",
			in:   "first\n\nsecond",
			want: "<p>first</p><p>second</p>",
		},
		{
			name: "single line break preserved",
			in:   "line one\nline two",
			want: "<p>line one<br>line two</p>",
		},
		{
			name: "bold span",
			in:   "a **strong** word",
			want: "<p>a <strong>strong</strong> word</p>",
		},
		{
			name: "code span",
			in:   "run `go test` now",
			want: "<p>run <code>go test</code> now</p>",
		},
		{
			name: "bullet list",
			in:   "- one\n- two",
			want: "<ul><li>one</li><li>two</li></ul>",
		},
		{
			name: "numbered list",
			in:   "1. first\n2. second",
			want: "<ol><li>first</li><li>second</li></ol>",
		},
		{
			name: "list with inline markup",
			in:   "- use **STAR** format\n- keep answers short",
			want: "<ul><li>use <strong>STAR</strong> format</li><li>keep answers short</li></ul>",
		},
		{
			name: "mixed paragraph then list",
			in:   "Tips:\n\n- breathe\n- smile",
			want: "<p>Tips:</p><ul><li>breathe</li><li>smile</li></ul>",
		},
		{
			name: "raw html is neutralized",
			in:   "<script>alert(1)</script>",
			want: "<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>",
		},
		{
			name: "windows line endings normalized",
			in:   "a\r\n\r\nb",
			want: "<p>a</p><p>b</p>",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   "  \n \n ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.in))
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	in := "intro\n\n- **bold** item\n- `code` item"
	assert.Equal(t, Render(in), Render(in))
}
