package assistant

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Formatter turns a reply into the markup that is revealed.
type Formatter func(content string) (string, error)

// Raw HTML in replies is kept; anchors are hardened by Sanitize on every tick.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// Markdown renders a markdown reply to HTML.
func Markdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("assistant: render markdown: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
