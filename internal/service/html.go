package service

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// OutputBoxOpen and OutputBoxClose wrap rendered guidance in a fixed-height
// scrollable container.
const (
	OutputBoxOpen  = "<div id='rag_output_box' style='max-height: 600px; overflow-y: scroll; border: 1px solid #ccc; padding: 10px;'>"
	OutputBoxClose = "</div>"
)

// Raw HTML in model output is escaped, goldmark's default.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderGuidanceHTML renders markdown guidance and wraps it in the output box.
func RenderGuidanceHTML(guidance string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(OutputBoxOpen)
	if err := markdown.Convert([]byte(guidance), &buf); err != nil {
		return "", fmt.Errorf("failed to render guidance: %w", err)
	}
	buf.WriteString(OutputBoxClose)
	return buf.String(), nil
}

// wrapPlainText escapes text and places it in the output box.
func wrapPlainText(text string) string {
	return OutputBoxOpen + "<p>" + html.EscapeString(text) + "</p>" + OutputBoxClose
}
