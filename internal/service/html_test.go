package service

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}

func TestRenderGuidanceHTML(t *testing.T) {
	out, err := RenderGuidanceHTML("## Assembly\n\n1. Insert **C11** into A11 (page 3)\n2. Attach B1-18 (page 7)\n")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, OutputBoxOpen))
	assert.True(t, strings.HasSuffix(out, OutputBoxClose))

	doc := parseHTML(t, out)
	box := doc.Find("div#rag_output_box")
	require.Equal(t, 1, box.Length())
	style, _ := box.Attr("style")
	assert.Contains(t, style, "max-height: 600px")
	assert.Contains(t, style, "overflow-y: scroll")
	assert.Equal(t, "Assembly", box.Find("h2").Text())
	assert.Equal(t, 2, box.Find("ol > li").Length())
	assert.Equal(t, "C11", box.Find("strong").Text())
}

func TestRenderGuidanceHTML_EscapesRawHTML(t *testing.T) {
	out, err := RenderGuidanceHTML("<script>alert(1)</script>\n\nText")
	require.NoError(t, err)

	doc := parseHTML(t, out)
	assert.Equal(t, 0, doc.Find("#rag_output_box script").Length())
	assert.Contains(t, doc.Find("#rag_output_box").Text(), "Text")
}

func TestWrapPlainText(t *testing.T) {
	doc := parseHTML(t, wrapPlainText("a < b"))

	assert.Equal(t, "a < b", doc.Find("#rag_output_box p").Text())
}
