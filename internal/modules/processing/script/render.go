package script

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// RenderHTML converts a Markdown script into an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	text := strings.TrimSpace(markdown)
	if text == "" {
		return "", nil
	}
	var out bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

const pageStyle = `body{max-width:760px;margin:2em auto;padding:0 1em;font-family:-apple-system,"Segoe UI",Helvetica,Arial,sans-serif;line-height:1.6;color:#24292f}
hr{border:0;border-top:1px solid #d0d7de;margin:1.5em 0}
em{color:#57606a}`

// RenderDocument wraps RenderHTML output in a standalone page.
func RenderDocument(title, markdown string) (string, error) {
	body, err := RenderHTML(markdown)
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	var b strings.Builder
	b.Grow(len(body) + 512)
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n  <head>\n")
	b.WriteString("    <meta charset=\"UTF-8\" />\n")
	b.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\" />\n")
	b.WriteString("    <title>")
	b.WriteString(template.HTMLEscapeString(title))
	b.WriteString("</title>\n    <style>\n")
	b.WriteString(pageStyle)
	b.WriteString("\n    </style>\n  </head>\n  <body>\n")
	b.WriteString(body)
	b.WriteString("  </body>\n</html>")
	return b.String(), nil
}
