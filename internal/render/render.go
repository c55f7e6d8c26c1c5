// Package render converts an assembled study document to standalone HTML.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Options controls HTML rendering
type Options struct {
	Title string
	// DiagramLanguage is the fence tag rendered as a client-side diagram
	DiagramLanguage string
	// Images maps storage names to image bytes embedded as data URLs.
	// References to names not in the map are left as they are.
	Images map[string][]byte
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 52rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.55; }
img { max-width: 100%; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; }
pre { overflow-x: auto; }
</style>
</head>
<body>
{{.Body}}
{{- if .Diagrams}}
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true });
</script>
{{- end}}
</body>
</html>
`))

// HTML renders markdown to a complete HTML page
func HTML(markdown string, opts Options) (string, error) {
	lang := opts.DiagramLanguage
	if lang == "" {
		lang = "mermaid"
	}
	diagrams := &diagramRenderer{language: lang}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(diagrams, 100)),
		),
	)

	src := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(src))
	embedImages(doc, opts.Images)

	var body bytes.Buffer
	if err := md.Renderer().Render(&body, src, doc); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = "Study Guide"
	}
	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title    string
		Body     template.HTML
		Diagrams bool
	}{title, template.HTML(body.String()), diagrams.count > 0})
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return out.String(), nil
}

// embedImages rewrites image destinations found in images to data URLs
func embedImages(doc ast.Node, images map[string][]byte) {
	if len(images) == 0 {
		return
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		data, ok := images[string(img.Destination)]
		if !ok {
			return ast.WalkContinue, nil
		}
		img.Destination = []byte("data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data))
		return ast.WalkContinue, nil
	})
}

// diagramRenderer renders fenced code blocks. Blocks tagged with the diagram
// language become <pre class="mermaid"> for the client-side renderer.
type diagramRenderer struct {
	language string
	count    int
}

func (r *diagramRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *diagramRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	lang := string(n.Language(source))

	if lang == r.language {
		r.count++
		_, _ = w.WriteString(`<pre class="mermaid">`)
		writeLines(w, source, n)
		_, _ = w.WriteString("</pre>\n")
		return ast.WalkSkipChildren, nil
	}

	_, _ = w.WriteString("<pre><code")
	if lang != "" {
		_, _ = w.WriteString(` class="language-`)
		html.DefaultWriter.Write(w, []byte(lang))
		_, _ = w.WriteString(`"`)
	}
	_ = w.WriteByte('>')
	writeLines(w, source, n)
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

func writeLines(w util.BufWriter, source []byte, n *ast.FencedCodeBlock) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		html.DefaultWriter.RawWrite(w, line.Value(source))
	}
}
