package render

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindScrollContainer is the block that wraps every table.
var KindScrollContainer = ast.NewNodeKind("ScrollContainer")

// ScrollContainer holds a table that may be wider than the viewport.
type ScrollContainer struct {
	ast.BaseBlock
}

func (n *ScrollContainer) Kind() ast.NodeKind { return KindScrollContainer }

func (n *ScrollContainer) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// blockTransformer unwraps paragraphs that only hold a table and wraps every
// table in a ScrollContainer.
type blockTransformer struct{}

func (blockTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	var paragraphs, tables []ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph:
			paragraphs = append(paragraphs, n)
		case east.KindTable:
			tables = append(tables, n)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, p := range paragraphs {
		unwrapTableParagraph(p)
	}
	for _, t := range tables {
		if t.Parent() == nil || t.Parent().Kind() == KindScrollContainer {
			continue
		}
		parent := t.Parent()
		wrapper := &ScrollContainer{}
		parent.ReplaceChild(parent, t, wrapper)
		wrapper.AppendChild(wrapper, t)
	}
}

// unwrapTableParagraph replaces p with its child when that child is a lone
// table, so the table is not nested inside paragraph markup.
func unwrapTableParagraph(p ast.Node) {
	if p.ChildCount() != 1 || p.FirstChild().Kind() != east.KindTable || p.Parent() == nil {
		return
	}
	table := p.FirstChild()
	parent := p.Parent()
	p.RemoveChild(p, table)
	parent.ReplaceChild(parent, p, table)
}

const linkAttrs = ` target="_blank" rel="noopener noreferrer"`

// nodeRenderer overrides how code, links and scroll containers are written.
type nodeRenderer struct{}

func (r nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindScrollContainer, r.renderScrollContainer)
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
	reg.Register(ast.KindCodeBlock, r.renderIndentedCode)
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
}

func (nodeRenderer) renderScrollContainer(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(`<div class="table-scroll" data-scroll-watch="content viewport">` + "\n")
	} else {
		_, _ = w.WriteString("</div>\n")
	}
	return ast.WalkContinue, nil
}

func (nodeRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	lang := n.Language(source)
	if len(lang) == 0 {
		writeInlineCode(w, source, n.Lines())
		return ast.WalkSkipChildren, nil
	}
	escaped := util.EscapeHTML(lang)
	_, _ = w.WriteString(`<pre class="code-block"><code class="language-`)
	_, _ = w.Write(escaped)
	_, _ = w.WriteString(`" data-lang="`)
	_, _ = w.Write(escaped)
	_, _ = w.WriteString(`">`)
	writeLines(w, source, n.Lines())
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

// renderIndentedCode treats unfenced code like untagged code: inline.
func (nodeRenderer) renderIndentedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		writeInlineCode(w, source, node.Lines())
	}
	return ast.WalkSkipChildren, nil
}

func (nodeRenderer) renderCodeSpan(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<code class="inline-code">`)
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		var value []byte
		switch t := c.(type) {
		case *ast.Text:
			value = t.Segment.Value(source)
		case *ast.String:
			value = t.Value
		}
		if bytes.HasSuffix(value, []byte("\n")) {
			value = append(value[:len(value)-1:len(value)-1], ' ')
		}
		_, _ = w.Write(util.EscapeHTML(value))
	}
	_, _ = w.WriteString("</code>")
	return ast.WalkSkipChildren, nil
}

func (nodeRenderer) renderLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	openAnchor(w, n.Destination)
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	return ast.WalkContinue, nil
}

func (nodeRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.AutoLink)
	url := n.URL(source)
	if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
		url = append([]byte("mailto:"), url...)
	}
	openAnchor(w, url)
	_ = w.WriteByte('>')
	_, _ = w.Write(util.EscapeHTML(n.Label(source)))
	_, _ = w.WriteString("</a>")
	return ast.WalkSkipChildren, nil
}

// openAnchor writes an unterminated <a> tag that always opens a new browsing
// context without leaking the opener or referrer.
func openAnchor(w util.BufWriter, dest []byte) {
	_, _ = w.WriteString(`<a href="`)
	if !gmhtml.IsDangerousURL(dest) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(dest, true)))
	}
	_ = w.WriteByte('"')
	_, _ = w.WriteString(linkAttrs)
}

func writeInlineCode(w util.BufWriter, source []byte, lines *text.Segments) {
	_, _ = w.WriteString(`<code class="inline-code">`)
	writeLines(w, source, lines)
	_, _ = w.WriteString("</code>\n")
}

func writeLines(w util.BufWriter, source []byte, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
	}
}
