// Package render turns normalized assistant content into sanitized HTML.
package render

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
	"github.com/MikeSquared-Agency/chatline/internal/normalize"
)

type BlockKind string

const (
	BlockParagraph  BlockKind = "paragraph"
	BlockCode       BlockKind = "code_block"
	BlockInlineCode BlockKind = "inline_code"
	BlockTable      BlockKind = "table"
	BlockImage      BlockKind = "image"
)

// Block is one classified element of a message, in document order.
type Block struct {
	Kind     BlockKind `json:"kind"`
	Language string    `json:"language,omitempty"`
}

// Renderer converts model output to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	logger *slog.Logger
}

func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(blockTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(nodeRenderer{}, 100)),
		),
	)
	return &Renderer{md: md, policy: newPolicy(), logger: logger}
}

var (
	classNames = regexp.MustCompile(`^[a-zA-Z0-9 _+#-]+$`)
	langTag    = regexp.MustCompile(`^[a-zA-Z0-9_+#-]+$`)
	relTokens  = regexp.MustCompile(`^[a-z ]+$`)
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("div", "figure", "figcaption", "pre", "code")
	p.AllowAttrs("class").Matching(classNames).Globally()
	p.AllowAttrs("data-lang").Matching(langTag).OnElements("code")
	p.AllowAttrs("data-scroll-watch").Matching(relTokens).OnElements("div")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(relTokens).OnElements("a")
	p.AllowAttrs("data-modal").Matching(relTokens).OnElements("img")
	p.AllowDataURIImages()
	return p
}

// Render normalizes content and returns sanitized HTML. It never fails: if
// the markdown pipeline breaks, the escaped text is returned instead.
func (r *Renderer) Render(content string) string {
	return r.policy.Sanitize(r.safeConvert(normalize.Normalize(content)))
}

// RenderMessage renders a message for display. Image-generation messages
// render as a figure whose caption goes through the text pipeline; nothing
// else about them is rendered as text.
func (r *Renderer) RenderMessage(m chat.Message) string {
	if m.IsImageGeneration && m.ImageURL != "" {
		return r.renderImage(m)
	}
	return r.Render(m.Content)
}

func (r *Renderer) renderImage(m chat.Message) string {
	src := html.EscapeString(m.ImageURL)
	var b strings.Builder
	b.WriteString(`<figure class="generated-image">`)
	fmt.Fprintf(&b, `<img src="%s" alt="%s" data-modal="full size" class="generated-image-thumb"/>`,
		src, html.EscapeString(altText(m.Content)))
	if strings.TrimSpace(m.Content) != "" {
		b.WriteString(`<figcaption>`)
		b.WriteString(r.safeConvert(normalize.Normalize(m.Content)))
		b.WriteString(`</figcaption>`)
	}
	b.WriteString(`</figure>`)
	return r.policy.Sanitize(b.String())
}

func altText(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Generated image"
	}
	if i := strings.IndexByte(prompt, '\n'); i >= 0 {
		prompt = prompt[:i]
	}
	return prompt
}

func (r *Renderer) safeConvert(content string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("markdown render panicked, falling back to text", "panic", rec)
			out = "<p>" + html.EscapeString(content) + "</p>"
		}
	}()

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		r.logger.Warn("markdown render failed, falling back to text", "error", err)
		return "<p>" + html.EscapeString(content) + "</p>"
	}
	return buf.String()
}

// Classify normalizes content and lists its renderable blocks.
func (r *Renderer) Classify(content string) []Block {
	source := []byte(normalize.Normalize(content))
	doc := r.md.Parser().Parse(text.NewReader(source))

	var blocks []Block
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph:
			blocks = append(blocks, Block{Kind: BlockParagraph})
		case ast.KindFencedCodeBlock:
			if lang := n.(*ast.FencedCodeBlock).Language(source); len(lang) > 0 {
				blocks = append(blocks, Block{Kind: BlockCode, Language: string(lang)})
			} else {
				blocks = append(blocks, Block{Kind: BlockInlineCode})
			}
			return ast.WalkSkipChildren, nil
		case ast.KindCodeBlock, ast.KindCodeSpan:
			blocks = append(blocks, Block{Kind: BlockInlineCode})
			return ast.WalkSkipChildren, nil
		case east.KindTable:
			blocks = append(blocks, Block{Kind: BlockTable})
			return ast.WalkSkipChildren, nil
		case ast.KindImage:
			blocks = append(blocks, Block{Kind: BlockImage})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}
