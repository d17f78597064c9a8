package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

func TestRender_FencedCodeKeepsLanguage(t *testing.T) {
	out := New(nil).Render("Here:\n```go\nfmt.Println(\"<hi>\")\n```")

	if !strings.Contains(out, `<pre class="code-block"><code class="language-go" data-lang="go">`) {
		t.Errorf("expected block code with language tag, got %s", out)
	}
	if !strings.Contains(out, "&lt;hi&gt;") {
		t.Errorf("expected code to be escaped, got %s", out)
	}
}

func TestRender_UntaggedCodeIsInline(t *testing.T) {
	out := New(nil).Render("use `go test` or\n```\nmake\n```")

	if strings.Contains(out, "<pre") {
		t.Errorf("expected no block code without a language, got %s", out)
	}
	if strings.Count(out, `<code class="inline-code">`) != 2 {
		t.Errorf("expected two inline code spans, got %s", out)
	}
}

func TestRender_TableWrappedInScrollContainer(t *testing.T) {
	out := New(nil).Render("# Title\n\n|a|b|\n|-|-|\n|1|2|\n\nsome text")

	wrapper := strings.Index(out, `<div class="table-scroll"`)
	table := strings.Index(out, "<table>")
	if wrapper < 0 || table < 0 || wrapper > table {
		t.Fatalf("expected table inside scroll container, got %s", out)
	}
	if strings.Contains(out, "<p><table") || strings.Contains(out, "<p><div") {
		t.Errorf("table must not be nested in a paragraph, got %s", out)
	}
	if !strings.Contains(out, "<p>some text</p>") {
		t.Errorf("expected trailing paragraph, got %s", out)
	}
}

func TestRender_LinksOpenInNewContext(t *testing.T) {
	out := New(nil).Render("see [docs](https://example.com/docs) and https://example.org")

	if strings.Count(out, `target="_blank"`) != 2 {
		t.Errorf("expected both links to open a new context, got %s", out)
	}
	if strings.Count(out, "noopener") < 2 || strings.Count(out, "noreferrer") < 2 {
		t.Errorf("expected noopener and noreferrer on both links, got %s", out)
	}
}

func TestRender_StripsScriptsAndDangerousLinks(t *testing.T) {
	out := New(nil).Render("<script>alert(1)</script>[x](javascript:alert(1))")

	if strings.Contains(out, "<script") || strings.Contains(out, "javascript:") {
		t.Errorf("expected unsafe content removed, got %s", out)
	}
}

func TestRenderMessage_ImageGeneration(t *testing.T) {
	r := New(nil)
	msg := chat.Message{
		Role:              chat.RoleAssistant,
		Content:           "A **red** fox",
		IsImageGeneration: true,
		ImageURL:          "https://cdn.example.com/fox.png",
	}

	out := r.RenderMessage(msg)
	if !strings.Contains(out, `<figure class="generated-image">`) {
		t.Fatalf("expected figure, got %s", out)
	}
	if !strings.Contains(out, `src="https://cdn.example.com/fox.png"`) || !strings.Contains(out, `data-modal="full size"`) {
		t.Errorf("expected modal-enabled image, got %s", out)
	}
	if !strings.Contains(out, "<figcaption><p>A <strong>red</strong> fox</p>") {
		t.Errorf("expected caption rendered through markdown pipeline, got %s", out)
	}
}

func TestRenderMessage_TextPath(t *testing.T) {
	r := New(nil)
	out := r.RenderMessage(chat.Message{Role: chat.RoleAssistant, Content: "plain"})
	if out != "<p>plain</p>\n" {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "<figure") {
		t.Error("text messages must not use the image path")
	}
}

func TestClassify(t *testing.T) {
	content := "Intro with `x`\n```python\nprint(1)\n```\n|a|\n|-|\n|1|\n\n![chart](https://example.com/c.png)"

	got := New(nil).Classify(content)
	want := []Block{
		{Kind: BlockParagraph},
		{Kind: BlockInlineCode},
		{Kind: BlockCode, Language: "python"},
		{Kind: BlockTable},
		{Kind: BlockParagraph},
		{Kind: BlockImage},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected blocks (-want +got):\n%s", diff)
	}
}

func TestUnwrapTableParagraph(t *testing.T) {
	doc := ast.NewDocument()
	para := ast.NewParagraph()
	table := east.NewTable()
	para.AppendChild(para, table)
	doc.AppendChild(doc, para)

	unwrapTableParagraph(para)

	if doc.FirstChild() != table {
		t.Errorf("expected table to replace paragraph, got %s", doc.FirstChild().Kind())
	}
	if doc.ChildCount() != 1 {
		t.Errorf("expected a single child, got %d", doc.ChildCount())
	}
}

func TestUnwrapTableParagraph_LeavesMixedContent(t *testing.T) {
	doc := ast.NewDocument()
	para := ast.NewParagraph()
	para.AppendChild(para, east.NewTable())
	para.AppendChild(para, ast.NewString([]byte("tail")))
	doc.AppendChild(doc, para)

	unwrapTableParagraph(para)

	if doc.FirstChild() != para {
		t.Error("expected paragraph with extra content to stay")
	}
}

func TestRender_EmptyContent(t *testing.T) {
	r := New(nil)
	if out := r.Render(""); out != "" {
		t.Errorf("expected empty output for empty content, got %q", out)
	}
}
