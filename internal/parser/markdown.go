package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docverge/internal/document"
)

// MarkdownParser handles Markdown files using goldmark. Level 1 and 2
// headings start a new page and name its section; deeper headings stay
// inside the current page as text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Revision, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	rev := &document.Revision{
		ID:       baseName(filename),
		Filename: filename,
	}

	var (
		section string
		body    bytes.Buffer
	)
	flush := func() {
		t := strings.TrimSpace(body.String())
		if t != "" || section != "" {
			rev.Pages = append(rev.Pages, makePage(len(rev.Pages), t, section))
		}
		body.Reset()
	}
	appendText := func(t string) {
		if t == "" {
			return
		}
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(t)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 {
			flush()
			section = string(h.Text(src))
			continue
		}
		if h, ok := n.(*ast.Heading); ok {
			appendText(string(h.Text(src)))
			continue
		}
		appendText(extractText(n, src))
	}
	flush()

	return rev, nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	// Also handle inline children.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			// Recurse for nested inlines.
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
