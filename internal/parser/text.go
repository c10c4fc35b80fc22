package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docverge/internal/document"
)

// TextParser handles plain text files. Pages are separated by form
// feeds; a file without form feeds becomes one page per paragraph so
// small fixtures still produce a usable sequence.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Revision, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var raw strings.Builder
	for scanner.Scan() {
		raw.WriteString(scanner.Text())
		raw.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	text := raw.String()
	var blocks []string
	if strings.Contains(text, "\f") {
		blocks = strings.Split(text, "\f")
	} else {
		blocks = splitParagraphs(text)
	}

	rev := &document.Revision{
		ID:       baseName(filename),
		Filename: filename,
	}
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		page := makePage(len(rev.Pages), block, "")
		// The form label doubles as the section marker in flat text.
		page.Section = page.Form
		rev.Pages = append(rev.Pages, page)
	}
	carrySections(rev.Pages)
	return rev, nil
}

// splitParagraphs breaks text on blank lines, treating whitespace-only
// lines as blank.
func splitParagraphs(text string) []string {
	var out []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
