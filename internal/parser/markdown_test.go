package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingsBecomePages(t *testing.T) {
	input := `# Demographics

Date of birth and sex.

## Vital Signs

Height, weight, blood pressure.

### Notes

Measured sitting.

## Adverse Events

Event log.
`
	p := &MarkdownParser{}
	rev, err := p.Parse(strings.NewReader(input), "crf-1-0-0.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rev.ID != "crf-1-0-0" {
		t.Errorf("expected ID %q, got %q", "crf-1-0-0", rev.ID)
	}
	if len(rev.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(rev.Pages))
	}

	wantSections := []string{"Demographics", "Vital Signs", "Adverse Events"}
	for i, w := range wantSections {
		if rev.Pages[i].Section != w {
			t.Errorf("page %d: expected section %q, got %q", i, w, rev.Pages[i].Section)
		}
	}

	// The h3 folds into the Vital Signs page.
	vitals := rev.Pages[1].Text
	if !strings.Contains(vitals, "Notes") || !strings.Contains(vitals, "Measured sitting.") {
		t.Errorf("expected h3 content folded into page, got %q", vitals)
	}
}

func TestMarkdownParser_PreambleBeforeFirstHeading(t *testing.T) {
	input := "Cover text.\n\n# Section One\n\nBody.\n"
	p := &MarkdownParser{}
	rev, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rev.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(rev.Pages))
	}
	if rev.Pages[0].Section != "" {
		t.Errorf("expected empty section on preamble page, got %q", rev.Pages[0].Section)
	}
	if rev.Pages[1].Section != "Section One" {
		t.Errorf("expected section %q, got %q", "Section One", rev.Pages[1].Section)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	rev, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rev.Pages) != 1 {
		t.Fatalf("expected 1 page for headingless markdown, got %d", len(rev.Pages))
	}
	text := rev.Pages[0].Text
	if !strings.Contains(text, "Just some plain text.") || !strings.Contains(text, "Another paragraph here.") {
		t.Errorf("expected both paragraphs, got %q", text)
	}
}

func TestMarkdownParser_CodeBlocksKept(t *testing.T) {
	input := "# Endpoints\n\nList of endpoints:\n\n```\nGET /api/runs\nPOST /api/runs\n```\n\nMore text after code.\n"
	p := &MarkdownParser{}
	rev, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rev.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(rev.Pages))
	}
	text := rev.Pages[0].Text
	if !strings.Contains(text, "GET /api/runs") {
		t.Errorf("expected code block content, got %q", text)
	}
	if !strings.Contains(text, "More text after code.") {
		t.Errorf("expected post-code text, got %q", text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	rev, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rev.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(rev.Pages))
	}
}
