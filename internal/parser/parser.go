// Package parser extracts ordered page sequences from raw revision
// files. Every supported format yields a document.Revision whose pages
// carry sanitized text, a content hash, the enclosing section name and
// the form label when one is printed on the page.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/docverge/internal/document"
	"github.com/dgallion1/docverge/internal/fingerprint"
)

// Parser converts raw revision bytes into a page sequence.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Revision, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

var formLine = regexp.MustCompile(`(?m)^\s*Form:\s*(\S.*?)\s*$`)

// FormName pulls the "Form: ..." label out of page text. Pages
// without one return an empty string.
func FormName(text string) string {
	if m := formLine.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// makePage builds a finished page: sanitized body, content hash and
// form label. The section is whatever the caller resolved for it.
func makePage(index int, raw, section string) document.Page {
	text := strings.TrimSpace(fingerprint.Sanitize(raw))
	return document.Page{
		Index:   index,
		Text:    text,
		Hash:    fingerprint.Hash(text),
		Section: section,
		Form:    FormName(text),
	}
}

// carrySections fills empty sections forward: a page without its own
// section marker belongs to the section that last started.
func carrySections(pages []document.Page) {
	section := ""
	for i := range pages {
		if pages[i].Section != "" {
			section = pages[i].Section
		} else {
			pages[i].Section = section
		}
	}
}

// baseName strips the extension off a filename.
func baseName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
