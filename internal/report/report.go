// Package report renders the consolidation outcome as a markdown
// document, with an HTML rendering for the API.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/docverge/internal/consolidate"
)

// Build renders the run report as markdown: per-pair match figures,
// the section version summary and whole-run totals.
func Build(nodes []consolidate.Node, stats consolidate.Stats) string {
	var b strings.Builder

	b.WriteString("# Consolidation Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("## Revision Pairs\n\n")
	if len(stats.Pairs) == 0 {
		b.WriteString("No pairs processed.\n\n")
	}
	for _, p := range stats.Pairs {
		fmt.Fprintf(&b, "### %s → %s\n\n", p.OlderID, p.NewerID)
		fmt.Fprintf(&b, "- Identical matches: %d\n", p.Identical)
		fmt.Fprintf(&b, "- Heuristic matches: %d\n", p.Heuristic)
		fmt.Fprintf(&b, "- Global matches: %d\n", p.Global)
		fmt.Fprintf(&b, "- Added pages: %d\n", p.Added)
		fmt.Fprintf(&b, "- Removed pages: %d\n", p.Removed)
		fmt.Fprintf(&b, "- Versions created: %d\n", p.VersionsCreated)
		fmt.Fprintf(&b, "- Duplicates skipped: %d\n", p.DuplicatesSkipped)
		if p.LowConfidence > 0 {
			fmt.Fprintf(&b, "- Low-confidence matches: %d\n", p.LowConfidence)
		}
		fmt.Fprintf(&b, "- Duration: %s\n\n", p.Duration.Round(time.Millisecond))
	}

	b.WriteString("## Section Versions\n\n")
	for _, n := range nodes {
		marker := ""
		if n.HasChanges {
			marker = " (changed)"
		}
		fmt.Fprintf(&b, "### %s%s\n\n", n.Title, marker)
		for _, v := range n.Versions {
			fmt.Fprintf(&b, "- %s: pages %d-%d, from %s\n", v.Title, v.Start, v.End, v.SourceID)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Master pages: %d\n", stats.TotalPages)
	fmt.Fprintf(&b, "- Tracked sections: %d\n", stats.TotalTrackers)
	fmt.Fprintf(&b, "- Versions created: %d\n", stats.VersionsCreated)
	fmt.Fprintf(&b, "- Sections added: %d\n", stats.SectionsAdded)
	fmt.Fprintf(&b, "- Pages removed from master lineage: %d\n", stats.PagesRemoved)
	fmt.Fprintf(&b, "- Duplicates skipped: %d\n", stats.DuplicatesSkipped)
	fmt.Fprintf(&b, "- Low-confidence matches: %d\n", stats.LowConfidenceMatches)

	return b.String()
}

// HTML converts the markdown report to HTML.
func HTML(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
