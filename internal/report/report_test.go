package report

import (
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docverge/internal/consolidate"
)

func sampleInput() ([]consolidate.Node, consolidate.Stats) {
	nodes := []consolidate.Node{
		{
			Title:      "Urine Test - Hidden",
			Page:       2,
			HasChanges: true,
			Versions: []consolidate.VersionNode{
				{Title: "Version 1", Number: 1, Start: 2, End: 4, SourceID: "rev-1"},
				{Title: "Version 2", Number: 2, Start: 5, End: 7, SourceID: "rev-2"},
			},
		},
		{
			Title:    "Vitals",
			Page:     8,
			Versions: []consolidate.VersionNode{{Title: "Version 1", Number: 1, Start: 8, End: 8, SourceID: "rev-1"}},
		},
	}
	stats := consolidate.Stats{
		TotalPages:      8,
		TotalTrackers:   2,
		VersionsCreated: 1,
		Pairs: []consolidate.PairStats{{
			OlderID:         "rev-1",
			NewerID:         "rev-2",
			Identical:       3,
			Heuristic:       1,
			VersionsCreated: 1,
			Duration:        1500 * time.Millisecond,
		}},
	}
	return nodes, stats
}

func TestBuild_ContainsSectionsAndStats(t *testing.T) {
	nodes, stats := sampleInput()
	md := Build(nodes, stats)

	for _, want := range []string{
		"# Consolidation Report",
		"### rev-1 → rev-2",
		"- Identical matches: 3",
		"### Urine Test - Hidden (changed)",
		"- Version 2: pages 5-7, from rev-2",
		"### Vitals\n",
		"- Master pages: 8",
		"- Tracked sections: 2",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(md, "Low-confidence matches: 0\n- Duration") {
		t.Error("zero low-confidence line should be omitted from pair details")
	}
}

func TestBuild_NoPairs(t *testing.T) {
	md := Build(nil, consolidate.Stats{})
	if !strings.Contains(md, "No pairs processed.") {
		t.Error("expected empty-pairs marker")
	}
}

func TestHTML_RendersMarkdown(t *testing.T) {
	nodes, stats := sampleInput()
	out, err := HTML(Build(nodes, stats))
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	html := string(out)
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "Consolidation Report") {
		t.Errorf("unexpected html output: %.200s", html)
	}
	if !strings.Contains(html, "<li>") {
		t.Error("expected list items in html")
	}
}
