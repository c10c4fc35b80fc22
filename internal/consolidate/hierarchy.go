package consolidate

import (
	"fmt"
	"sort"

	"github.com/dgallion1/docverge/internal/tracker"
)

// Node is one section in the output hierarchy: the tracker's latest
// name with one child per committed version.
type Node struct {
	Title      string        `json:"title"`
	Page       int           `json:"page"` // 1-based start of Version 1
	HasChanges bool          `json:"has_changes"`
	Versions   []VersionNode `json:"versions"`
}

// VersionNode points one version label at its page range.
type VersionNode struct {
	Title    string `json:"title"`
	Number   int    `json:"number"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	SourceID string `json:"source"`
}

// BuildHierarchy converts final tracker state into the output section
// tree, ordered by each tracker's Version 1 start page.
func BuildHierarchy(reg *tracker.Registry) []Node {
	trackers := reg.All()
	sort.SliceStable(trackers, func(i, j int) bool {
		return trackers[i].Versions[0].Start < trackers[j].Versions[0].Start
	})

	nodes := make([]Node, 0, len(trackers))
	for _, t := range trackers {
		n := Node{
			Title:      t.CurrentName,
			Page:       t.Versions[0].Start,
			HasChanges: len(t.Versions) > 1,
		}
		for _, v := range t.Versions {
			n.Versions = append(n.Versions, VersionNode{
				Title:    fmt.Sprintf("Version %d", v.Number),
				Number:   v.Number,
				Start:    v.Start,
				End:      v.End,
				SourceID: v.SourceID,
			})
		}
		nodes = append(nodes, n)
	}
	return nodes
}
