package consolidate

import "time"

// PairStats summarizes the consolidation of one revision pair.
type PairStats struct {
	OlderID string `json:"older"`
	NewerID string `json:"newer"`

	Identical int `json:"identical_matches"`
	Heuristic int `json:"heuristic_matches"`
	Global    int `json:"global_matches"`
	Added     int `json:"added_pages"`
	Removed   int `json:"removed_pages"`

	VersionsCreated   int `json:"versions_created"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	LowConfidence     int `json:"low_confidence_matches"`

	Duration time.Duration `json:"duration_ns"`
}

// Stats is the whole-run statistics record.
type Stats struct {
	TotalPages    int `json:"total_pages"`
	TotalTrackers int `json:"total_trackers"`

	VersionsCreated      int `json:"versions_created"`
	DuplicatesSkipped    int `json:"duplicates_skipped"`
	SectionsAdded        int `json:"sections_added"`
	PagesRemoved         int `json:"pages_removed"`
	LowConfidenceMatches int `json:"low_confidence_matches"`

	Pairs []PairStats `json:"pairs"`
}

// Stats returns a snapshot of the run statistics with the totals
// filled in from current master/registry state.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.TotalPages = e.master.Len()
	s.TotalTrackers = e.reg.Len()
	s.Pairs = make([]PairStats, len(e.stats.Pairs))
	copy(s.Pairs, e.stats.Pairs)
	return s
}
