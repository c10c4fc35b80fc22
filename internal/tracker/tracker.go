// Package tracker maintains persistent section identities across
// revisions, with fuzzy name resolution and per-section version
// history.
package tracker

import (
	"strings"
	"unicode"
)

// VersionRecord is one committed content state of a tracker.
// Immutable once created, except for the range shift applied when
// earlier pages are inserted ahead of it.
type VersionRecord struct {
	Number      int    // 1-based, increasing per tracker
	Start, End  int    // inclusive 1-based page range in the master document
	SourceID    string // revision the content came from
	SourcePages []int  // 1-based page numbers in the source revision
	ContentHash string
}

// Tracker is the persistent identity of a section across revisions.
// Created once, never destroyed during a run.
type Tracker struct {
	Key          string // normalized lookup key
	CurrentName  string // latest name seen
	OriginalName string // name in the revision that introduced the section
	NameHistory  []string // distinct names, in order of first appearance
	Versions     []VersionRecord

	seq int // creation order, used for tie-breaking
}

// UpdateName records a newly observed name. The latest name wins;
// distinct names accumulate in the history in first-appearance order.
func (t *Tracker) UpdateName(name string) {
	if name == t.CurrentName {
		return
	}
	t.CurrentName = name
	for _, h := range t.NameHistory {
		if h == name {
			return
		}
	}
	t.NameHistory = append(t.NameHistory, name)
}

// AddVersion appends a committed version record.
func (t *Tracker) AddVersion(v VersionRecord) {
	t.Versions = append(t.Versions, v)
}

// Latest returns the most recent version record.
func (t *Tracker) Latest() *VersionRecord {
	if len(t.Versions) == 0 {
		return nil
	}
	return &t.Versions[len(t.Versions)-1]
}

// NextVersionNumber returns the number the next version would get.
func (t *Tracker) NextVersionNumber() int {
	return len(t.Versions) + 1
}

// HasContentHash reports whether any existing version already holds
// this content.
func (t *Tracker) HasContentHash(hash string) bool {
	for _, v := range t.Versions {
		if v.ContentHash == hash {
			return true
		}
	}
	return false
}

// NormalizeName folds a section name for comparison: lowercase,
// punctuation stripped, whitespace collapsed.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
