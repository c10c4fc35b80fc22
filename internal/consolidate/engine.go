// Package consolidate grows the running master document from a
// sequence of pairwise match results, maintaining per-section version
// history and deduplicating by content hash.
package consolidate

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docverge/internal/document"
	"github.com/dgallion1/docverge/internal/fingerprint"
	"github.com/dgallion1/docverge/internal/match"
	"github.com/dgallion1/docverge/internal/tracker"
)

// Engine applies match results to the master document and tracker
// registry. It is the single writer of both; callers must serialize
// ApplyPair invocations.
type Engine struct {
	reg     *tracker.Registry
	master  *document.Master
	log     *slog.Logger
	lowBand float64 // accepted scores below this are flagged for review

	stats Stats
}

// NewEngine builds a consolidation engine around a registry. lowBand
// is the low-confidence threshold for accepted match scores.
func NewEngine(reg *tracker.Registry, lowBand float64, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		reg:     reg,
		master:  document.NewMaster(),
		log:     log,
		lowBand: lowBand,
	}
}

// Master exposes the running consolidated document.
func (e *Engine) Master() *document.Master { return e.master }

// Registry exposes the tracker registry.
func (e *Engine) Registry() *tracker.Registry { return e.reg }

// InitializeBase copies every page of the base revision into the
// master document and creates one tracker per section with Version 1.
func (e *Engine) InitializeBase(base *document.Revision) error {
	if e.master.Len() != 0 {
		return fmt.Errorf("consolidate: master already initialized")
	}

	for _, name := range base.Sections() {
		if err := checkContiguous(base, name); err != nil {
			return err
		}
	}

	for i, p := range base.Pages {
		e.master.Append(document.MasterPage{
			Text:       p.Text,
			Hash:       p.Hash,
			TrackerKey: tracker.NormalizeName(p.Section),
			Version:    1,
			SourceID:   base.ID,
			SourcePage: i + 1,
			Section:    p.Section,
		})
	}

	for _, name := range base.Sections() {
		idx := base.SectionPages(name)
		t := e.reg.Create(name)
		t.AddVersion(tracker.VersionRecord{
			Number:      1,
			Start:       idx[0] + 1,
			End:         idx[len(idx)-1] + 1,
			SourceID:    base.ID,
			SourcePages: oneBased(idx),
			ContentHash: sectionHash(base, idx),
		})
	}

	e.log.Info("base revision initialized",
		"revision", base.ID, "pages", base.NumPages(), "sections", e.reg.Len())
	return nil
}

// ApplyPair consolidates one match result: modified sections get a
// new version inserted after their latest one, newer-only sections
// become new trackers, removed pages are retained. The master is not
// touched if the result fails structural validation.
func (e *Engine) ApplyPair(res *match.Result, older, newer *document.Revision) (PairStats, error) {
	ps := PairStats{OlderID: older.ID, NewerID: newer.ID}
	start := time.Now()

	if err := res.Validate(); err != nil {
		return ps, err
	}
	for _, name := range newer.Sections() {
		if err := checkContiguous(newer, name); err != nil {
			return ps, err
		}
	}

	e.tallyPasses(res, &ps)

	// Modified sections, in order of first changed page in the newer
	// revision.
	modified := modifiedSections(res, older, newer)
	for _, name := range modified {
		if err := e.applyModified(name, newer, &ps); err != nil {
			return ps, err
		}
	}

	// Newer-only sections.
	if err := e.applyAdded(res, newer, &ps); err != nil {
		return ps, err
	}

	// Older-only pages: retained, never purged.
	if len(res.Removed) > 0 {
		ps.Removed = len(res.Removed)
		e.stats.PagesRemoved += len(res.Removed)
		for name, pages := range removedBySection(res, older) {
			e.log.Info("section content removed in newer revision, history retained",
				"section", name, "revision", newer.ID, "pages", pages)
		}
	}

	ps.Duration = time.Since(start)
	e.stats.Pairs = append(e.stats.Pairs, ps)
	return ps, nil
}

// applyModified commits a new version for one section of the newer
// revision, unless the content duplicates an existing version.
func (e *Engine) applyModified(name string, newer *document.Revision, ps *PairStats) error {
	idx := newer.SectionPages(name)
	if len(idx) == 0 {
		return &document.MalformedRevisionError{RevisionID: newer.ID, Section: name, Reason: "modified section has no pages"}
	}

	t := e.reg.Resolve(name)
	if t == nil {
		// A matched page whose section name resolves nowhere: the
		// section was renamed beyond recognition. Treat it as new.
		e.log.Warn("no tracker for modified section, creating new", "section", name, "revision", newer.ID)
		return e.insertNewSection(name, newer, ps)
	}

	hash := sectionHash(newer, idx)
	if t.HasContentHash(hash) {
		e.stats.DuplicatesSkipped++
		ps.DuplicatesSkipped++
		e.log.Info("duplicate content, version skipped",
			"section", t.CurrentName, "revision", newer.ID)
		return nil
	}

	e.insertVersion(t, newer, idx, hash)
	ps.VersionsCreated++
	return nil
}

// insertVersion places the section block immediately after the
// tracker's latest version and appends the new record.
func (e *Engine) insertVersion(t *tracker.Tracker, src *document.Revision, idx []int, hash string) {
	last := t.Latest()
	insertAfter := last.End // 1-based page the block goes after
	number := t.NextVersionNumber()

	e.master.Insert(insertAfter, masterPages(t, src, idx, number)...)

	// Shift every later range, across all trackers.
	inserted := len(idx)
	for _, other := range e.reg.All() {
		for vi := range other.Versions {
			if other.Versions[vi].Start > insertAfter {
				other.Versions[vi].Start += inserted
				other.Versions[vi].End += inserted
			}
		}
	}

	t.AddVersion(tracker.VersionRecord{
		Number:      number,
		Start:       insertAfter + 1,
		End:         insertAfter + inserted,
		SourceID:    src.ID,
		SourcePages: oneBased(idx),
		ContentHash: hash,
	})
	e.stats.VersionsCreated++
	e.log.Info("version added",
		"section", t.CurrentName, "version", number,
		"pages", fmt.Sprintf("%d-%d", insertAfter+1, insertAfter+inserted),
		"revision", src.ID)
}

// applyAdded creates trackers for sections that exist only in the
// newer revision. Added pages whose section resolves to an existing
// tracker are covered by the modified path or are duplicates.
func (e *Engine) applyAdded(res *match.Result, newer *document.Revision, ps *PairStats) error {
	if len(res.Added) == 0 {
		return nil
	}
	ps.Added = len(res.Added)

	seen := make(map[string]bool)
	for _, j := range res.Added {
		name := newer.Pages[j].Section
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if t := e.reg.Resolve(name); t != nil {
			e.log.Debug("added pages belong to known section, skipping",
				"section", name, "tracker", t.CurrentName)
			continue
		}
		if err := e.insertNewSection(name, newer, ps); err != nil {
			return err
		}
		e.stats.SectionsAdded++
	}
	return nil
}

// insertNewSection commits Version 1 of a section first seen in this
// revision, placed after the last version of the section that
// precedes it in the newer revision (or at the end of the master).
func (e *Engine) insertNewSection(name string, newer *document.Revision, ps *PairStats) error {
	idx := newer.SectionPages(name)
	if len(idx) == 0 {
		return &document.MalformedRevisionError{RevisionID: newer.ID, Section: name, Reason: "added section has no pages"}
	}

	insertAfter := e.master.Len()
	if prev := e.precedingTracker(name, newer); prev != nil {
		insertAfter = prev.Latest().End
	}

	t := e.reg.Create(name)
	hash := sectionHash(newer, idx)
	e.master.Insert(insertAfter, masterPages(t, newer, idx, 1)...)

	inserted := len(idx)
	for _, other := range e.reg.All() {
		for vi := range other.Versions {
			if other.Versions[vi].Start > insertAfter {
				other.Versions[vi].Start += inserted
				other.Versions[vi].End += inserted
			}
		}
	}

	t.AddVersion(tracker.VersionRecord{
		Number:      1,
		Start:       insertAfter + 1,
		End:         insertAfter + inserted,
		SourceID:    newer.ID,
		SourcePages: oneBased(idx),
		ContentHash: hash,
	})
	ps.VersionsCreated++
	e.stats.VersionsCreated++
	e.log.Info("new section added",
		"section", name, "pages", fmt.Sprintf("%d-%d", insertAfter+1, insertAfter+inserted),
		"revision", newer.ID)
	return nil
}

// precedingTracker finds the nearest section before name in the newer
// revision that already has a tracker, so a new section lands in
// document order rather than at the tail.
func (e *Engine) precedingTracker(name string, newer *document.Revision) *tracker.Tracker {
	sections := newer.Sections()
	pos := -1
	for i, s := range sections {
		if s == name {
			pos = i
			break
		}
	}
	for i := pos - 1; i >= 0; i-- {
		if t := e.reg.Resolve(sections[i]); t != nil && t.Latest() != nil {
			return t
		}
	}
	return nil
}

// tallyPasses records per-pass counts and flags low-confidence
// accepted scores.
func (e *Engine) tallyPasses(res *match.Result, ps *PairStats) {
	for _, p := range res.Pairs {
		switch p.Pass {
		case match.PassIdentical:
			ps.Identical++
		case match.PassHeuristic:
			ps.Heuristic++
		case match.PassGlobal:
			ps.Global++
		}
		if p.Score < e.lowBand && p.Score < 1.0 {
			ps.LowConfidence++
			e.stats.LowConfidenceMatches++
			e.log.Warn("low-confidence match accepted",
				"old_page", p.Old+1, "new_page", p.New+1, "score", p.Score, "pass", int(p.Pass))
		}
	}
}

// modifiedSections returns newer-revision section names containing at
// least one matched page whose content hash changed, ordered by first
// changed page.
func modifiedSections(res *match.Result, older, newer *document.Revision) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range res.Pairs {
		if older.Pages[p.Old].Hash == newer.Pages[p.New].Hash {
			continue
		}
		name := newer.Pages[p.New].Section
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func removedBySection(res *match.Result, older *document.Revision) map[string][]int {
	out := make(map[string][]int)
	for _, i := range res.Removed {
		name := older.Pages[i].Section
		out[name] = append(out[name], i+1)
	}
	return out
}

// checkContiguous verifies a section's pages form one unbroken run.
// Split sections would corrupt version range bookkeeping.
func checkContiguous(rev *document.Revision, name string) error {
	idx := rev.SectionPages(name)
	for k := 1; k < len(idx); k++ {
		if idx[k] != idx[k-1]+1 {
			return &document.MalformedRevisionError{
				RevisionID: rev.ID,
				Section:    name,
				Reason:     fmt.Sprintf("section pages not contiguous (%d then %d)", idx[k-1]+1, idx[k]+1),
			}
		}
	}
	return nil
}

func masterPages(t *tracker.Tracker, src *document.Revision, idx []int, version int) []document.MasterPage {
	pages := make([]document.MasterPage, 0, len(idx))
	for _, i := range idx {
		p := src.Pages[i]
		pages = append(pages, document.MasterPage{
			Text:       p.Text,
			Hash:       p.Hash,
			TrackerKey: t.Key,
			Version:    version,
			SourceID:   src.ID,
			SourcePage: i + 1,
			Section:    p.Section,
		})
	}
	return pages
}

func sectionHash(rev *document.Revision, idx []int) string {
	texts := make([]string, 0, len(idx))
	for _, i := range idx {
		texts = append(texts, rev.Pages[i].Text)
	}
	return fingerprint.HashBlock(texts)
}

func oneBased(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + 1
	}
	return out
}
