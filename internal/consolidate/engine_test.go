package consolidate

import (
	"errors"
	"testing"

	"github.com/dgallion1/docverge/internal/document"
	"github.com/dgallion1/docverge/internal/fingerprint"
	"github.com/dgallion1/docverge/internal/match"
	"github.com/dgallion1/docverge/internal/similarity"
	"github.com/dgallion1/docverge/internal/tracker"
)

type section struct {
	name  string
	texts []string
}

func makeRev(id string, secs ...section) *document.Revision {
	r := &document.Revision{ID: id}
	i := 0
	for _, s := range secs {
		for _, txt := range s.texts {
			r.Pages = append(r.Pages, document.Page{
				Index:   i,
				Text:    txt,
				Hash:    fingerprint.Hash(txt),
				Section: s.name,
			})
			i++
		}
	}
	return r
}

func newTestEngine() *Engine {
	reg := tracker.NewRegistry(similarity.TokenRatio{}, 0.8, nil)
	return NewEngine(reg, 0.75, nil)
}

// identicalResult pairs every page 1:1 at score 1.0.
func identicalResult(n int) *match.Result {
	res := &match.Result{}
	for i := range n {
		res.Pairs = append(res.Pairs, match.Pair{Old: i, New: i, Pass: match.PassIdentical, Score: 1})
	}
	return res
}

func TestInitializeBase_VersionOneFromBasePages(t *testing.T) {
	base := makeRev("1.0.0",
		section{"Vital Signs", []string{"vs page 1", "vs page 2"}},
		section{"Urine Test", []string{"ut page 1", "ut page 2", "ut page 3"}},
	)
	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}

	if e.Master().Len() != 5 {
		t.Fatalf("expected 5 master pages, got %d", e.Master().Len())
	}
	if e.Registry().Len() != 2 {
		t.Fatalf("expected 2 trackers, got %d", e.Registry().Len())
	}

	vs := e.Registry().Resolve("Vital Signs")
	if vs == nil || len(vs.Versions) != 1 {
		t.Fatalf("expected Vital Signs with 1 version, got %+v", vs)
	}
	if vs.Versions[0].Start != 1 || vs.Versions[0].End != 2 {
		t.Errorf("expected range 1-2, got %d-%d", vs.Versions[0].Start, vs.Versions[0].End)
	}

	ut := e.Registry().Resolve("Urine Test")
	if ut.Versions[0].Start != 3 || ut.Versions[0].End != 5 {
		t.Errorf("expected range 3-5, got %d-%d", ut.Versions[0].Start, ut.Versions[0].End)
	}

	// Version 1 pages are copied verbatim from the base.
	for i, p := range base.Pages {
		if e.Master().Page(i).Text != p.Text {
			t.Errorf("master page %d: expected %q, got %q", i, p.Text, e.Master().Page(i).Text)
		}
		if e.Master().Page(i).SourceID != "1.0.0" {
			t.Errorf("master page %d: expected base provenance", i)
		}
	}
}

func TestApplyPair_UnchangedRevisionAddsNothing(t *testing.T) {
	base := makeRev("1.0.0", section{"Vital Signs", []string{"vs a", "vs b"}})
	second := makeRev("2.0.0", section{"Vital Signs", []string{"vs a", "vs b"}})

	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}
	if _, err := e.ApplyPair(identicalResult(2), base, second); err != nil {
		t.Fatalf("ApplyPair: %v", err)
	}

	vs := e.Registry().Resolve("Vital Signs")
	if len(vs.Versions) != 1 {
		t.Errorf("expected exactly 1 version after unchanged pair, got %d", len(vs.Versions))
	}
	if e.Master().Len() != 2 {
		t.Errorf("expected master unchanged at 2 pages, got %d", e.Master().Len())
	}
	if e.Stats().VersionsCreated != 0 {
		t.Errorf("expected 0 versions created, got %d", e.Stats().VersionsCreated)
	}
}

func TestApplyPair_RenamedSectionGetsSecondVersion(t *testing.T) {
	base := makeRev("1.0.0",
		section{"Intro", []string{"intro text"}},
		section{"Urine Test", []string{"ut a", "ut b", "ut c"}},
	)
	third := makeRev("3.0.0",
		section{"Intro", []string{"intro text"}},
		section{"Urine Test - Hidden", []string{"ut a changed", "ut b changed", "ut c"}},
	)

	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}

	res := &match.Result{Pairs: []match.Pair{
		{Old: 0, New: 0, Pass: match.PassIdentical, Score: 1},
		{Old: 1, New: 1, Pass: match.PassGlobal, Score: 0.85},
		{Old: 2, New: 2, Pass: match.PassGlobal, Score: 0.85},
		{Old: 3, New: 3, Pass: match.PassIdentical, Score: 1},
	}}
	if _, err := e.ApplyPair(res, base, third); err != nil {
		t.Fatalf("ApplyPair: %v", err)
	}

	ut := e.Registry().Resolve("Urine Test - Hidden")
	if ut == nil {
		t.Fatal("expected renamed section to resolve")
	}
	if len(ut.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(ut.Versions))
	}
	if ut.CurrentName != "Urine Test - Hidden" {
		t.Errorf("expected latest name to win, got %q", ut.CurrentName)
	}
	// Master grew by exactly the inserted section block.
	if e.Master().Len() != 4+3 {
		t.Errorf("expected 7 master pages, got %d", e.Master().Len())
	}
	// Version 2 sits immediately after Version 1.
	v1, v2 := ut.Versions[0], ut.Versions[1]
	if v2.Start != v1.End+1 {
		t.Errorf("expected version 2 to start at %d, got %d", v1.End+1, v2.Start)
	}
	if v2.SourceID != "3.0.0" {
		t.Errorf("expected version 2 from revision 3.0.0, got %q", v2.SourceID)
	}

	nodes := BuildHierarchy(e.Registry())
	if len(nodes) != 2 {
		t.Fatalf("expected 2 hierarchy nodes, got %d", len(nodes))
	}
	if nodes[1].Title != "Urine Test - Hidden" {
		t.Errorf("expected parent labeled with latest name, got %q", nodes[1].Title)
	}
	if len(nodes[1].Versions) != 2 || nodes[1].Versions[1].Title != "Version 2" {
		t.Errorf("expected version children, got %+v", nodes[1].Versions)
	}
}

func TestApplyPair_DuplicateContentIsIdempotent(t *testing.T) {
	base := makeRev("1.0.0", section{"Labs", []string{"labs v1"}})
	second := makeRev("2.0.0", section{"Labs", []string{"labs v2"}})

	res := &match.Result{Pairs: []match.Pair{{Old: 0, New: 0, Pass: match.PassGlobal, Score: 0.9}}}

	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}
	if _, err := e.ApplyPair(res, base, second); err != nil {
		t.Fatalf("first ApplyPair: %v", err)
	}
	lenAfterFirst := e.Master().Len()

	// The same candidate block again: insertion must be skipped.
	if _, err := e.ApplyPair(res, base, second); err != nil {
		t.Fatalf("second ApplyPair: %v", err)
	}

	labs := e.Registry().Resolve("Labs")
	if len(labs.Versions) != 2 {
		t.Errorf("expected exactly 2 versions after duplicate apply, got %d", len(labs.Versions))
	}
	if e.Master().Len() != lenAfterFirst {
		t.Errorf("expected master unchanged at %d pages, got %d", lenAfterFirst, e.Master().Len())
	}
	if e.Stats().DuplicatesSkipped != 1 {
		t.Errorf("expected 1 duplicate skipped, got %d", e.Stats().DuplicatesSkipped)
	}
}

func TestApplyPair_LaterRangesShiftOnInsertion(t *testing.T) {
	base := makeRev("1.0.0",
		section{"First", []string{"f1", "f2"}},
		section{"Second", []string{"s1", "s2"}},
	)
	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}

	mod := func(id, a, b string) *document.Revision {
		return makeRev(id,
			section{"First", []string{a, b}},
			section{"Second", []string{"s1", "s2"}},
		)
	}
	res := &match.Result{Pairs: []match.Pair{
		{Old: 0, New: 0, Pass: match.PassGlobal, Score: 0.9},
		{Old: 1, New: 1, Pass: match.PassGlobal, Score: 0.9},
		{Old: 2, New: 2, Pass: match.PassIdentical, Score: 1},
		{Old: 3, New: 3, Pass: match.PassIdentical, Score: 1},
	}}

	rev2 := mod("2.0.0", "f1 v2", "f2 v2")
	if _, err := e.ApplyPair(res, base, rev2); err != nil {
		t.Fatalf("ApplyPair rev2: %v", err)
	}
	rev3 := mod("3.0.0", "f1 v3", "f2 v3")
	if _, err := e.ApplyPair(res, rev2, rev3); err != nil {
		t.Fatalf("ApplyPair rev3: %v", err)
	}

	first := e.Registry().Resolve("First")
	second := e.Registry().Resolve("Second")

	if len(first.Versions) != 3 {
		t.Fatalf("expected 3 versions of First, got %d", len(first.Versions))
	}
	// Versions of a tracker stay adjacent.
	for k := 1; k < len(first.Versions); k++ {
		if first.Versions[k].Start != first.Versions[k-1].End+1 {
			t.Errorf("version %d: expected start %d, got %d",
				k+1, first.Versions[k-1].End+1, first.Versions[k].Start)
		}
	}
	// Second shifted right by the four inserted pages.
	if second.Versions[0].Start != 7 || second.Versions[0].End != 8 {
		t.Errorf("expected Second at 7-8, got %d-%d", second.Versions[0].Start, second.Versions[0].End)
	}
	// Master ordering: all First versions, then Second.
	want := []string{"f1", "f2", "f1 v2", "f2 v2", "f1 v3", "f2 v3", "s1", "s2"}
	for i, w := range want {
		if got := e.Master().Page(i).Text; got != w {
			t.Errorf("master page %d: expected %q, got %q", i+1, w, got)
		}
	}
}

func TestApplyPair_AddedSectionBecomesNewTracker(t *testing.T) {
	base := makeRev("1.0.0", section{"Vital Signs", []string{"vs a"}})
	second := makeRev("2.0.0",
		section{"Vital Signs", []string{"vs a"}},
		section{"Adverse Events", []string{"ae 1", "ae 2"}},
	)

	res := &match.Result{
		Pairs: []match.Pair{{Old: 0, New: 0, Pass: match.PassIdentical, Score: 1}},
		Added: []int{1, 2},
	}

	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}
	if _, err := e.ApplyPair(res, base, second); err != nil {
		t.Fatalf("ApplyPair: %v", err)
	}

	ae := e.Registry().Resolve("Adverse Events")
	if ae == nil {
		t.Fatal("expected new tracker for added section")
	}
	if len(ae.Versions) != 1 || ae.Versions[0].Number != 1 {
		t.Fatalf("expected single Version 1, got %+v", ae.Versions)
	}
	if ae.Versions[0].Start != 2 || ae.Versions[0].End != 3 {
		t.Errorf("expected added section at 2-3, got %d-%d", ae.Versions[0].Start, ae.Versions[0].End)
	}
	if e.Stats().SectionsAdded != 1 {
		t.Errorf("expected 1 section added, got %d", e.Stats().SectionsAdded)
	}
}

func TestApplyPair_RemovedPagesAreRetained(t *testing.T) {
	base := makeRev("1.0.0",
		section{"Keep", []string{"keep a"}},
		section{"Gone", []string{"gone a", "gone b"}},
	)
	second := makeRev("2.0.0", section{"Keep", []string{"keep a"}})

	res := &match.Result{
		Pairs:   []match.Pair{{Old: 0, New: 0, Pass: match.PassIdentical, Score: 1}},
		Removed: []int{1, 2},
	}

	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}
	if _, err := e.ApplyPair(res, base, second); err != nil {
		t.Fatalf("ApplyPair: %v", err)
	}

	if e.Master().Len() != 3 {
		t.Errorf("expected all 3 pages retained, got %d", e.Master().Len())
	}
	gone := e.Registry().Resolve("Gone")
	if gone == nil || len(gone.Versions) != 1 {
		t.Error("expected vanished section history to be retained")
	}
	if e.Stats().PagesRemoved != 2 {
		t.Errorf("expected 2 pages recorded as removed, got %d", e.Stats().PagesRemoved)
	}
}

func TestApplyPair_CrossingResultAbortsWithoutMutation(t *testing.T) {
	base := makeRev("1.0.0", section{"A", []string{"a1", "a2"}})
	second := makeRev("2.0.0", section{"A", []string{"x1", "x2"}})

	res := &match.Result{Pairs: []match.Pair{
		{Old: 0, New: 1, Pass: match.PassGlobal, Score: 0.9},
		{Old: 1, New: 0, Pass: match.PassGlobal, Score: 0.9},
	}}

	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}
	lenBefore := e.Master().Len()

	_, err := e.ApplyPair(res, base, second)
	var sErr *match.StructuralError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if e.Master().Len() != lenBefore {
		t.Error("expected no mutation after structural violation")
	}
}

func TestApplyPair_NonContiguousSectionIsMalformed(t *testing.T) {
	base := makeRev("1.0.0", section{"A", []string{"a1"}})
	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}

	// Section "A" split around "B" in the newer revision.
	bad := &document.Revision{ID: "2.0.0", Pages: []document.Page{
		{Index: 0, Text: "a1 new", Hash: fingerprint.Hash("a1 new"), Section: "A"},
		{Index: 1, Text: "b1", Hash: fingerprint.Hash("b1"), Section: "B"},
		{Index: 2, Text: "a2 new", Hash: fingerprint.Hash("a2 new"), Section: "A"},
	}}
	res := &match.Result{Pairs: []match.Pair{{Old: 0, New: 0, Pass: match.PassGlobal, Score: 0.9}}}

	_, err := e.ApplyPair(res, base, bad)
	var mErr *document.MalformedRevisionError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected MalformedRevisionError, got %v", err)
	}
}

func TestBuildHierarchy_OrderedByFirstAppearance(t *testing.T) {
	base := makeRev("1.0.0",
		section{"Zeta", []string{"z1"}},
		section{"Alpha", []string{"a1"}},
	)
	e := newTestEngine()
	if err := e.InitializeBase(base); err != nil {
		t.Fatalf("InitializeBase: %v", err)
	}

	nodes := BuildHierarchy(e.Registry())
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	// Page order, not name order.
	if nodes[0].Title != "Zeta" || nodes[1].Title != "Alpha" {
		t.Errorf("expected [Zeta Alpha], got [%s %s]", nodes[0].Title, nodes[1].Title)
	}
	for _, n := range nodes {
		if len(n.Versions) != 1 || n.Versions[0].Title != "Version 1" {
			t.Errorf("node %s: expected single Version 1 child, got %+v", n.Title, n.Versions)
		}
		if n.HasChanges {
			t.Errorf("node %s: expected no changes flag", n.Title)
		}
	}
}
