package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docverge/internal/config"
	"github.com/dgallion1/docverge/internal/consolidate"
	"github.com/dgallion1/docverge/internal/document"
	"github.com/dgallion1/docverge/internal/match"
	"github.com/dgallion1/docverge/internal/parser"
	"github.com/dgallion1/docverge/internal/report"
	"github.com/dgallion1/docverge/internal/sequencer"
	"github.com/dgallion1/docverge/internal/similarity"
	"github.com/dgallion1/docverge/internal/tracker"
)

// Runner processes a single consolidation run: order the revisions,
// parse them, then match and fold each consecutive pair into the
// master.
type Runner struct {
	cfg config.Config
	log *slog.Logger
}

func NewRunner(cfg config.Config, log *slog.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Process runs the full consolidation pipeline for a run.
func (w *Runner) Process(ctx context.Context, run *Run) {
	log := w.log.With("run_id", run.ID)

	// Phase 1: order by filename version and parse every revision.
	run.SetStatus(StatusExtracting, "extracting")
	revs, err := w.parseInputs(run)
	if err != nil {
		log.Error("extraction failed", "error", err)
		run.AddError(err.Error())
		run.SetStatus(StatusFailed, "extracting")
		return
	}
	run.SetTotalPairs(len(revs) - 1)
	log.Info("revisions extracted", "count", len(revs))

	cfg := applyOverrides(w.cfg, run.Overrides())
	matcher, err := match.NewEngine(
		similarity.LineRatio{},
		similarity.TokenRatio{},
		match.Config{
			HeuristicThreshold: cfg.HeuristicThreshold,
			GlobalThreshold:    cfg.GlobalThreshold,
			Weights: match.Weights{
				Name:      cfg.WeightName,
				Form:      cfg.WeightForm,
				Proximity: cfg.WeightProximity,
			},
			ScoreWorkers: cfg.ScoreWorkers,
		},
		w.log,
	)
	if err != nil {
		log.Error("bad matcher configuration", "error", err)
		run.AddError(err.Error())
		run.SetStatus(StatusFailed, "matching")
		return
	}

	reg := tracker.NewRegistry(similarity.TokenRatio{}, cfg.BookmarkSimilarity, w.log)
	cons := consolidate.NewEngine(reg, cfg.LowConfidenceBand, w.log)

	if err := cons.InitializeBase(revs[0]); err != nil {
		log.Error("base initialization failed", "revision", revs[0].ID, "error", err)
		run.AddError(err.Error())
		run.SetStatus(StatusFailed, "consolidating")
		return
	}

	// Phase 2: fold each consecutive pair into the master.
	committed := 0
	for i := 0; i+1 < len(revs); i++ {
		select {
		case <-ctx.Done():
			run.AddError(ctx.Err().Error())
			run.SetStatus(StatusFailed, "canceled")
			return
		default:
		}

		older, newer := revs[i], revs[i+1]
		run.SetStatus(StatusMatching, fmt.Sprintf("matching %s → %s", older.ID, newer.ID))
		res, err := matcher.Match(older, newer)
		if err != nil {
			w.fail(run, committed, cons, reg, fmt.Errorf("match %s → %s: %w", older.ID, newer.ID, err))
			return
		}

		run.SetStatus(StatusConsolidating, fmt.Sprintf("consolidating %s → %s", older.ID, newer.ID))
		ps, err := cons.ApplyPair(res, older, newer)
		if err != nil {
			w.fail(run, committed, cons, reg, fmt.Errorf("consolidate %s → %s: %w", older.ID, newer.ID, err))
			return
		}
		committed++
		run.IncrPairsDone()
		log.Info("pair consolidated",
			"older", older.ID, "newer", newer.ID,
			"identical", ps.Identical, "heuristic", ps.Heuristic, "global", ps.Global,
			"versions_created", ps.VersionsCreated, "duration", ps.Duration)
	}

	run.SetResult(w.buildResult(cons, reg, false))
	run.SetStatus(StatusCompleted, "done")
	log.Info("run completed", "pairs", committed)
}

// fail finishes a run after a fatal pair error. In partial-commit
// mode the pairs already folded in stay exposed, flagged Incomplete;
// otherwise no result is attached.
func (w *Runner) fail(run *Run, committed int, cons *consolidate.Engine, reg *tracker.Registry, err error) {
	w.log.Error("run failed", "run_id", run.ID, "error", err)
	run.AddError(err.Error())
	if w.cfg.PartialCommit && committed > 0 {
		run.SetResult(w.buildResult(cons, reg, true))
		run.SetStatus(StatusPartial, "done")
		return
	}
	run.SetStatus(StatusFailed, "consolidating")
}

func (w *Runner) buildResult(cons *consolidate.Engine, reg *tracker.Registry, incomplete bool) *Result {
	nodes := consolidate.BuildHierarchy(reg)
	stats := cons.Stats()
	return &Result{
		Hierarchy:  nodes,
		Stats:      stats,
		Report:     report.Build(nodes, stats),
		Incomplete: incomplete,
	}
}

// applyOverrides layers per-run settings over the service defaults.
func applyOverrides(cfg config.Config, o *Overrides) config.Config {
	if o == nil {
		return cfg
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.HeuristicThreshold, o.HeuristicThreshold)
	set(&cfg.GlobalThreshold, o.GlobalThreshold)
	set(&cfg.BookmarkSimilarity, o.BookmarkSimilarity)
	set(&cfg.WeightName, o.WeightName)
	set(&cfg.WeightForm, o.WeightForm)
	set(&cfg.WeightProximity, o.WeightProximity)
	return cfg
}

// parseInputs orders the uploaded files by their filename version and
// parses each into a page sequence.
func (w *Runner) parseInputs(run *Run) ([]*document.Revision, error) {
	inputs := run.Inputs()
	if len(inputs) < 2 {
		return nil, fmt.Errorf("need at least 2 revision files, have %d", len(inputs))
	}

	byName := make(map[string][]byte, len(inputs))
	files := make([]sequencer.FileVersion, 0, len(inputs))
	for _, in := range inputs {
		byName[in.Filename] = in.Data
		files = append(files, sequencer.FileVersion{
			Filename: in.Filename,
			Version:  sequencer.ExtractVersion(in.Filename),
		})
	}

	revs := make([]*document.Revision, 0, len(files))
	for _, f := range sequencer.SortByVersion(files) {
		p, err := parser.ForFile(f.Filename)
		if err != nil {
			return nil, err
		}
		if pp, ok := p.(*parser.PDFParser); ok {
			pp.FallbackPdftotext = w.cfg.PDFFallbackPdftotext
		}
		rev, err := p.Parse(bytes.NewReader(byName[f.Filename]), f.Filename)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Filename, err)
		}
		if len(rev.Pages) == 0 {
			return nil, fmt.Errorf("no extractable pages in %s", f.Filename)
		}
		revs = append(revs, rev)
	}
	return revs, nil
}
