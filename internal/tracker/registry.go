package tracker

import (
	"log/slog"

	"github.com/dgallion1/docverge/internal/similarity"
)

// Registry resolves section names to trackers across revisions.
// Resolution is fuzzy: the incoming name is normalized and compared
// against every tracker's current name and name history; the best
// match at or above the threshold wins.
type Registry struct {
	byKey     map[string]*Tracker
	order     []*Tracker // creation order
	name      similarity.Scorer
	threshold float64
	log       *slog.Logger
}

// NewRegistry builds an empty registry. threshold is the minimum
// similarity for a fuzzy match (0.8 by default upstream).
func NewRegistry(name similarity.Scorer, threshold float64, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		byKey:     make(map[string]*Tracker),
		name:      name,
		threshold: threshold,
		log:       log,
	}
}

// Resolve returns the tracker for a section name, or nil when no
// tracker clears the similarity threshold. On a successful fuzzy
// match the tracker's name evolves to the incoming name ("latest
// name wins"). Ties are broken by maximum similarity, then by
// earliest-created tracker.
func (r *Registry) Resolve(name string) *Tracker {
	target := NormalizeName(name)
	if target == "" {
		return nil
	}
	if t, ok := r.byKey[target]; ok {
		t.UpdateName(name)
		return t
	}

	var best *Tracker
	bestRatio := 0.0
	tied := false
	for _, t := range r.order {
		ratio := r.name.Score(target, NormalizeName(t.CurrentName))
		for _, hist := range t.NameHistory {
			if hr := r.name.Score(target, NormalizeName(hist)); hr > ratio {
				ratio = hr
			}
		}
		switch {
		case ratio > bestRatio:
			best, bestRatio, tied = t, ratio, false
		case ratio == bestRatio && best != nil && ratio >= r.threshold:
			// Earliest-created wins: r.order is creation order, so
			// the earlier tracker is already held. Record the tie
			// for the log.
			tied = true
		}
	}

	if best == nil || bestRatio < r.threshold {
		return nil
	}
	if tied {
		r.log.Warn("ambiguous section match, earliest tracker wins",
			"name", name, "tracker", best.CurrentName, "similarity", bestRatio)
	}
	best.UpdateName(name)
	return best
}

// Create registers a new tracker for a section name. The caller is
// expected to have tried Resolve first.
func (r *Registry) Create(name string) *Tracker {
	t := &Tracker{
		Key:          NormalizeName(name),
		CurrentName:  name,
		OriginalName: name,
		NameHistory:  []string{name},
		seq:          len(r.order),
	}
	r.byKey[t.Key] = t
	r.order = append(r.order, t)
	return t
}

// All returns every tracker in creation order.
func (r *Registry) All() []*Tracker {
	out := make([]*Tracker, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the tracker count.
func (r *Registry) Len() int {
	return len(r.order)
}
