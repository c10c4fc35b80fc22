package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docverge/internal/consolidate"
)

// RunStatus represents the state of a consolidation run.
type RunStatus string

const (
	StatusQueued        RunStatus = "queued"
	StatusExtracting    RunStatus = "extracting"
	StatusMatching      RunStatus = "matching"
	StatusConsolidating RunStatus = "consolidating"
	StatusCompleted     RunStatus = "completed"
	StatusFailed        RunStatus = "failed"
	StatusPartial       RunStatus = "partial"
)

// InputFile is one uploaded revision file.
type InputFile struct {
	Filename string
	Data     []byte
}

// Run tracks the state of a single consolidation across a revision
// sequence.
type Run struct {
	mu sync.Mutex

	ID string `json:"run_id"`

	Status RunStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	inputs   []InputFile
	override *Overrides
	result   *Result
	errors   []string
}

// Overrides carries per-run threshold and weight settings supplied
// with the upload. Nil fields keep the service defaults.
type Overrides struct {
	HeuristicThreshold *float64
	GlobalThreshold    *float64
	BookmarkSimilarity *float64
	WeightName         *float64
	WeightForm         *float64
	WeightProximity    *float64
}

// Progress tracks pair processing progress.
type Progress struct {
	TotalPairs int      `json:"total_pairs"`
	PairsDone  int      `json:"pairs_done"`
	Errors     []string `json:"errors"`
}

// Result is the consolidated output, attached only once the run has
// produced a coherent master. Incomplete marks a partial-commit run
// that stopped before its last pair.
type Result struct {
	Hierarchy  []consolidate.Node `json:"hierarchy"`
	Stats      consolidate.Stats  `json:"stats"`
	Report     string             `json:"-"`
	Incomplete bool               `json:"incomplete"`
}

// NewRun builds a queued run over the given input files.
func NewRun(id string, inputs []InputFile) *Run {
	now := time.Now()
	return &Run{
		ID:        id,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		inputs:    inputs,
	}
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status RunStatus, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.Phase = phase
	r.UpdatedAt = time.Now()
}

// AddError records an error.
func (r *Run) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.Progress.Errors = r.errors
	r.UpdatedAt = time.Now()
}

// SetTotalPairs records how many revision pairs the run will process.
func (r *Run) SetTotalPairs(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.TotalPairs = n
	r.UpdatedAt = time.Now()
}

// IncrPairsDone atomically increments the processed-pair count.
func (r *Run) IncrPairsDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.PairsDone++
	r.UpdatedAt = time.Now()
}

// Inputs returns the uploaded revision files.
func (r *Run) Inputs() []InputFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs
}

// SetOverrides attaches per-run settings. Must be called before the
// run is submitted.
func (r *Run) SetOverrides(o *Overrides) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = o
}

// Overrides returns the per-run settings, or nil.
func (r *Run) Overrides() *Overrides {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.override
}

// SetResult attaches the consolidated output.
func (r *Run) SetResult(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
	r.UpdatedAt = time.Now()
}

// Result returns the consolidated output, or nil while the run is
// still in flight or has failed.
func (r *Run) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID       string    `json:"run_id"`
	Status   RunStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return RunSnapshot{
		ID:     r.ID,
		Status: r.Status,
		Phase:  r.Phase,
		Progress: Progress{
			TotalPairs: r.Progress.TotalPairs,
			PairsDone:  r.Progress.PairsDone,
			Errors:     errs,
		},
	}
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		if now.Sub(run.UpdatedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}
