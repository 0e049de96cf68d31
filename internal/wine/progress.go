package wine

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// ProgressState is the live view of one ingestion run, polled over HTTP.
type ProgressState struct {
	Handle       string    `json:"handle"`
	Status       Status    `json:"status"`
	TotalLines   int       `json:"total_lines"`
	Processed    int       `json:"processed"`
	Errored      int       `json:"errored"`
	Percent      int       `json:"percent"`
	CurrentBatch int       `json:"current_batch"`
	TotalBatches int       `json:"total_batches"`
	Message      string    `json:"message"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProcessResult is the terminal summary, written exactly once per run.
type ProcessResult struct {
	Handle       string       `json:"handle"`
	Success      bool         `json:"success"`
	Processed    int          `json:"processed"`
	Errored      int          `json:"errored"`
	TotalInStore int          `json:"total_in_store"`
	Sample       []WineRecord `json:"sample,omitempty"`
	Message      string       `json:"message"`
}

var (
	ErrUnknownHandle   = errors.New("unknown process handle")
	ErrNotFinished     = errors.New("ingestion has not finished yet")
	ErrAlreadyFinished = errors.New("ingestion already finished")
)

// Tracker is the in-memory registry of ingestion runs. One writer per
// handle (the run's own goroutine), many concurrent HTTP readers.
// Constructed once in main and injected, never package-level state.
type Tracker struct {
	mu        sync.RWMutex
	progress  map[string]*ProgressState
	results   map[string]*ProcessResult
	cancelled map[string]bool
	doneAt    map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		progress:  make(map[string]*ProgressState),
		results:   make(map[string]*ProcessResult),
		cancelled: make(map[string]bool),
		doneAt:    make(map[string]time.Time),
	}
}

func (t *Tracker) Start(handle string, totalLines, totalBatches int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.progress[handle] = &ProgressState{
		Handle:       handle,
		Status:       StatusPending,
		TotalLines:   totalLines,
		TotalBatches: totalBatches,
		Message:      "waiting to start",
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

func (t *Tracker) MarkProcessing(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.progress[handle]
	if !ok || p.Status != StatusPending {
		return
	}
	p.Status = StatusProcessing
	p.Message = "processing"
	p.UpdatedAt = time.Now()
}

// Record pushes counter updates from the run's goroutine. Percent is
// derived from attempted lines (processed + errored) so a run with
// failures still reaches 100. No-op once the run is terminal.
func (t *Tracker) Record(
	handle string,
	processed, errored, currentBatch int,
	message string,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.progress[handle]
	if !ok || p.Status.Terminal() {
		return
	}

	p.Processed = processed
	p.Errored = errored
	p.CurrentBatch = currentBatch
	if message != "" {
		p.Message = message
	}

	if p.TotalLines > 0 {
		pct := int(math.Round(
			float64(processed+errored) / float64(p.TotalLines) * 100,
		))
		// counters are monotonic, but guard anyway
		if pct > p.Percent {
			p.Percent = pct
		}
	}

	p.UpdatedAt = time.Now()
}

// Finish moves the run to a terminal status and stores its result.
// Both happen under one lock so pollers never see a terminal status
// without a result.
func (t *Tracker) Finish(
	handle string,
	status Status,
	message string,
	result *ProcessResult,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.progress[handle]
	if !ok || p.Status.Terminal() {
		return
	}

	p.Status = status
	p.Message = message
	p.UpdatedAt = time.Now()
	if status == StatusComplete {
		p.Percent = 100
	}

	if result != nil {
		t.results[handle] = result
	}
	t.doneAt[handle] = time.Now()
}

func (t *Tracker) Get(handle string) (*ProgressState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.progress[handle]
	if !ok {
		return nil, ErrUnknownHandle
	}
	out := *p
	return &out, nil
}

func (t *Tracker) Result(handle string) (*ProcessResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.progress[handle]; !ok {
		return nil, ErrUnknownHandle
	}
	res, ok := t.results[handle]
	if !ok {
		return nil, ErrNotFinished
	}
	out := *res
	return &out, nil
}

// Cancel flags a run; the scheduler checks the flag at the top of each
// line and stops at the next opportunity.
func (t *Tracker) Cancel(handle string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.progress[handle]
	if !ok {
		return ErrUnknownHandle
	}
	if p.Status.Terminal() {
		return ErrAlreadyFinished
	}
	t.cancelled[handle] = true
	return nil
}

func (t *Tracker) Cancelled(handle string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelled[handle]
}

// Sweep drops terminal runs older than ttl. Without it the registry
// grows forever.
func (t *Tracker) Sweep(ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-ttl)

	for handle, done := range t.doneAt {
		if done.After(cutoff) {
			continue
		}
		delete(t.progress, handle)
		delete(t.results, handle)
		delete(t.cancelled, handle)
		delete(t.doneAt, handle)
		removed++
	}

	return removed
}

// RunSweeper evicts expired runs on a fixed cadence until stop is closed.
func (t *Tracker) RunSweeper(stop <-chan struct{}, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := t.Sweep(ttl); n > 0 {
				log.Printf("WINE_TRACKER_SWEEP evicted=%d", n)
			}
		}
	}
}
