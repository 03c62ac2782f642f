package game

import (
	"context"
	"log"
	"sync"
	"time"

	"casinolab/internal/metrics"
)

const (
	RECORDER_QUEUE_SIZE = 1024
	RECORDER_TIMEOUT    = 5 * time.Second
)

// HistoryStore persists settled outcomes, finished rounds and revealed salts.
type HistoryStore interface {
	SaveOutcome(ctx context.Context, o OutcomeResult) error
	SaveRound(ctx context.Context, r RoundRecord) error
	SaveSaltReveal(ctx context.Context, s SaltReveal) error
}

type recordJob struct {
	kind string
	run  func(ctx context.Context) error
}

// Recorder writes history in the background so the crash loop never waits
// on the database. A nil *Recorder discards everything.
type Recorder struct {
	store HistoryStore
	jobs  chan recordJob
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewRecorder(store HistoryStore) *Recorder {
	return &Recorder{
		store: store,
		jobs:  make(chan recordJob, RECORDER_QUEUE_SIZE),
	}
}

func (r *Recorder) Start() {
	if r == nil {
		return
	}
	r.wg.Add(1)
	go r.run()
}

// Stop drains queued records and waits for the worker to exit.
func (r *Recorder) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), RECORDER_TIMEOUT)
		if err := job.run(ctx); err != nil {
			log.Printf("[DB] Failed to save %s: %v", job.kind, err)
		}
		cancel()
	}
}

func (r *Recorder) enqueue(job recordJob) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- job:
	default:
		metrics.RecorderDropped.Inc()
		log.Printf("[DB] Recorder queue full, dropping %s", job.kind)
	}
}

func (r *Recorder) RecordOutcome(o OutcomeResult) {
	if r == nil {
		return
	}
	r.enqueue(recordJob{kind: "outcome", run: func(ctx context.Context) error {
		return r.store.SaveOutcome(ctx, o)
	}})
}

func (r *Recorder) RecordRound(rec RoundRecord) {
	if r == nil {
		return
	}
	r.enqueue(recordJob{kind: "round", run: func(ctx context.Context) error {
		return r.store.SaveRound(ctx, rec)
	}})
}

func (r *Recorder) RecordSaltReveal(s SaltReveal) {
	if r == nil {
		return
	}
	r.enqueue(recordJob{kind: "salt", run: func(ctx context.Context) error {
		return r.store.SaveSaltReveal(ctx, s)
	}})
}
