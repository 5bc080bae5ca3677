package service

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"skinport-sniper/internal/deal"
)

// Outcome labels what happened to one sale record.
type Outcome string

const (
	OutcomeNotified       Outcome = "notified"
	OutcomeNotifyFailed   Outcome = "notify_failed"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeFetchFailed    Outcome = "fetch_failed"
	OutcomeFetchRetryable Outcome = "fetch_retryable"
)

// skipOutcome maps an evaluator skip reason onto its outcome label.
func skipOutcome(reason deal.Reason) Outcome {
	return Outcome(reason)
}

// Tally counts sale outcomes since start-up. Safe for concurrent use.
type Tally struct {
	mu      sync.Mutex
	batches int64
	counts  map[Outcome]int64
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[Outcome]int64)}
}

func (t *Tally) addBatch() {
	t.mu.Lock()
	t.batches++
	t.mu.Unlock()
}

func (t *Tally) add(o Outcome) {
	t.mu.Lock()
	t.counts[o]++
	t.mu.Unlock()
}

// Count returns the number of records recorded under o.
func (t *Tally) Count(o Outcome) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[o]
}

// Batches returns how many feed pushes were processed.
func (t *Tally) Batches() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batches
}

// Snapshot copies the current counters.
func (t *Tally) Snapshot() map[Outcome]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Outcome]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// MarshalZerologObject lets the tally be logged with Object().
func (t *Tally) MarshalZerologObject(e *zerolog.Event) {
	snap := t.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	e.Int64("batches", t.Batches())
	for _, k := range keys {
		e.Int64(k, snap[Outcome(k)])
	}
}
