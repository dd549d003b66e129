// Package progress keeps the latest known upload progress per file.
package progress

import (
	"sort"
	"sync"

	"github.com/me/shennong/pkg/model"
)

// Aggregator maps a file key to its most advanced ProgressSample.
// Samples arrive from concurrent uploads and may be reordered; an entry is
// only replaced when the incoming sample has loaded strictly more bytes,
// so displayed progress never moves backwards.
type Aggregator struct {
	mu      sync.RWMutex
	samples map[string]model.ProgressSample
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{samples: make(map[string]model.ProgressSample)}
}

// Observe records s and reports whether it replaced the stored sample.
func (a *Aggregator) Observe(s model.ProgressSample) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.samples[s.Key]
	if ok && s.BytesLoaded <= cur.BytesLoaded {
		return false
	}
	a.samples[s.Key] = s
	return true
}

// Get returns the stored sample for key.
func (a *Aggregator) Get(key string) (model.ProgressSample, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.samples[key]
	return s, ok
}

// Snapshot returns all samples ordered by key.
func (a *Aggregator) Snapshot() []model.ProgressSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]model.ProgressSample, 0, len(a.samples))
	for _, s := range a.samples {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Overall sums every stored sample into one, keyed by the empty string.
func (a *Aggregator) Overall() model.ProgressSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var total model.ProgressSample
	for _, s := range a.samples {
		total.BytesLoaded += s.BytesLoaded
		total.BytesTotal += s.BytesTotal
	}
	return total
}

// Len returns the number of tracked files.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.samples)
}

// Reset forgets every sample, e.g. when an upload batch ends.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = make(map[string]model.ProgressSample)
}

// Percent returns floor(loaded/total*100). A zero or negative total counts
// as complete.
func Percent(s model.ProgressSample) int {
	if s.BytesTotal <= 0 {
		return 100
	}
	return int(s.BytesLoaded * 100 / s.BytesTotal)
}
