package completion

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// ModelCounts tallies attempts for one model inside the window.
type ModelCounts struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// StatsSnapshot is a point-in-time aggregate of completion latency samples.
type StatsSnapshot struct {
	Count   int                    `json:"count"`
	MinMs   int64                  `json:"min_ms"`
	MaxMs   int64                  `json:"max_ms"`
	AvgMs   float64                `json:"avg_ms"`
	P50Ms   float64                `json:"p50_ms"`
	P95Ms   float64                `json:"p95_ms"`
	P99Ms   float64                `json:"p99_ms"`
	ByModel map[string]ModelCounts `json:"by_model"`
}

type outcome struct {
	timestamp time.Time
	model     string
	ok        bool
}

// Stats tracks recent successful completion latencies and per-model
// outcomes within a rolling window. A nil *Stats discards everything.
type Stats struct {
	mu       sync.Mutex
	samples  []sample
	outcomes []outcome
	maxAge   time.Duration
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds the latency of a successful completion by model.
func (s *Stats) Record(model string, durationMs int64) {
	if s == nil {
		return
	}
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{timestamp: now, durationMs: durationMs})
	s.outcomes = append(s.outcomes, outcome{timestamp: now, model: model, ok: true})
}

// RecordFailure counts a failed attempt against model.
func (s *Stats) RecordFailure(model string) {
	if s == nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.outcomes = append(s.outcomes, outcome{timestamp: now, model: model})
}

func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{ByModel: map[string]ModelCounts{}}
	if s == nil {
		return snap
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	for _, o := range s.outcomes {
		c := snap.ByModel[o.model]
		if o.ok {
			c.Successes++
		} else {
			c.Failures++
		}
		snap.ByModel[o.model] = c
	}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	keep := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[keep] = sm
			keep++
		}
	}
	s.samples = s.samples[:keep]

	keep = 0
	for _, o := range s.outcomes {
		if !o.timestamp.Before(cutoff) {
			s.outcomes[keep] = o
			keep++
		}
	}
	s.outcomes = s.outcomes[:keep]
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}
