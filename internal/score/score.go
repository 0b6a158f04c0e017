// Package score accumulates per-block hit/latency pairs and summarizes them
// at stage end.
package score

import (
	"math"
	"sync"

	"bvep.dev/stimulus-next/internal/pkg/errs"
)

// DefaultRefreshHz is the assumed display refresh rate used to convert
// latency frames into milliseconds. It is a fixed protocol constant,
// deliberately not derived from the measured tick rate; the conversion is a
// known approximation.
const DefaultRefreshHz = 60.0

type trial struct {
	hit     int
	latency int
}

// Score is an append-only list of trial blocks. A new block is opened
// explicitly with Block; Trial appends to the most recently opened block.
// Blocks are never deleted.
type Score struct {
	mu        sync.Mutex
	refreshHz float64
	blocks    [][]trial
}

func New(refreshHz float64) *Score {
	if refreshHz <= 0 {
		refreshHz = DefaultRefreshHz
	}
	return &Score{refreshHz: refreshHz}
}

// Block opens a new empty block. Chainable.
func (s *Score) Block() *Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, nil)
	return s
}

// Trial appends a (hit, latencyFrames) pair to the most recently opened
// block. Calling Trial before Block is a logic bug and fails fast.
func (s *Score) Trial(hit bool, latencyFrames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) == 0 {
		return errs.NewInvalidState("score: trial recorded before any block was opened")
	}
	h := 0
	if hit {
		h = 1
	}
	last := len(s.blocks) - 1
	s.blocks[last] = append(s.blocks[last], trial{hit: h, latency: latencyFrames})
	return nil
}

// Stats computes hit rate and classification time per block and over the
// concatenation of all blocks. Empty blocks yield NaN, which serializes to
// JSON null.
func (s *Score) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []trial
	hitBlocks := make([]Rate, 0, len(s.blocks))
	timeBlocks := make([]Rate, 0, len(s.blocks))
	for _, b := range s.blocks {
		hitBlocks = append(hitBlocks, hitRate(b))
		timeBlocks = append(timeBlocks, s.classificationTime(b))
		all = append(all, b...)
	}

	return Stats{
		HitRate: Metric{
			Blocks:  hitBlocks,
			Average: hitRate(all),
		},
		ClassificationTime: Metric{
			Blocks:  timeBlocks,
			Average: s.classificationTime(all),
		},
	}
}

func hitRate(trials []trial) Rate {
	if len(trials) == 0 {
		return Rate(math.NaN())
	}
	hits := 0
	for _, t := range trials {
		hits += t.hit
	}
	return Rate(100 * float64(hits) / float64(len(trials)))
}

// classificationTime is the mean decision latency in milliseconds, converting
// frames at the fixed refresh rate.
func (s *Score) classificationTime(trials []trial) Rate {
	if len(trials) == 0 {
		return Rate(math.NaN())
	}
	sum := 0
	for _, t := range trials {
		sum += t.latency
	}
	mean := float64(sum) / float64(len(trials))
	return Rate(mean * 1000 / s.refreshHz)
}
