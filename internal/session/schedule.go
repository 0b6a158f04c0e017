package session

import (
	"math/rand"

	"github.com/samber/lo"
)

// BuildSchedule returns the balanced shuffled calibration schedule: the
// target index list is repeated until it covers blocks draws, shuffled, and
// trimmed to exactly blocks entries, so target counts differ by at most one.
func BuildSchedule(targets, blocks int, rng *rand.Rand) []int {
	if targets < 1 || blocks < 1 {
		return nil
	}
	reps := (blocks + targets - 1) / targets
	sched := make([]int, 0, reps*targets)
	for r := 0; r < reps; r++ {
		for t := 0; t < targets; t++ {
			sched = append(sched, t)
		}
	}
	rng.Shuffle(len(sched), func(i, j int) {
		sched[i], sched[j] = sched[j], sched[i]
	})
	return sched[:blocks]
}

// randomCues draws n cue targets uniformly. Repeats are allowed.
func randomCues(n, targets int, rng *rand.Rand) []int {
	return lo.Times(n, func(int) int {
		return rng.Intn(targets)
	})
}

// divergence returns the first position where the predicted list stops
// matching the target sequence, or len(preds) when preds is a clean prefix.
func divergence(preds, seq []int) int {
	for i, p := range preds {
		if i >= len(seq) || p != seq[i] {
			return i
		}
	}
	return len(preds)
}

// truncateBackspace removes the two most recent entries of the predicted
// list; the sentinel itself is never stored. [0,1] collapses to [], not [0].
func truncateBackspace(preds []int) []int {
	if len(preds) <= 2 {
		return preds[:0]
	}
	return preds[:len(preds)-2]
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
