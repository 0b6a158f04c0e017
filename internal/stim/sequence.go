package stim

// Sequence is a cyclic frame-position counter over a fixed-length code.
// index stays in [0, length); cycle increments exactly once per full
// traversal back to start and grows without bound until Reset.
//
// A Sequence is created per stage entry and mutated exclusively by the tick
// driver, so it needs no locking of its own.
type Sequence struct {
	length int
	start  int
	index  int
	cycle  int
}

// NewSequence creates a counter of the given length starting at frame 0.
func NewSequence(length int) *Sequence {
	return NewSequenceAt(length, 0)
}

// NewSequenceAt creates a counter starting at an arbitrary frame position.
func NewSequenceAt(length, start int) *Sequence {
	if length < 1 {
		length = 1
	}
	start = ((start % length) + length) % length
	return &Sequence{length: length, start: start, index: start}
}

// Next advances one frame, wrapping at the end of the code. Returns the new
// index. Wrapping back onto the start position counts one full cycle.
func (s *Sequence) Next() int {
	s.index = (s.index + 1) % s.length
	if s.index == s.start {
		s.cycle++
	}
	return s.index
}

// Prev steps one frame backwards with wraparound, counting cycles under the
// same wrap condition as Next.
func (s *Sequence) Prev() int {
	s.index = (s.index - 1 + s.length) % s.length
	if s.index == s.start {
		s.cycle++
	}
	return s.index
}

// Reset restores the counter to its start position and clears the cycle
// count. Idempotent.
func (s *Sequence) Reset() {
	s.index = s.start
	s.cycle = 0
}

func (s *Sequence) Index() int { return s.index }
func (s *Sequence) Cycle() int { return s.cycle }
func (s *Sequence) Len() int   { return s.length }
