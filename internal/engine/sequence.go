package engine

import "sync/atomic"

// Sequence hands out monotonic counters for order arrival ordering and
// trade sequence numbers (Trade.Seq, carried beside the wall-clock
// Timestamp). Wall-clock ties are possible, counter ties are not.
type Sequence struct {
	counter atomic.Uint64
}

func (s *Sequence) Next() uint64 {
	return s.counter.Add(1)
}
