package app

import "sync"

// Sequencer hands out monotonically increasing tokens per key so a caller can
// tell whether the work it started is still the most recent for that key.
type Sequencer struct {
	mu   sync.Mutex
	last map[string]uint64
	next uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[string]uint64)}
}

// Begin issues a new token for key, superseding every earlier one.
func (s *Sequencer) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.last[key] = s.next
	return s.next
}

// End reports whether tok is still the most recent token issued for key, and
// forgets key when it is, so finished keys don't accumulate.
func (s *Sequencer) End(key string, tok uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last[key] != tok {
		return false
	}
	delete(s.last, key)
	return true
}
