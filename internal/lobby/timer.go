package lobby

import "time"

// timerSlot holds at most one pending deadline. Arming replaces whatever was
// pending; a callback from a replaced or stopped timer carries an old
// generation and is recognised by current.
type timerSlot struct {
	t   *time.Timer
	gen uint64
}

func (s *timerSlot) arm(d time.Duration, fire func(gen uint64)) uint64 {
	s.stop()
	gen := s.gen
	s.t = time.AfterFunc(max(d, 0), func() { fire(gen) })
	return gen
}

func (s *timerSlot) stop() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.gen++
}

func (s *timerSlot) current(gen uint64) bool {
	return s.t != nil && gen == s.gen
}
