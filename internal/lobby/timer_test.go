package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerSlot_ArmReplacesPending(t *testing.T) {
	var s timerSlot
	fired := make(chan uint64, 2)

	first := s.arm(time.Hour, func(gen uint64) { fired <- gen })
	second := s.arm(10*time.Millisecond, func(gen uint64) { fired <- gen })
	assert.NotEqual(t, first, second)
	assert.False(t, s.current(first))

	select {
	case gen := <-fired:
		assert.Equal(t, second, gen)
		assert.True(t, s.current(gen))
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerSlot_StopInvalidatesGeneration(t *testing.T) {
	var s timerSlot
	gen := s.arm(0, func(uint64) {})
	s.stop()
	assert.False(t, s.current(gen))
}
