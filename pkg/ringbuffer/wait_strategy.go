package ringbuffer

import (
	"runtime"
	"time"
)

// WaitStrategy controls how producers and consumers spin while waiting
// for a sequence to become available.
type WaitStrategy interface {
	Wait()
}

// YieldingWaitStrategy yields the processor on every spin.
// Low latency, burns a core under sustained contention.
type YieldingWaitStrategy struct{}

func (*YieldingWaitStrategy) Wait() {
	runtime.Gosched()
}

// SleepingWaitStrategy yields a few times, then sleeps.
// Trades latency for CPU when the ring is mostly idle.
type SleepingWaitStrategy struct {
	spins int
}

func (s *SleepingWaitStrategy) Wait() {
	if s.spins < 100 {
		s.spins++
		runtime.Gosched()
		return
	}
	s.spins = 0
	time.Sleep(time.Millisecond)
}
