// Package clock is injectable time source for control loop delays.
package clock

import (
	"sync"
	"time"

	"github.com/temoto/atomic_clock"
)

type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type System struct{}

func (System) Now() time.Time        { return time.Now() }
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is simulated time: Sleep advances clock instantly and is recorded.
// elapsed holds virtual nanoseconds since start.
type Fake struct {
	start   time.Time
	zero    *atomic_clock.Clock
	elapsed *atomic_clock.Clock
	mu      sync.Mutex
	sleeps  []time.Duration
}

func NewFake(start time.Time) *Fake {
	return &Fake{start: start, zero: atomic_clock.New(), elapsed: atomic_clock.New()}
}

func (self *Fake) Now() time.Time { return self.start.Add(self.Elapsed()) }

// Elapsed is virtual time passed since NewFake.
func (self *Fake) Elapsed() time.Duration { return self.elapsed.Sub(self.zero) }

func (self *Fake) Sleep(d time.Duration) {
	self.mu.Lock()
	self.sleeps = append(self.sleeps, d)
	self.mu.Unlock()
	self.Advance(d)
}

func (self *Fake) Advance(d time.Duration) {
	self.mu.Lock()
	self.elapsed.Set(int64(self.Elapsed() + d))
	self.mu.Unlock()
}

func (self *Fake) Sleeps() []time.Duration {
	self.mu.Lock()
	defer self.mu.Unlock()
	r := make([]time.Duration, len(self.sleeps))
	copy(r, self.sleeps)
	return r
}

func (self *Fake) Slept() time.Duration {
	self.mu.Lock()
	defer self.mu.Unlock()
	var total time.Duration
	for _, d := range self.sleeps {
		total += d
	}
	return total
}

func (self *Fake) Reset() {
	self.mu.Lock()
	self.sleeps = nil
	self.mu.Unlock()
}
