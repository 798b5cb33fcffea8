package chrono

import (
	"sync"
	"time"
)

type API interface {
	Now() time.Time
}

// StandardImpl is the wall clock.
type StandardImpl struct{}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

// FakeImpl is a manually advanced clock for tests.
type FakeImpl struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeImpl(start time.Time) *FakeImpl {
	return &FakeImpl{now: start}
}

func (f *FakeImpl) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeImpl) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// OrDefault returns clock, or StandardImpl if clock is nil.
func OrDefault(clock API) API {
	if clock == nil {
		return StandardImpl{}
	}
	return clock
}
