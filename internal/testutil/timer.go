package testutil

import (
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// InstantTimer is a backoff.Timer that fires as soon as it starts and keeps
// every wait it was asked for.
type InstantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

var _ backoff.Timer = (*InstantTimer)(nil)

func NewInstantTimer() *InstantTimer {
	return &InstantTimer{}
}

func (t *InstantTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *InstantTimer) Stop() {}

func (t *InstantTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}

// Waits returns the requested delays in order.
func (t *InstantTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}
