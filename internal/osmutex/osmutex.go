// Package osmutex abstracts the RTOS recursive-mutex primitive that sheap
// and stackguard serialise their mutating entry points on. In a "no OS"
// build there is no scheduler to block on, so the package degrades to a
// pair of re-entry guards instead (see ReentryGuard).
package osmutex

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned by Acquire when the configured wait-tick budget
// elapses before the mutex becomes available.
var ErrTimeout = errors.New("osmutex: acquire timed out")

// Mutex is an exclusion primitive with a bounded wait. It is not
// recursive: a second Acquire before the matching Release blocks (and,
// with a wait budget, fails with ErrTimeout) even when made by the same
// caller. Callers acquire once per entry point and release on every exit
// path via Release (or the Acquired helper's returned release func).
//
// The RTOS binding is modelled with a weighted semaphore of weight one:
// unlike sync.Mutex, semaphore.Weighted.Acquire takes a context, which is
// what lets Acquire honour a tick-denominated timeout the way a real RTOS
// mutex wait would.
type Mutex struct {
	sem       *semaphore.Weighted
	waitTicks time.Duration
}

// New creates a Mutex whose Acquire call times out after waitTicks. A
// waitTicks of zero means "wait forever", matching the embedded
// convention where a zero tick budget is treated as an infinite wait.
func New(waitTicks time.Duration) *Mutex {
	return &Mutex{
		sem:       semaphore.NewWeighted(1),
		waitTicks: waitTicks,
	}
}

// Acquire blocks until the mutex is free or the wait-tick budget elapses.
func (m *Mutex) Acquire(ctx context.Context) error {
	if m.waitTicks <= 0 {
		return m.sem.Acquire(ctx, 1)
	}

	ctx, cancel := context.WithTimeout(ctx, m.waitTicks)
	defer cancel()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return ErrTimeout
	}

	return nil
}

// Release releases the mutex. Calling Release without a matching Acquire
// is a programmer error and panics, the same as an RTOS mutex that
// rejects release-without-ownership.
func (m *Mutex) Release() {
	m.sem.Release(1)
}

// Acquired acquires m and returns a release function intended to be used
// with defer at the top of every mutating entry point, guaranteeing
// release on every return path including early error returns.
func (m *Mutex) Acquired(ctx context.Context) (release func(), err error) {
	if err := m.Acquire(ctx); err != nil {
		return func() {}, err
	}

	return m.Release, nil
}
