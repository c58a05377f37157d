package osmutex

import "sync/atomic"

// ReentryGuard is the no-OS substitute for Mutex: a single in-flight-call
// token rather than a scheduler-aware wait. It exists because a "no OS"
// build has no mutex to block on, only the ability to detect that the
// same non-reentrant region was entered twice — typically because an
// interrupt handler called into sheap while the main line of execution
// was already inside it.
//
// Unlike the two bare booleans (allocBusy/freeBusy) the source uses, the
// guard is a single CAS-guarded token: TryEnter either claims exclusive
// occupancy or reports that the region is already occupied, and there is
// no way to call Exit without having called TryEnter first.
type ReentryGuard struct {
	occupied atomic.Bool
}

// TryEnter attempts to claim the guard. It returns an Exit function and
// true on success; on failure (already occupied) it returns a no-op
// function and false, and the caller must report the appropriate overlap
// kind (MallocCallOverlap / FreeCallOverlap) without mutating state.
func (g *ReentryGuard) TryEnter() (exit func(), entered bool) {
	if !g.occupied.CompareAndSwap(false, true) {
		return func() {}, false
	}

	return func() { g.occupied.Store(false) }, true
}
