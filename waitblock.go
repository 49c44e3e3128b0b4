package qrwlock

import (
	"sync/atomic"

	"github.com/sysinspect/qrwlock/internal/opt"
)

// waitBlock flags.
const (
	wbExclusive uint32 = 1 << 0 // this waiter wants exclusive ownership
	wbSpinning  uint32 = 1 << 1 // rendezvous token, see Block/Unblock below
)

// waitBlock is a node in the lock's intrusive waiter queue, owned by
// exactly one blocked goroutine and allocated by it for the duration of
// its wait.
// It is padded to its own cache line: a spinning waiter repeatedly polls
// flags while its eventual waker writes to the very same field from a
// different core, and flink/blink are read/written by every other
// enqueuer and dequeuer holding the queue spinlock. Letting those two
// access patterns share a cache line with a neighboring wait block would
// manufacture false-sharing contention that has nothing to do with the
// lock itself.
type waitBlock struct {
	_ noCopy

	flink, blink *waitBlock
	flags        atomic.Uint32
	sema         uint32 // park/release key; see keyedEvent

	_ [opt.CacheLineSize_]byte
}

func newWaitBlock(exclusive bool) *waitBlock {
	w := &waitBlock{}
	f := wbSpinning
	if exclusive {
		f |= wbExclusive
	}
	w.flags.Store(f)
	return w
}

func (w *waitBlock) exclusive() bool {
	return w.flags.Load()&wbExclusive != 0
}

// clearFlag atomically clears mask from flags and returns the value flags
// held immediately before the clear. sync/atomic's Uint32 has no built-in
// bitwise And, so this loops on CompareAndSwap the same way every other
// read-modify-write in this package does.
func clearFlag(flags *atomic.Uint32, mask uint32) uint32 {
	for {
		v := flags.Load()
		if flags.CompareAndSwap(v, v&^mask) {
			return v
		}
	}
}

// Block waits for w to be woken, spinning for up to spinCount iterations
// before optionally parking.
//
// The Spinning flag is the rendezvous token between this goroutine and
// whichever goroutine eventually calls unblock(w). Both sides clear it;
// exactly one of the two clears observes the 1→0 transition, and that
// observation decides everything:
//
//   - waiter's clear observes 1: the waiter committed to waiting before
//     the waker arrived. It parks; the waker's later clear will observe
//     0 and send the one matching release.
//   - waker's clear observes 1: the waiter had not yet committed. The
//     waiter's own clear (or its next flags poll) observes 0 and returns
//     without parking; neither side makes an OS call.
//
// So the waiter parks iff its clear saw the bit still set — the same
// polarity PH_QUEUED_LOCK's block routine uses, which looks backwards at
// first sight. Derived from scratch it is not: it is only half of a
// two-sided rule whose other half is unblock's "release iff my clear saw
// the bit already gone." Together they give at most one park and at most
// one release per wait block, and never a park without its release. The
// seemingly intuitive opposite (park iff the waker already raced past)
// would have the waiter consume a release the waker, under this unblock
// rule, never sends.
func (w *waitBlock) block(l *FairRWLock, sleep bool) {
	var s int
	for i := 0; i < l.spinBudget(); i++ {
		if w.flags.Load()&wbSpinning == 0 {
			return
		}
		spinHint(&s)
	}

	if !sleep {
		var s int
		for w.flags.Load()&wbSpinning != 0 {
			spinHint(&s)
		}
		return
	}

	event := l.ensureEvent()
	if clearFlag(&w.flags, wbSpinning)&wbSpinning != 0 {
		// Our own clear found the bit still set: we committed first.
		// unblock will run later, find it already clear, and release us.
		// Park now and wait for that release.
		event.wait(&w.sema)
	}
	// Else: our clear found the bit already cleared — unblock beat us to
	// it and decided not to release (see unblock below), because at the
	// time it ran we had not yet committed to waiting. Nothing left to
	// do; w has already been dequeued by the waker.
}

// unblock clears w's Spinning flag from the waker's side. If its clear
// finds the bit already cleared, the waiter committed first and is parked
// (or irrevocably about to park), so exactly one release must reach it.
// If the clear finds the bit still set, the waker moved first: the
// waiter's own block will observe Spinning==0 and return without ever
// calling wait, so no release is owed.
func (w *waitBlock) unblock(l *FairRWLock) {
	prev := clearFlag(&w.flags, wbSpinning)
	if prev&wbSpinning == 0 {
		// Spinning was already 0: the waiter cleared it first and is
		// parked (or about to call wait). We owe it a release.
		l.ensureEvent().release(&w.sema)
	}
	// Else: we cleared it first. The waiter will observe Spinning==0 on
	// its own poll and return without ever parking; no release is owed.
}
