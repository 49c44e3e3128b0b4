// Package qrwlock implements a fair, FIFO reader-writer lock over a single
// packed atomic state word, backed by an explicit waiter queue and a
// runtime-semaphore parking primitive. It is a reimplementation of the
// kernel-mode PH_QUEUED_LOCK design: a lock-free fast path for the
// uncontended case, adaptive spinning before a contended caller pays for
// the queue, and strict FIFO ordering with exclusive precedence once a
// caller does enqueue.
package qrwlock

import (
	"sync/atomic"
)

// state word bit layout, packed so a single CAS observes ownership,
// waiter presence, and the shared count together.
const (
	rwOwned       uint32 = 1 << 0
	rwWaiters     uint32 = 1 << 1
	rwSharedShift        = 2
	rwSharedUnit  uint32 = 1 << rwSharedShift
)

func sharedCount(v uint32) uint32 { return v >> rwSharedShift }

// FairRWLock is a reader-writer lock that serves exclusive and shared
// acquirers in strict FIFO order within each class, with exclusive
// waiters always preceding shared waiters in the queue.
//
// The zero value is a valid, unlocked FairRWLock with a default spin
// budget (DefaultSpinCount). Use NewFairRWLock to pick an explicit spin
// count. A FairRWLock must not be copied after first use.
type FairRWLock struct {
	_ noCopy

	state atomic.Uint32
	event atomic.Pointer[keyedEvent]

	queue     waitQueue
	queueInit atomic.Bool

	spin int // <=0 means "use DefaultSpinCount()"

	// wakes counts completed Unblock calls. It exists purely as a
	// deterministic instrumentation hook for tests and harnesses,
	// observed via WaitForWakes — polling Owned()/SharedOwners() in a
	// loop would work too, but would race against exactly the scheduling
	// nondeterminism the hook is meant to factor out.
	wakes Epoch
}

// NewFairRWLock constructs a FairRWLock with an explicit spin budget.
// A non-positive spin resolves to DefaultSpinCount() lazily on first use,
// the same default the zero value uses.
func NewFairRWLock(spin int) *FairRWLock {
	return &FairRWLock{spin: spin}
}

func (l *FairRWLock) spinBudget() int {
	if l.spin > 0 {
		return l.spin
	}
	return DefaultSpinCount()
}

func (l *FairRWLock) ensureQueueInit() {
	if l.queueInit.Load() {
		return
	}
	l.queue.mu.Lock()
	if !l.queueInit.Load() {
		l.queue.init()
		l.queueInit.Store(true)
	}
	l.queue.mu.Unlock()
}

// WaitForWakes blocks until this lock has completed at least n Unblock
// calls since construction. It exists for tests (rwlock_test.go), which
// need to observe "a release's wake has actually landed" without sleeping
// and without racing the thing being tested.
func (l *FairRWLock) WaitForWakes(n uint32) {
	l.wakes.WaitAtLeast(n)
}

// Owned reports whether the lock is currently held, exclusively or
// shared.
func (l *FairRWLock) Owned() bool {
	return l.state.Load()&rwOwned != 0
}

// SharedOwners reports the current shared-owner count. It is 0 whenever
// the lock is unheld or held exclusively.
func (l *FairRWLock) SharedOwners() uint32 {
	return sharedCount(l.state.Load())
}

// Snapshot reports the lock's held state and shared-owner count from a
// single atomic load of the packed state word. Owned and SharedOwners
// each take their own load, so a checker comparing the two could tear
// across a concurrent transition and see a state the lock was never in;
// invariant checks need the packed word observed whole — the same reason
// the word is packed in the first place.
func (l *FairRWLock) Snapshot() (owned bool, sharedOwners uint32) {
	v := l.state.Load()
	return v&rwOwned != 0, sharedCount(v)
}

// Waiting reports whether at least one goroutine is currently enqueued
// on the lock. Like WaitForWakes, it exists for scenario harnesses that
// need to observe a specific point in the lock's protocol — here, "a
// waiter has actually enqueued" — without sleeping and guessing.
func (l *FairRWLock) Waiting() bool {
	return l.state.Load()&rwWaiters != 0
}

// QueuedWaiters reports how many wait blocks are currently enqueued. It
// takes the queue spinlock to count, so it is strictly an instrumentation
// hook for tests and scenario harnesses that must confirm "waiter k has
// actually joined the queue" before arranging the next step of an
// interleaving — the Waiters bit alone cannot distinguish the first
// enqueued waiter from the fifth.
func (l *FairRWLock) QueuedWaiters() int {
	l.ensureQueueInit()
	l.queue.mu.Lock()
	n := 0
	for cur := l.queue.sentinel.flink; cur != &l.queue.sentinel; cur = cur.flink {
		n++
	}
	l.queue.mu.Unlock()
	return n
}

// ---------------------------------------------------------------------
// Fast paths. Each returns false without side effects
// when the fast condition does not hold; callers fall through to the
// adaptive-spin / enqueue slow path.
// ---------------------------------------------------------------------

func (l *FairRWLock) tryAcquireExclusiveFast() bool {
	for {
		v := l.state.Load()
		if v&rwOwned != 0 {
			return false
		}
		if l.state.CompareAndSwap(v, v+rwOwned) {
			return true
		}
	}
}

func (l *FairRWLock) tryAcquireSharedFast() bool {
	for {
		v := l.state.Load()
		if v&rwOwned == 0 {
			if l.state.CompareAndSwap(v, v+rwOwned+rwSharedUnit) {
				return true
			}
			continue
		}
		if v&rwWaiters == 0 && sharedCount(v) >= 1 {
			if l.state.CompareAndSwap(v, v+rwSharedUnit) {
				return true
			}
			continue
		}
		return false
	}
}

// tryConvertSharedToExclusiveFast succeeds only when the caller is the
// sole shared owner. It does not verify that the caller actually holds a
// shared lock at all — like every other operation here, that precondition
// is the caller's responsibility.
func (l *FairRWLock) tryConvertSharedToExclusiveFast() bool {
	for {
		v := l.state.Load()
		if sharedCount(v) != 1 {
			return false
		}
		if l.state.CompareAndSwap(v, v-rwSharedUnit) {
			return true
		}
	}
}

// ---------------------------------------------------------------------
// Acquire exclusive
// ---------------------------------------------------------------------

// AcquireExclusive blocks until the lock is held exclusively.
func (l *FairRWLock) AcquireExclusive() {
	l.acquireSlow(true, true, l.tryAcquireExclusiveFast)
}

// TryAcquireExclusive attempts to acquire the lock exclusively without
// blocking or enqueueing. It reports whether it succeeded.
func (l *FairRWLock) TryAcquireExclusive() bool {
	return l.tryAcquireExclusiveFast()
}

// SpinAcquireExclusive is AcquireExclusive but never parks: a waiter that
// must enqueue busy-waits on its own wait block instead of calling into
// the runtime's parking primitive.
func (l *FairRWLock) SpinAcquireExclusive() {
	l.acquireSlow(true, false, l.tryAcquireExclusiveFast)
}

// ReleaseExclusive releases a lock held exclusively by the caller.
func (l *FairRWLock) ReleaseExclusive() {
	for {
		v := l.state.Load()
		if v&rwOwned == 0 || sharedCount(v) != 0 {
			panic("qrwlock: ReleaseExclusive called without holding the lock exclusively")
		}
		if l.state.CompareAndSwap(v, v-rwOwned) {
			if v&rwWaiters != 0 {
				l.wake()
			}
			return
		}
	}
}

// ---------------------------------------------------------------------
// Acquire shared
// ---------------------------------------------------------------------

// AcquireShared blocks until the caller holds a shared lock.
func (l *FairRWLock) AcquireShared() {
	l.acquireSlow(false, true, l.tryAcquireSharedFast)
}

// TryAcquireShared attempts to acquire a shared lock without blocking or
// enqueueing. It reports whether it succeeded.
func (l *FairRWLock) TryAcquireShared() bool {
	return l.tryAcquireSharedFast()
}

// SpinAcquireShared is AcquireShared but never parks.
func (l *FairRWLock) SpinAcquireShared() {
	l.acquireSlow(false, false, l.tryAcquireSharedFast)
}

// ReleaseShared releases one shared ownership held by the caller.
//
// Every successful release — whether or not it is the last shared owner —
// wakes the queue head if the pre-image had Waiters=1: a release that
// observes waiters owes the queue a wake. In particular this is what
// lets ConvertSharedToExclusive's head-of-queue waiter recheck its fast
// path on every intervening shared release rather than only on the
// release that finally drops SharedCount to zero.
func (l *FairRWLock) ReleaseShared() {
	for {
		v := l.state.Load()
		sc := sharedCount(v)
		if v&rwOwned == 0 || sc == 0 {
			panic("qrwlock: ReleaseShared called without holding a shared lock")
		}
		var nv uint32
		if sc > 1 {
			nv = v - rwSharedUnit
		} else {
			nv = v - rwOwned - rwSharedUnit
		}
		if l.state.CompareAndSwap(v, nv) {
			if v&rwWaiters != 0 {
				l.wake()
			}
			return
		}
	}
}

// ---------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------

// ConvertExclusiveToShared demotes the caller's exclusive hold to a
// shared hold and wakes every queued shared waiter (never exclusive
// waiters, which stay queued at the head).
func (l *FairRWLock) ConvertExclusiveToShared() {
	for {
		v := l.state.Load()
		if v&rwOwned == 0 || sharedCount(v) != 0 {
			panic("qrwlock: ConvertExclusiveToShared called without holding the lock exclusively")
		}
		if l.state.CompareAndSwap(v, v+rwSharedUnit) {
			if v&rwWaiters != 0 {
				l.wakeShared()
			}
			return
		}
	}
}

// ConvertSharedToExclusive blocks until the caller, already a shared
// owner, becomes the lock's sole owner, then converts to exclusive
// ownership without an intervening release. A waiting converter is placed
// at the absolute head of the queue — ahead of every other waiter of
// either class — the one fairness exception that distinguishes
// conversion from releasing and reacquiring.
func (l *FairRWLock) ConvertSharedToExclusive() {
	l.convertSlow(true)
}

// SpinConvertSharedToExclusive is ConvertSharedToExclusive but never
// parks.
func (l *FairRWLock) SpinConvertSharedToExclusive() {
	l.convertSlow(false)
}

func (l *FairRWLock) convertSlow(sleep bool) {
	for {
		if l.tryConvertSharedToExclusiveFast() {
			return
		}

		var s int
		for i := 0; i < l.spinBudget(); i++ {
			if l.tryConvertSharedToExclusiveFast() {
				return
			}
			spinHint(&s)
		}

		l.enqueueAndBlock(true, true, sleep)
	}
}

// ---------------------------------------------------------------------
// Slow path: spin, enqueue, block, re-contend.
// ---------------------------------------------------------------------

// acquireSlow drives the common spin/enqueue/block/re-contend loop shared
// by AcquireExclusive and AcquireShared:
// try the fast path, spend the spin budget retrying it, and if that also
// fails, enqueue and block. Either way, loop back to the fast path — a
// wakeup or a lost Waiters-bit race both mean "re-contend," never "the
// lock is now yours."
func (l *FairRWLock) acquireSlow(exclusive, sleep bool, fastTry func() bool) {
	for {
		if fastTry() {
			return
		}

		var s int
		for i := 0; i < l.spinBudget(); i++ {
			if fastTry() {
				return
			}
			spinHint(&s)
		}

		l.enqueueAndBlock(exclusive, false, sleep)
	}
}

// enqueueAndBlock appends a new wait block for the caller (at the
// class-appropriate position) and blocks on it. It reports whether the
// caller actually enqueued: if the re-read of the state word under the
// queue spinlock shows the lock was concurrently released — or, for a
// conversion, that the caller has become the sole owner — or if the
// Waiters-bit CAS loses a race, it releases the queue spinlock and
// reports false so the caller restarts its full spin budget rather than
// retrying the enqueue in a tight loop.
//
// The released-lock check is load-bearing, not an optimization: a waiter
// that enqueues on an unheld lock parks with no releaser left to ever
// wake it. The CAS validates the check atomically — the Waiters bit is
// only published if the state word still matches the value the check
// approved.
func (l *FairRWLock) enqueueAndBlock(exclusive, atHead, sleep bool) bool {
	l.ensureQueueInit()

	w := newWaitBlock(exclusive)

	l.queue.mu.Lock()
	v := l.state.Load()
	stillContended := v&rwOwned != 0
	if atHead {
		// Converting caller: it is itself one of the shared owners, so a
		// wake can only come from one of the others. Parking as the sole
		// owner would wait on a release that cannot happen.
		stillContended = sharedCount(v) >= 2
	}
	if !stillContended || !l.state.CompareAndSwap(v, v|rwWaiters) {
		l.queue.mu.Unlock()
		return false
	}

	switch {
	case atHead:
		l.queue.insertFirst(w)
	case exclusive:
		l.queue.insertLastExclusive(w)
	default:
		l.queue.insertLast(w)
	}
	l.queue.mu.Unlock()

	w.block(l, sleep)
	return true
}

// ---------------------------------------------------------------------
// Wake paths.
// ---------------------------------------------------------------------

// wake is the generic wake routine used by ReleaseExclusive and
// ReleaseShared. If the queue is empty it clears the Waiters bit and
// returns. Otherwise it serves exactly the head of the queue: one
// exclusive waiter alone, or the entire contiguous run of shared waiters
// starting at the head (and no further, since an exclusive waiter would
// terminate the run). It leaves Waiters set whenever it dequeues
// anything — the bit is cleared only when the queue is observed empty,
// since a remaining or freshly enqueued waiter may still need the next
// release to look at the queue.
func (l *FairRWLock) wake() {
	l.queue.mu.Lock()
	if l.queue.empty() {
		// Clear while still holding the spinlock: an enqueuer sets the
		// bit under this same lock, so clearing it after unlocking could
		// erase a bit a concurrent enqueuer just set for a freshly queued
		// waiter nobody would ever wake.
		l.clearWaitersBit()
		l.queue.mu.Unlock()
		return
	}

	head := l.queue.sentinel.flink
	if head.exclusive() {
		l.queue.unlink(head)
		l.queue.mu.Unlock()
		head.unblock(l)
		l.wakes.Add(1)
		return
	}

	woken := l.queue.drainSharedPrefix(head)
	l.queue.mu.Unlock()

	for _, w := range woken {
		w.unblock(l)
	}
	l.wakes.Add(uint32(len(woken)))
}

// wakeShared is used only by ConvertExclusiveToShared: it wakes every
// queued shared waiter (via FirstShared, so it never touches the
// exclusive waiters that precede them) and leaves exclusive waiters
// exactly where they are, still at the head of the queue.
func (l *FairRWLock) wakeShared() {
	l.queue.mu.Lock()
	var woken []*waitBlock
	for cur := l.queue.firstShared; cur != &l.queue.sentinel; {
		next := cur.flink
		l.queue.unlink(cur)
		woken = append(woken, cur)
		cur = next
	}
	l.queue.firstShared = &l.queue.sentinel
	if l.queue.empty() {
		// Same rule as wake: the clear must happen under the spinlock so
		// it cannot race a concurrent enqueuer's set.
		l.clearWaitersBit()
	}
	l.queue.mu.Unlock()

	for _, w := range woken {
		w.unblock(l)
	}
	l.wakes.Add(uint32(len(woken)))
}

func (l *FairRWLock) clearWaitersBit() {
	for {
		v := l.state.Load()
		if v&rwWaiters == 0 {
			return
		}
		if l.state.CompareAndSwap(v, v&^rwWaiters) {
			return
		}
	}
}
