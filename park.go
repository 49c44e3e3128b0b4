package qrwlock

import (
	_ "unsafe" // for go:linkname
)

// keyedEvent is the parking primitive standing in for the keyed event
// PH_QUEUED_LOCK parks its waiters on: wait(key) blocks the calling
// goroutine until some other goroutine calls release(key), with
// one-to-one match semantics. The Go runtime already provides exactly
// this facility keyed by the address of a uint32 word
// (sync.runtime_Semacquire/Semrelease, the same primitive sync.Mutex
// parks on) — reached via go:linkname, the same way internal/opt.Sema
// and fair_semaphore.go reach it.
//
// Each wait block owns its own word (waitBlock.sema), so "one waiter per
// key at a time" is automatic: the key's address is the address of a
// field on that goroutine's own wait block.
//
// keyedEvent itself carries no state; it exists so a FairRWLock's lazy,
// double-checked-CAS install of its wake facility has a concrete object
// to install, keeping PH_QUEUED_LOCK's "create on first park, discard if
// raced" protocol rather than calling the runtime primitives directly
// from rwlock.go.
type keyedEvent struct{}

func newKeyedEvent() *keyedEvent { return &keyedEvent{} }

// wait blocks until release is called with the address of the same key.
func (*keyedEvent) wait(key *uint32) {
	runtime_semacquire(key)
}

// release wakes the single waiter parked on key, if any arrives. Matches
// runtime_Semrelease's handoff=false mode: the woken goroutine re-contends
// for the scheduler rather than being handed it directly, since the lock
// itself (not the OS scheduler) is what decides who proceeds next.
func (*keyedEvent) release(key *uint32) {
	runtime_semrelease(key, false, 0)
}

//go:linkname runtime_semacquire sync.runtime_Semacquire
func runtime_semacquire(s *uint32)

//go:linkname runtime_semrelease sync.runtime_Semrelease
func runtime_semrelease(s *uint32, handoff bool, skipframes int)

// ensureEvent returns the lock's installed keyedEvent, installing one on
// first use via double-checked CAS. Losing the race discards the local
// event and adopts the winner's — here "discard" is simply "let the GC
// collect it," since keyedEvent holds no OS resource.
func (l *FairRWLock) ensureEvent() *keyedEvent {
	if e := l.event.Load(); e != nil {
		return e
	}
	e := newKeyedEvent()
	if l.event.CompareAndSwap(nil, e) {
		return e
	}
	return l.event.Load()
}
