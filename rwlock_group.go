package qrwlock

import "github.com/llxisdsh/pb"

// RWLockGroup allows fair reader-writer locking on arbitrary keys, backed
// by a FairRWLock per key instead of the package's other group type's
// TicketLock.
//
// Features:
//   - RLock/RUnlock for shared read access.
//   - Lock/Unlock for exclusive write access.
//   - Infinite Keys & Auto-Cleanup.
//
// Usage:
//
//	var group RWLockGroup[string]
//
//	// Readers
//	group.RLock("config")
//	read(config)
//	group.RUnlock("config")
//
//	// Writer
//	group.Lock("config")
//	write(config)
//	group.Unlock("config")
type RWLockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *rwLockGroupEntry]
}

type rwLockGroupEntry struct {
	mu  FairRWLock
	ref int32
}

func (g *RWLockGroup[K]) acquire(k K) *rwLockGroupEntry {
	var v *rwLockGroupEntry
	g.m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *rwLockGroupEntry]) (*pb.EntryOf[K, *rwLockGroupEntry], *rwLockGroupEntry, bool) {
			if e != nil {
				e.Value.ref++
				v = e.Value
				return e, v, true
			}
			v = &rwLockGroupEntry{ref: 1}
			return &pb.EntryOf[K, *rwLockGroupEntry]{Value: v}, v, false
		},
	)
	return v
}

func (g *RWLockGroup[K]) release(k K) {
	g.m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *rwLockGroupEntry]) (*pb.EntryOf[K, *rwLockGroupEntry], *rwLockGroupEntry, bool) {
			if e == nil {
				return nil, nil, false
			}
			e.Value.ref--
			if e.Value.ref <= 0 {
				return nil, nil, true
			}
			return e, e.Value, true
		},
	)
}

func (g *RWLockGroup[K]) Lock(k K) {
	g.acquire(k).mu.AcquireExclusive()
}

func (g *RWLockGroup[K]) Unlock(k K) {
	v, ok := g.m.Load(k)
	if !ok {
		return
	}
	v.mu.ReleaseExclusive()
	g.release(k)
}

func (g *RWLockGroup[K]) RLock(k K) {
	g.acquire(k).mu.AcquireShared()
}

func (g *RWLockGroup[K]) RUnlock(k K) {
	v, ok := g.m.Load(k)
	if !ok {
		return
	}
	v.mu.ReleaseShared()
	g.release(k)
}
