package qrwlock

import "github.com/llxisdsh/pb"

// TicketLockGroup allows locking on arbitrary keys (string, int, struct, etc.).
// It dynamically manages a set of locks associated with values.
//
// Features:
//   - Infinite Keys: No need to pre-allocate locks.
//   - Auto-Cleanup: Locks are automatically removed from memory when unlocked and no one else is waiting.
//   - Low Overhead: backed by pb.MapOf, the same sharded concurrent map OnceGroup uses.
//
// Usage:
//
//	var group TicketLockGroup[string]
//	group.Lock("user-123")
//	// Critical section for user-123
//	group.Unlock("user-123")
//
// Implementation Note:
// It uses reference counting to safely delete entries.
type TicketLockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *lockGroupEntry]
}

type lockGroupEntry struct {
	mu  TicketLock
	ref int32
}

func (g *TicketLockGroup[K]) Lock(k K) {
	var v *lockGroupEntry
	g.m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *lockGroupEntry]) (*pb.EntryOf[K, *lockGroupEntry], *lockGroupEntry, bool) {
			if e != nil {
				e.Value.ref++
				v = e.Value
				return e, v, true
			}
			v = &lockGroupEntry{ref: 1}
			return &pb.EntryOf[K, *lockGroupEntry]{Value: v}, v, false
		},
	)
	v.mu.Lock()
}

func (g *TicketLockGroup[K]) Unlock(k K) {
	v, ok := g.m.Load(k)
	if !ok {
		return
	}
	v.mu.Unlock()

	g.m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *lockGroupEntry]) (*pb.EntryOf[K, *lockGroupEntry], *lockGroupEntry, bool) {
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
