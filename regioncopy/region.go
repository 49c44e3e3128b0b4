// Package regioncopy simulates the bounded, partially-failing
// cross-process copy engine of a KProcessHacker-style kernel driver
// (KphReadVirtualMemory/KphWriteVirtualMemory wrapping
// MmCopyVirtualMemory). A Region's []byte arena stands in for a foreign
// process's mapped address space, letting FairRWLock's shared/exclusive
// contract be exercised by realistic bounded copies without any
// platform-specific memory-mapping code.
package regioncopy

import (
	"sync/atomic"

	"github.com/llxisdsh/pb"
	"github.com/sysinspect/qrwlock"
)

// RegionID identifies a Region the way a process handle identifies a
// target address space.
type RegionID uint64

const (
	metaLargeCopyBit uint64 = 1 << 0
)

// Region is a lockable byte arena. Readers (CopyBounded's src side,
// snapshotting) take a shared lock; writers (CopyBounded's dst side,
// Resize) take an exclusive one.
type Region struct {
	id   RegionID
	mu   qrwlock.FairRWLock
	data []byte

	// meta packs flags outside mu's own state word, observable without
	// taking the lock at all. Only metaLargeCopyBit is used today.
	meta uint64

	// size publishes the current arena length for callers that want a
	// fast, lock-free read without contending on mu.
	size qrwlock.Published[int]
}

func newRegion(id RegionID, n int) *Region {
	r := &Region{id: id, data: make([]byte, n)}
	r.size.Store(n)
	return r
}

// ID returns the region's identity.
func (r *Region) ID() RegionID { return r.id }

// Len returns the region's current size without acquiring mu.
func (r *Region) Len() int { return r.size.Load() }

// LargeCopyInProgress reports whether a pooled (chunked) copy is
// currently writing into this region. It is a plain observational flag,
// not a second lock: only the goroutine already holding mu exclusively
// ever sets or clears it, so the bit-lock acquire in copyPooled never
// actually contends.
func (r *Region) LargeCopyInProgress() bool {
	return atomic.LoadUint64(&r.meta)&metaLargeCopyBit != 0
}

// RegionSet is the registry of live regions: a concurrent map keyed by
// RegionID, with registration and removal serialized per key by a
// TicketLockGroup-derived lock so two callers racing to create or
// destroy the same ID resolve in arrival order instead of a silent
// last-write-wins map race.
//
// aliases maps a human-readable name to a RegionID — standing in for the
// symbolic names a real introspection tool resolves to a handle (a
// process image name, say). It is guarded by RWLockGroup[string] rather
// than TicketLockGroup: name lookups (ResolveAlias) vastly outnumber
// name registrations (Alias/Unalias) in the intended usage, so shared
// readers should not serialize behind each other the way TicketLock's
// mutual exclusion would force.
type RegionSet struct {
	regions  pb.MapOf[RegionID, *Region]
	locks    qrwlock.TicketLockGroup[RegionID]
	creating qrwlock.OnceGroup[RegionID, *Region]
	nextID   atomic.Uint64

	aliasLocks qrwlock.RWLockGroup[string]
	aliases    pb.MapOf[string, RegionID]
}

// NewRegionSet returns an empty region registry.
func NewRegionSet() *RegionSet {
	return &RegionSet{}
}

// Create allocates a new, zeroed region of the given size and registers
// it under a freshly minted ID.
func (s *RegionSet) Create(size int) (*Region, RegionID) {
	id := RegionID(s.nextID.Add(1))
	r := newRegion(id, size)
	s.locks.Lock(id)
	s.store(id, r)
	s.locks.Unlock(id)
	return r, id
}

// Get looks up a region by ID.
func (s *RegionSet) Get(id RegionID) (*Region, bool) {
	return s.regions.Load(id)
}

// store registers r under id, overwriting any previous entry. It goes
// through ProcessEntry rather than a hypothetical Store method, matching
// the one map-mutation shape this module already relies on in
// oncegroup.go.
func (s *RegionSet) store(id RegionID, r *Region) {
	s.regions.ProcessEntry(
		id,
		func(_ *pb.EntryOf[RegionID, *Region]) (*pb.EntryOf[RegionID, *Region], *Region, bool) {
			return &pb.EntryOf[RegionID, *Region]{Value: r}, r, false
		},
	)
}

// GetOrCreate returns the region registered under id, allocating one of
// the given size if none exists yet. Concurrent callers racing on the
// same not-yet-created id are deduplicated: only one of them actually
// allocates and registers, the rest observe its result, the same
// singleflight shape OnceGroup gives the package's own internal call
// table.
func (s *RegionSet) GetOrCreate(id RegionID, size int) *Region {
	if r, ok := s.regions.Load(id); ok {
		return r
	}
	r, _, _ := s.creating.Do(id, func() (*Region, error) {
		s.locks.Lock(id)
		defer s.locks.Unlock(id)
		if r, ok := s.regions.Load(id); ok {
			return r, nil
		}
		r := newRegion(id, size)
		s.store(id, r)
		return r, nil
	})
	return r
}

// Remove unregisters id, if present.
func (s *RegionSet) Remove(id RegionID) {
	s.locks.Lock(id)
	s.regions.Delete(id)
	s.locks.Unlock(id)
}

// Alias binds name to id, overwriting any previous binding for that
// name. Held under an exclusive RWLockGroup lock on name.
func (s *RegionSet) Alias(name string, id RegionID) {
	s.aliasLocks.Lock(name)
	s.aliases.Store(name, id)
	s.aliasLocks.Unlock(name)
}

// Unalias removes name's binding, if any.
func (s *RegionSet) Unalias(name string) {
	s.aliasLocks.Lock(name)
	s.aliases.Delete(name)
	s.aliasLocks.Unlock(name)
}

// ResolveAlias looks up the region bound to name, if any. Held under a
// shared RWLockGroup lock on name, so concurrent resolutions of
// different (or even the same) name never block each other.
func (s *RegionSet) ResolveAlias(name string) (*Region, bool) {
	s.aliasLocks.RLock(name)
	id, ok := s.aliases.Load(name)
	s.aliasLocks.RUnlock(name)
	if !ok {
		return nil, false
	}
	return s.Get(id)
}
