package qrwlock

import "sync/atomic"

// noCopy may be embedded in structs which must not be copied after first
// use. It is picked up by `go vet`'s -copylocks checker.
//
// See https://golang.org/issues/8005#issuecomment-190753527 for details.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// delay performs one adaptive backoff step: a CPU spin instruction while
// the runtime judges spinning worthwhile, otherwise a short sleep. Shared
// by every spin loop in this package (TicketLock, BitLock, Rally, ...) so
// that all of them back off the same way under contention.
func delay(spins *int) {
	spinHint(spins)
}

//go:nosplit
func loadUint32Fast(addr *uint32) uint32 {
	return atomic.LoadUint32(addr)
}

//go:nosplit
func loadUint64Fast(addr *uint64) uint64 {
	return atomic.LoadUint64(addr)
}

//go:nosplit
func loadUintptrFast(addr *uintptr) uintptr {
	return atomic.LoadUintptr(addr)
}
