package qrwlock

import (
	"runtime"
	"time"
	_ "unsafe" // for go:linkname
)

// DefaultSpinCount returns the spin budget a newly constructed FairRWLock
// uses when none is supplied: zero on a single-processor host (nothing to
// spin for — the only other runnable work is the releaser itself, which
// the scheduler will run as soon as this goroutine yields), and a small
// positive budget otherwise.
func DefaultSpinCount() int {
	if runtime.GOMAXPROCS(0) <= 1 {
		return 0
	}
	return 64
}

// spinHint issues one adaptive spin step: either a CPU-level spin
// instruction (while the runtime judges spinning worthwhile) or a short
// sleep-based backoff otherwise. runtime_canSpin/runtime_doSpin are the
// same linknames the standard library's own sync.Mutex uses internally.
func spinHint(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	time.Sleep(50 * time.Microsecond)
}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

//go:linkname runtime_canSpin sync.runtime_canSpin
func runtime_canSpin(i int) bool

//go:linkname runtime_doSpin sync.runtime_doSpin
func runtime_doSpin()
