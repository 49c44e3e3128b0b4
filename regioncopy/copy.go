package regioncopy

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sysinspect/qrwlock"
)

const (
	// mappedThreshold is the largest transfer copied directly with a
	// single copy() call while both locks are held, standing in for a
	// single MmCopyVirtualMemory call against a mapped view.
	mappedThreshold = 4096
	// poolChunkSize bounds the scratch buffer used by the pooled path,
	// so a single huge transfer can't pin an arbitrarily large temporary
	// allocation.
	poolChunkSize = 4096
)

var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, poolChunkSize)
		return &b
	},
}

// largeCopyPermits bounds how many pooled (chunked) copies can run at
// once across every Region, the same fairness concern FairSemaphore was
// built for: without it, a burst of large transfers could all pull a
// scratch buffer from the pool simultaneously with no ordering guarantee
// at all.
var largeCopyPermits = qrwlock.NewFairSemaphore(int64(max(1, runtime.GOMAXPROCS(0))))

// CopyBounded copies up to n bytes from src (at srcOff) into dst (at
// dstOff), clamping n to whatever actually fits in both arenas and
// reporting the number of bytes actually copied — the partial-copy
// accounting a real KphReadVirtualMemory-style call reports through its
// ReturnLength out-parameter.
//
// dst is locked exclusively (CopyBounded mutates it) and src is locked
// shared (CopyBounded only reads it), acquired in a fixed global order —
// whichever region has the lower ID locks first — to avoid the classic
// two-lock deadlock a naive "always lock dst then src" would invite when
// two goroutines copy in opposite directions between the same pair of
// regions.
func CopyBounded(dst, src *Region, dstOff, srcOff, n int) (copied int, err error) {
	if n < 0 || dstOff < 0 || srcOff < 0 {
		return 0, fmt.Errorf("regioncopy: negative offset or length")
	}

	if dst == src {
		dst.mu.AcquireExclusive()
		defer dst.mu.ReleaseExclusive()
		return copyBoundedLocked(dst, src, dstOff, srcOff, n)
	}

	if dst.id < src.id {
		dst.mu.AcquireExclusive()
		defer dst.mu.ReleaseExclusive()
		src.mu.AcquireShared()
		defer src.mu.ReleaseShared()
	} else {
		src.mu.AcquireShared()
		defer src.mu.ReleaseShared()
		dst.mu.AcquireExclusive()
		defer dst.mu.ReleaseExclusive()
	}

	return copyBoundedLocked(dst, src, dstOff, srcOff, n)
}

// copyBoundedLocked assumes dst is held exclusively and src is held
// (shared or exclusively, if dst == src) by the caller.
func copyBoundedLocked(dst, src *Region, dstOff, srcOff, n int) (int, error) {
	if dstOff > len(dst.data) || srcOff > len(src.data) {
		return 0, fmt.Errorf("regioncopy: offset out of range")
	}
	if n > len(dst.data)-dstOff {
		n = len(dst.data) - dstOff
	}
	if n > len(src.data)-srcOff {
		n = len(src.data) - srcOff
	}
	if n <= 0 {
		return 0, nil
	}

	if n <= mappedThreshold {
		return copy(dst.data[dstOff:dstOff+n], src.data[srcOff:srcOff+n]), nil
	}

	return copyPooled(dst, src, dstOff, srcOff, n)
}

// copyPooled moves a large transfer through poolChunkSize-sized
// sync.Pool-recycled scratch buffers, bounding peak temporary allocation
// the way a driver's pooled copy path does for transfers too big to
// justify mapping a full view.
func copyPooled(dst, src *Region, dstOff, srcOff, n int) (int, error) {
	largeCopyPermits.Acquire(1)
	defer largeCopyPermits.Release(1)

	qrwlock.BitLockUint64(&dst.meta, metaLargeCopyBit)
	defer qrwlock.BitUnlockUint64(&dst.meta, metaLargeCopyBit)

	copied := 0
	for copied < n {
		chunk := n - copied
		if chunk > poolChunkSize {
			chunk = poolChunkSize
		}

		bufp := scratchPool.Get().(*[]byte)
		buf := (*bufp)[:chunk]

		got := copy(buf, src.data[srcOff+copied:srcOff+copied+chunk])
		copy(dst.data[dstOff+copied:dstOff+copied+chunk], buf[:got])

		scratchPool.Put(bufp)
		copied += got
		// Unreachable here: bounds were clamped up front and the arena
		// cannot shrink while dst's exclusive lock is held. Kept because
		// the pooled protocol accounts for short chunks against a target
		// that can genuinely fault mid-transfer.
		if got < chunk {
			break
		}
	}
	return copied, nil
}

// Resize grows or shrinks the region's backing arena, preserving
// existing contents up to min(old, new) length. It blocks until it can
// take the region exclusively.
func (r *Region) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("regioncopy: negative size")
	}
	r.mu.AcquireExclusive()
	defer r.mu.ReleaseExclusive()
	r.resizeLocked(n)
	return nil
}

// TryResize is Resize but never blocks: it reports false immediately if
// the region is currently held by anyone else.
func (r *Region) TryResize(n int) (bool, error) {
	if n < 0 {
		return false, fmt.Errorf("regioncopy: negative size")
	}
	if !r.mu.TryAcquireExclusive() {
		return false, nil
	}
	defer r.mu.ReleaseExclusive()
	r.resizeLocked(n)
	return true, nil
}

func (r *Region) resizeLocked(n int) {
	grown := make([]byte, n)
	copy(grown, r.data)
	r.data = grown
	r.size.Store(n)
}
