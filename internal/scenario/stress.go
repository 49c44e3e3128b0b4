package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sysinspect/qrwlock"
	"github.com/sysinspect/qrwlock/regioncopy"
)

// StressConfig tunes the randomized property harness: how many workers
// feed randomized acquire/release interleavings through the lock, for
// how long, with the state invariants checked as they go.
type StressConfig struct {
	Goroutines  int
	Duration    time.Duration
	SpinCount   int
	MaxInFlight int64
	RegionSize  int
}

// StressReport summarizes one Stress run.
type StressReport struct {
	Ops        uint64
	Violations []string
}

// Stress runs Config.Goroutines workers, each repeatedly exercising a
// shared qrwlock.FairRWLock and a shared regioncopy.Region, until ctx is
// cancelled or cfg.Duration elapses, sampling the lock's state
// invariants as it goes.
//
// Coordination uses three of the package's other primitives, each for
// the concern it already exists for elsewhere in this module:
//   - qrwlock.Latch is the start gate: every worker is spawned and
//     parked on Wait() before any of them touches the lock, so the run
//     begins with all goroutines contending at once instead of staggered
//     by goroutine-creation overhead.
//   - qrwlock.Rally is a one-shot phase barrier: every worker performs a
//     short warmup of fast-path-only operations, then meets at the
//     barrier before moving into the full randomized mix (which also
//     exercises TryAcquire* and regioncopy.CopyBounded). This guarantees
//     the warmup phase — which cannot itself trip an invariant, since it
//     only calls the public API correctly — completes for every worker
//     before any worker can observe the harness in its failure path,
//     which matters because Rally.Meet's barrier has no cancellation
//     awareness: using it only in a phase that cannot error keeps a
//     detected violation from ever stranding survivors on the barrier.
//   - qrwlock.Semaphore bounds how many workers may be inside a
//     regioncopy.CopyBounded call at once (cfg.MaxInFlight), independent
//     of regioncopy's own FairSemaphore-gated pooled-copy path — this one
//     caps concurrent *stress* callers, not concurrent *pooled chunking*.
//
// errgroup.Group replaces a hand-rolled sync.WaitGroup plus error
// channel: a worker that detects an invariant violation returns it as an
// error, which cancels every other worker's context promptly, and Stress
// returns that first error alongside the accumulated report.
func Stress(ctx context.Context, cfg StressConfig) (*StressReport, error) {
	if cfg.Goroutines <= 0 {
		cfg.Goroutines = 8
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.RegionSize <= 0 {
		cfg.RegionSize = 1 << 16
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	lock := qrwlock.NewFairRWLock(cfg.SpinCount)
	regions := regioncopy.NewRegionSet()
	a, _ := regions.Create(cfg.RegionSize)
	b, _ := regions.Create(cfg.RegionSize)

	var startGate qrwlock.Latch
	var round qrwlock.Rally
	inFlight := qrwlock.NewSemaphore(cfg.MaxInFlight)

	report := &StressReport{}
	viol := make(chan string, 64)
	var opCount atomic.Uint64

	const warmupOps = 50

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Goroutines; i++ {
		i := i
		g.Go(func() error {
			startGate.Wait()
			rng := rand.New(rand.NewSource(int64(i) + 1))

			for n := 0; n < warmupOps; n++ {
				if rng.Intn(2) == 0 {
					lock.AcquireExclusive()
					lock.ReleaseExclusive()
				} else {
					lock.AcquireShared()
					lock.ReleaseShared()
				}
			}
			round.Meet(cfg.Goroutines)

			var ops uint64
			for gctx.Err() == nil {
				runOp(lock, a, b, inFlight, rng)
				ops++
				if ops%200 == 0 {
					if err := checkInvariants(lock, viol); err != nil {
						opCount.Add(ops)
						return err
					}
				}
			}
			opCount.Add(ops)
			return nil
		})
	}
	startGate.Open()

	runErr := g.Wait()

	close(viol)
	for v := range viol {
		report.Violations = append(report.Violations, v)
	}
	report.Ops = opCount.Load()
	return report, runErr
}

// runOp performs one randomly chosen lock/copy operation.
func runOp(lock *qrwlock.FairRWLock, a, b *regioncopy.Region, inFlight *qrwlock.Semaphore, rng *rand.Rand) {
	switch rng.Intn(5) {
	case 0:
		lock.AcquireExclusive()
		lock.ReleaseExclusive()
	case 1:
		lock.AcquireShared()
		lock.ReleaseShared()
	case 2:
		if lock.TryAcquireShared() {
			lock.ReleaseShared()
		}
	case 3:
		if lock.TryAcquireExclusive() {
			lock.ReleaseExclusive()
		}
	case 4:
		inFlight.Acquire(1)
		src, dst := a, b
		if rng.Intn(2) == 0 {
			src, dst = b, a
		}
		_, _ = regioncopy.CopyBounded(dst, src, 0, 0, 64)
		inFlight.Release(1)
	}
}

// checkInvariants samples the state-word invariant "unowned implies zero
// shared owners" against the lock's observable state. Wake-ordering
// properties (FIFO within class, exclusive precedence, conversion
// overtaking) are covered by the deterministic scenario functions in
// this package and by rwlock_test.go's white-box tests, which can see
// the waiter queue directly; this sampling check is a best-effort
// black-box cross-check run repeatedly under real contention.
//
// The check must come from one Snapshot call: reading Owned and
// SharedOwners as two separate loads could tear across a concurrent
// acquire and report a violation the lock never committed.
func checkInvariants(lock *qrwlock.FairRWLock, viol chan<- string) error {
	owned, shared := lock.Snapshot()
	if !owned && shared != 0 {
		err := fmt.Errorf("state invariant violated: Owned=false but SharedOwners=%d", shared)
		select {
		case viol <- err.Error():
		default:
		}
		return err
	}
	return nil
}
