// Package scenario runs named fairness scenarios against a real
// qrwlock.FairRWLock for the CLI harness (qrwlockctl run <name>). It also
// holds the randomized property harness (Stress) and the writer-starvation
// comparison (StarvationComparison), which do not use the named scenarios.
//
// Orchestration here is best-effort, not a correctness proof: it uses
// FairRWLock.QueuedWaiters and staggered goroutine launches to make the
// intended arrival order overwhelmingly likely, but the rigorous,
// white-box version of these same properties lives in the qrwlock
// package's own tests, which can peek at the waiter queue directly.
// This package exists to give the properties a runnable, observable
// demonstration outside the package under test.
package scenario

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sysinspect/qrwlock"
)

// Result is the outcome of running one named scenario.
type Result struct {
	Name  string
	Order []string
	Err   error
}

// Names lists every scenario Run accepts.
var Names = []string{"S1", "S2", "S3", "S4", "S5", "S6"}

var runners = map[string]func() ([]string, error){
	"S1": runS1,
	"S2": runS2,
	"S3": runS3,
	"S4": runS4,
	"S5": runS5,
	"S6": runS6,
}

// Run executes the named scenario against a freshly constructed lock.
func Run(name string) Result {
	fn, ok := runners[name]
	if !ok {
		return Result{Name: name, Err: fmt.Errorf("scenario: unknown scenario %q", name)}
	}
	order, err := fn()
	return Result{Name: name, Order: order, Err: err}
}

// waitUntilQueued parks the orchestrating goroutine until at least n
// waiters are enqueued on l. The Waiters bit alone (qrwlock.Waiting)
// is not precise enough for staging: it is already set once the first
// waiter enqueues, so later launches would race ahead of their own
// goroutine's enqueue and could slip through a momentary release window
// out of the order the scenario asserts.
func waitUntilQueued(l *qrwlock.FairRWLock, n int) {
	for l.QueuedWaiters() < n {
		runtime.Gosched()
	}
}

// runS1 — uncontended round trip. No park should ever be issued and the
// state word returns to 0.
func runS1() ([]string, error) {
	l := qrwlock.NewFairRWLock(16)
	l.AcquireExclusive()
	l.ReleaseExclusive()
	if l.Owned() {
		return nil, fmt.Errorf("S1: lock still owned after release")
	}
	return []string{"round-trip"}, nil
}

// runS2 — three shared readers hold concurrently; the lock is fully
// unheld once all three release.
func runS2() ([]string, error) {
	l := qrwlock.NewFairRWLock(16)
	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	wg.Add(3)
	for i := 1; i <= 3; i++ {
		go func(i int) {
			defer wg.Done()
			l.AcquireShared()
			mu.Lock()
			order = append(order, fmt.Sprintf("T%d", i))
			mu.Unlock()
			l.ReleaseShared()
		}(i)
	}
	wg.Wait()

	if l.Owned() || l.SharedOwners() != 0 {
		return order, fmt.Errorf("S2: lock not fully released, SharedOwners=%d Owned=%v", l.SharedOwners(), l.Owned())
	}
	return order, nil
}

// runS3 — writer preference. T1 holds shared, T2 enqueues exclusive, T3
// then asks for shared. T1 releases; T2 must complete before T3
// acquires, even though T3 would otherwise have found a shared lock
// free to take.
func runS3() ([]string, error) {
	l := qrwlock.NewFairRWLock(16)
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	l.AcquireShared() // T1

	var t2Done sync.WaitGroup
	t2Done.Add(1)
	go func() {
		defer t2Done.Done()
		l.AcquireExclusive()
		record("T2")
		l.ReleaseExclusive()
	}()
	waitUntilQueued(l, 1) // T2 has enqueued

	var t3Done sync.WaitGroup
	t3Done.Add(1)
	go func() {
		defer t3Done.Done()
		l.AcquireShared()
		record("T3")
		l.ReleaseShared()
	}()
	// T3 must be in the queue before T1 releases: a T3 that has not yet
	// run its fast path could otherwise slip into the moment the lock sits
	// unowned between T1's release and T2's wakeup.
	waitUntilQueued(l, 2)

	l.ReleaseShared() // T1 releases
	t2Done.Wait()
	t3Done.Wait()

	if len(order) != 2 || order[0] != "T2" {
		return order, fmt.Errorf("S3: expected [T2 T3], got %v", order)
	}
	return order, nil
}

// runS4 — strict FIFO among exclusive waiters: T2, T3, T4 enqueue in
// that order behind T1's hold and must unpark in that same order.
func runS4() ([]string, error) {
	l := qrwlock.NewFairRWLock(16)
	var mu sync.Mutex
	var order []string

	l.AcquireExclusive() // T1

	var wg sync.WaitGroup
	for i := 2; i <= 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.AcquireExclusive()
			mu.Lock()
			order = append(order, fmt.Sprintf("T%d", i))
			mu.Unlock()
			l.ReleaseExclusive()
		}(i)
		waitUntilQueued(l, i-1)
	}

	l.ReleaseExclusive() // T1 releases
	wg.Wait()

	want := []string{"T2", "T3", "T4"}
	if len(order) != len(want) {
		return order, fmt.Errorf("S4: expected %v, got %v", want, order)
	}
	for i, w := range want {
		if order[i] != w {
			return order, fmt.Errorf("S4: expected %v, got %v", want, order)
		}
	}
	return order, nil
}

// runS5 — shared cascade. T1 holds exclusive; T2 (exclusive), T3
// (shared), T4 (shared), T5 (exclusive) enqueue in that order.
//
// One might expect T5 to stay behind T3/T4 since it arrived last. The
// queue's insertion rule says otherwise: a newly arriving exclusive
// waiter is always inserted immediately before the first already-queued
// shared waiter, regardless of how many shared waiters are already
// there, and a queued exclusive waiter is always unparked before any
// simultaneously queued shared waiter. Together those require T5 to
// jump ahead of T3 and T4, not trail them. So after T2 releases, T5 —
// not T3/T4 — wakes next, and T3/T4 wake together only once T5 has
// released.
func runS5() ([]string, error) {
	l := qrwlock.NewFairRWLock(16)
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	l.AcquireExclusive() // T1

	queued := 0
	launch := func(i int, shared bool) *sync.WaitGroup {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("T%d", i)
			if shared {
				l.AcquireShared()
				record(name)
				l.ReleaseShared()
			} else {
				l.AcquireExclusive()
				record(name)
				l.ReleaseExclusive()
			}
		}()
		queued++
		waitUntilQueued(l, queued)
		return &wg
	}

	wg2 := launch(2, false)
	wg3 := launch(3, true)
	wg4 := launch(4, true)
	wg5 := launch(5, false)

	l.ReleaseExclusive() // T1 releases; T2 wakes alone
	wg2.Wait()

	wg3.Wait()
	wg4.Wait()
	wg5.Wait()

	if len(order) != 4 || order[0] != "T2" || order[1] != "T5" {
		return order, fmt.Errorf("S5: expected T2 then T5 to lead, got %v", order)
	}
	return order, nil
}

// runS6 — shared-to-exclusive conversion overtakes a queued exclusive
// waiter. T1 and T2 hold shared; T3 enqueues exclusive; T1 converts
// (enqueuing at the absolute head); T2 releases shared. T1 must convert
// and complete before T3 wakes.
func runS6() ([]string, error) {
	l := qrwlock.NewFairRWLock(16)
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	l.AcquireShared() // T1
	l.AcquireShared() // T2

	var t3Done sync.WaitGroup
	t3Done.Add(1)
	go func() {
		defer t3Done.Done()
		l.AcquireExclusive()
		record("T3")
		l.ReleaseExclusive()
	}()
	waitUntilQueued(l, 1)

	var t1Done sync.WaitGroup
	t1Done.Add(1)
	go func() {
		defer t1Done.Done()
		l.ConvertSharedToExclusive() // T1's shared reference converts
		record("T1")
		l.ReleaseExclusive()
	}()
	// Wait until the conversion's wait block sits at the head of the
	// queue, so T2's release below exercises the overtaking path rather
	// than handing the conversion an uncontended fast-path win.
	waitUntilQueued(l, 2)

	l.ReleaseShared() // T2 releases; SharedCount drops to 1, unblocking T1's conversion
	t1Done.Wait()
	t3Done.Wait()

	if len(order) != 2 || order[0] != "T1" {
		return order, fmt.Errorf("S6: expected [T1 T3], got %v", order)
	}
	return order, nil
}
