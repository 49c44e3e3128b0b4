package scenario

import (
	"sync"
	"time"

	"github.com/sysinspect/qrwlock"
)

// StarvationReport compares how long a single writer waits behind a
// stream of readers under qrwlock.FairRWLock versus qrwlock.NaiveRWLock,
// averaged over a number of trials.
type StarvationReport struct {
	Trials          int
	FairWriterWait  time.Duration // mean across Trials
	NaiveWriterWait time.Duration // mean across Trials
	NaiveStarved    bool          // true if the naive mean is more than double the fair mean
}

// StarvationComparison runs readerCount goroutines continuously
// acquiring and releasing a shared lock, with one writer goroutine
// racing to acquire exclusively after rampUp has let the reader stream
// get going, against both lock types, for the given number of trials.
//
// This is the demonstration naive_rwlock.go's doc comment promises:
// FairRWLock's queue gives the writer a fixed place in line the moment
// it enqueues, so its wait is bounded by whoever was already ahead of
// it. NaiveRWLock has no queue at all, so a continuous reader stream can
// CAS past the writer's pending attempt indefinitely; StarvationComparison
// makes that gap a number instead of an assertion.
func StarvationComparison(readerCount, trials int) StarvationReport {
	if readerCount <= 0 {
		readerCount = 8
	}
	if trials <= 0 {
		trials = 1
	}
	const rampUp = time.Millisecond

	var fairTotal, naiveTotal time.Duration
	for i := 0; i < trials; i++ {
		fairTotal += measureWriterWait(rampUp, readerCount, func() rwLike { return &fairAdapter{l: qrwlock.NewFairRWLock(0)} })
		naiveTotal += measureWriterWait(rampUp, readerCount, func() rwLike { return &naiveAdapter{} })
	}

	r := StarvationReport{
		Trials:          trials,
		FairWriterWait:  fairTotal / time.Duration(trials),
		NaiveWriterWait: naiveTotal / time.Duration(trials),
	}
	r.NaiveStarved = r.NaiveWriterWait > 2*r.FairWriterWait
	return r
}

// rwLike is the minimal shared/exclusive surface both lock types offer,
// letting measureWriterWait drive either one identically.
type rwLike interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
}

type fairAdapter struct{ l *qrwlock.FairRWLock }

func (a *fairAdapter) RLock()   { a.l.AcquireShared() }
func (a *fairAdapter) RUnlock() { a.l.ReleaseShared() }
func (a *fairAdapter) Lock()    { a.l.AcquireExclusive() }
func (a *fairAdapter) Unlock()  { a.l.ReleaseExclusive() }

type naiveAdapter struct{ l qrwlock.NaiveRWLock }

func (a *naiveAdapter) RLock()   { a.l.RLock() }
func (a *naiveAdapter) RUnlock() { a.l.RUnlock() }
func (a *naiveAdapter) Lock()    { a.l.Lock() }
func (a *naiveAdapter) Unlock()  { a.l.Unlock() }

// measureWriterWait spins up readerCount reader goroutines against a
// freshly constructed lock, lets them run for rampUp, then times how
// long a single writer takes to acquire exclusively while they keep
// going.
func measureWriterWait(rampUp time.Duration, readerCount int, newLock func() rwLike) time.Duration {
	lock := newLock()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(readerCount)
	for i := 0; i < readerCount; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				lock.RLock()
				time.Sleep(time.Microsecond)
				lock.RUnlock()
			}
		}()
	}

	time.Sleep(rampUp)
	start := time.Now()
	lock.Lock()
	wait := time.Since(start)
	lock.Unlock()

	close(stop)
	wg.Wait()
	return wait
}
