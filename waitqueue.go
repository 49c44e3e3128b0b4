package qrwlock

// waitQueue is a sentinel-headed circular doubly-linked list of wait
// blocks, the Go rendering of PH_QUEUED_LOCK's intrusive waiter list:
// exclusive waiters precede shared waiters, insertion order is preserved
// within each class, and a firstShared cursor points at the first shared
// waiter (or the sentinel when there is none).
//
// The queue and its cursor are protected by mu, a secondary spinlock
// distinct from the state word.
// TicketLock (ticket_lock.go) is itself FIFO-fair, which matters
// here: if it were a barging lock, two goroutines racing to enqueue could
// be served out of their arrival order, silently breaking the FIFO
// guarantee this whole queue exists to provide.
type waitQueue struct {
	_ noCopy

	mu          TicketLock
	sentinel    waitBlock
	firstShared *waitBlock
}

func (q *waitQueue) init() {
	q.sentinel.flink = &q.sentinel
	q.sentinel.blink = &q.sentinel
	q.firstShared = &q.sentinel
}

func (q *waitQueue) empty() bool {
	return q.sentinel.flink == &q.sentinel
}

// insertLastExclusive places w immediately before the first shared
// waiter — i.e. at the tail of the contiguous exclusive run at the head
// of the queue.
func (q *waitQueue) insertLastExclusive(w *waitBlock) {
	pos := q.firstShared
	w.flink = pos
	w.blink = pos.blink
	pos.blink.flink = w
	pos.blink = w
}

// insertLast appends w at the tail of the whole queue (used by
// AcquireShared). If w becomes the first shared waiter —
// its predecessor is the sentinel or is itself exclusive — firstShared is
// updated to point at it.
func (q *waitQueue) insertLast(w *waitBlock) {
	pred := q.sentinel.blink
	w.flink = &q.sentinel
	w.blink = pred
	pred.flink = w
	q.sentinel.blink = w

	if pred == &q.sentinel || pred.exclusive() {
		q.firstShared = w
	}
}

// insertFirst places w at the absolute head of the queue, ahead of every
// other waiter of either class. This is the fairness exception reserved
// for ConvertSharedToExclusive.
func (q *waitQueue) insertFirst(w *waitBlock) {
	succ := q.sentinel.flink
	w.flink = succ
	w.blink = &q.sentinel
	succ.blink = w
	q.sentinel.flink = w

	if q.firstShared == succ && !w.exclusive() {
		// Queue was empty or started with a shared waiter, and w is
		// itself shared: w is now the first shared waiter.
		q.firstShared = w
	}
	// If w is exclusive it can never be firstShared; if the old head was
	// exclusive, firstShared already pointed past it and stays correct.
}

// drainSharedPrefix must be called with q.mu held. It dequeues the
// contiguous run of shared waiters starting at head (head itself must be
// shared) and resets firstShared, since by the queue's class-ordering
// invariant (exclusive waiters always precede shared) that run is the
// queue's entire shared population.
func (q *waitQueue) drainSharedPrefix(head *waitBlock) []*waitBlock {
	var woken []*waitBlock
	for cur := head; cur != &q.sentinel && !cur.exclusive(); {
		next := cur.flink
		q.unlink(cur)
		woken = append(woken, cur)
		cur = next
	}
	q.firstShared = &q.sentinel
	return woken
}

func (q *waitQueue) unlink(w *waitBlock) {
	w.blink.flink = w.flink
	w.flink.blink = w.blink
	if q.firstShared == w {
		q.firstShared = w.flink
	}
	w.flink, w.blink = nil, nil
}
