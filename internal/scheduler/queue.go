package scheduler

import "sync"

// queue is a FIFO of runnable Tasks guarded by a mutex and a condition
// variable, with a shutdown flag — the TaskQueue row of spec.md §3's
// data model, and the same "stop flag + broadcast" protocol spec.md §9
// calls for.
type queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []*Task
	done bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends t to the back of the queue and wakes one waiter. It is
// a no-op once the queue is shut down.
func (q *queue) push(t *Task) bool {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, t)
	q.mu.Unlock()
	q.cond.Signal()
	return true
}

// tryPush is push's non-blocking counterpart: it acquires the queue's
// lock only if uncontended, so a producer can try sibling queues
// before falling back to a blocking push on its own. Reports whether
// the task was enqueued.
func (q *queue) tryPush(t *Task) (pushed bool) {
	if !q.mu.TryLock() {
		return false
	}
	if q.done {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, t)
	q.mu.Unlock()
	q.cond.Signal()
	return true
}

// tryPop removes and returns the front task without blocking. It
// reports ok false if the queue is currently empty.
func (q *queue) tryPop() (t *Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil, false
	}
	t, q.buf = q.buf[0], q.buf[1:]
	return t, true
}

// pop blocks until a task is available, the queue is shut down, or
// both happen concurrently (in which case a pending task is still
// returned — draining after shutdown returns all pending tasks before
// signaling empty, per spec.md §3).
func (q *queue) pop() (t *Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.done {
		q.cond.Wait()
	}
	if len(q.buf) == 0 {
		return nil, false
	}
	t, q.buf = q.buf[0], q.buf[1:]
	return t, true
}

// trySteal removes and returns the front task without blocking, for
// use by a sibling worker whose own queue ran dry. Identical to
// tryPop; named separately so call sites read as what they mean.
func (q *queue) trySteal() (*Task, bool) {
	return q.tryPop()
}

// shutdown marks the queue done and wakes every waiter. Tasks already
// queued remain available to drain via pop/tryPop; pop only reports
// empty once the buffer is actually exhausted.
func (q *queue) shutdown() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// drain returns every pending task and empties the queue, for use
// during shutdown to hand remaining work back before the queue is
// discarded.
func (q *queue) drain() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.buf
	q.buf = nil
	return pending
}
