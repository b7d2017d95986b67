package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Scheduler is the multi-queue work-stealing executor of spec.md §4.3:
// N worker goroutines, each with its own FIFO queue. Submit round-robins
// across queues, trying siblings before blocking on the chosen one;
// workers pop their own queue and, failing that, steal from siblings
// before parking.
type Scheduler struct {
	queues []*queue
	next   atomic.Uint64 // round-robin cursor for Submit

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool

	processed atomic.Uint64 // instrumentation: tasks actually Run
	discarded atomic.Uint64 // instrumentation: tasks drained unrun at Shutdown
}

// New constructs a Scheduler with n worker queues. n is clamped to at
// least 1. Workers are not started until Start is called.
func New(n int) *Scheduler {
	if n < 1 {
		n = 1
	}
	s := &Scheduler{queues: make([]*queue, n)}
	for i := range s.queues {
		s.queues[i] = newQueue()
	}
	return s
}

// DefaultWorkerCount returns max(1, cores-1), the worker count
// spec.md §4.7 specifies for Server.Serve.
func DefaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Start launches one goroutine per worker queue.
func (s *Scheduler) Start() {
	for i := range s.queues {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Submit enqueues t for execution, choosing a queue round-robin and
// trying sibling queues (non-blocking) before blocking on the chosen
// one under contention.
func (s *Scheduler) Submit(t *Task) {
	n := uint64(len(s.queues))
	start := s.next.Add(1) % n

	for i := uint64(0); i < n; i++ {
		q := s.queues[(start+i)%n]
		if q.tryPush(t) {
			return
		}
	}

	// Every queue was contended; fall back to a blocking push on the
	// originally chosen queue so Submit always makes progress.
	s.queues[start].push(t)
}

// Spawn is a convenience for Submit(&Task{Run: run}).
func (s *Scheduler) Spawn(run func()) {
	s.Submit(&Task{Run: run})
}

func (s *Scheduler) worker(index int) {
	defer s.wg.Done()

	own := s.queues[index]

	for {
		t, ok := own.tryPop()
		if !ok {
			t, ok = s.steal(index)
		}
		if !ok {
			t, ok = own.pop()
		}
		if ok {
			t.run(s.Submit)
			s.processed.Add(1)
			continue
		}

		// own is shut down and empty. Shutdown marks every queue done
		// at roughly the same time, so a sibling may still hold
		// stragglers this worker races the others to finish.
		if t, ok := s.steal(index); ok {
			t.run(s.Submit)
			s.processed.Add(1)
			continue
		}

		if s.allEmpty() {
			return
		}
		runtime.Gosched()
	}
}

// steal attempts one non-blocking pop from every sibling queue.
func (s *Scheduler) steal(index int) (*Task, bool) {
	n := len(s.queues)
	for i := 1; i < n; i++ {
		q := s.queues[(index+i)%n]
		if t, ok := q.trySteal(); ok {
			return t, true
		}
	}
	return nil, false
}

// allEmpty reports whether every queue is currently empty. Used only
// during shutdown draining to decide whether a worker that lost every
// steal race may safely exit.
func (s *Scheduler) allEmpty() bool {
	for _, q := range s.queues {
		q.mu.Lock()
		empty := len(q.buf) == 0
		q.mu.Unlock()
		if !empty {
			return false
		}
	}
	return true
}

// Shutdown marks every queue done, wakes all parked workers, waits for
// them to drain pending tasks and exit, and returns the total number
// of tasks that ran. It is idempotent.
//
// Workers pop and steal until every queue is observably empty before
// exiting, so by the time wg.Wait() returns there is normally nothing
// left. Shutdown still drains every queue afterward and counts
// whatever turns up as discarded, the same lifecycle-coordinator
// pattern ygrebnov-workers uses to report abandoned work rather than
// let it vanish silently: a task that lands in a queue's buffer after
// that worker has already committed to exiting (e.g. a Task's
// Precursor resubmitting it concurrently with Shutdown) has nowhere
// left to run.
func (s *Scheduler) Shutdown() uint64 {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		for _, q := range s.queues {
			q.shutdown()
		}
		s.wg.Wait()

		for _, q := range s.queues {
			s.discarded.Add(uint64(len(q.drain())))
		}
	})
	return s.processed.Load()
}

// Processed returns the number of tasks run so far, for
// instrumentation and the "every submitted task runs exactly once"
// test property in spec.md §8.
func (s *Scheduler) Processed() uint64 {
	return s.processed.Load()
}

// Discarded returns the number of tasks Shutdown found still queued,
// unrun, after every worker had already exited. It is zero in the
// common case; a nonzero value means a caller kept submitting work
// concurrently with Shutdown instead of waiting on it first.
func (s *Scheduler) Discarded() uint64 {
	return s.discarded.Load()
}
