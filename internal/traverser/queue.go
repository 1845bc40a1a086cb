package traverser

import "sync"

// taskQueue is an unbounded FIFO of pending tasks. It closes itself once no
// task is queued or in flight, which ends the traversal.
type taskQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []task
	pending int
	closed  bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push schedules t. It reports false once the queue is closed.
func (q *taskQueue) push(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, t)
	q.pending++
	q.cond.Signal()
	return true
}

// pop blocks until a task is available or the queue is closed.
// Every task returned must be acknowledged with done.
func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

func (q *taskQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending <= 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

// close drops the queued tasks and wakes every waiting worker.
func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending -= len(q.items)
	q.items = nil
	q.closed = true
	q.cond.Broadcast()
}
