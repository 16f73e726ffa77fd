package job

import (
	"sync"

	"github.com/mirrobot/mirrobot/metrics"
)

// Queue is the FIFO pending list (spec.md §4.5). Submission and draining
// are the only two places it is mutated — the submission handler appends,
// the Worker dequeues — matching spec.md §5's "mutated only from the
// submission handler and the worker" rule.
type Queue struct {
	mu     sync.Mutex
	items  []*Job
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Submit appends j to the tail of the queue.
func (q *Queue) Submit(j *Job) {
	q.mu.Lock()
	q.items = append(q.items, j)
	depth := len(q.items)
	q.mu.Unlock()
	metrics.Default.Job.QueueDepth.Set(float64(depth))
	q.wake()
}

// PrependHead puts j at the front of the queue, ahead of everything
// already pending (spec.md §4.8: a resumed, subtitle-attached job jumps
// the line rather than re-joining the tail).
func (q *Queue) PrependHead(j *Job) {
	q.mu.Lock()
	q.items = append([]*Job{j}, q.items...)
	depth := len(q.items)
	q.mu.Unlock()
	metrics.Default.Job.QueueDepth.Set(float64(depth))
	q.wake()
}

// dequeue pops the head job, if any.
func (q *Queue) dequeue() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	metrics.Default.Job.QueueDepth.Set(float64(len(q.items)))
	return j, true
}

// Clear drains every pending job without touching whatever the Worker is
// currently running, and returns how many were removed (spec.md §4.5
// "Queue clearing").
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	metrics.Default.Job.QueueDepth.Set(0)
	return n
}

// Depth returns the current number of pending jobs.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending jobs, head first (spec.md §6
// `queue` command).
func (q *Queue) Snapshot() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
