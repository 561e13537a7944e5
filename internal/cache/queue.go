package cache

import (
	"sync"

	"chonker.dev/internal/terrain"
)

// JobQueue is a thread-safe FIFO of pending chunk loads. Unbounded and
// non-deduplicating: a coordinate pushed twice is popped twice.
type JobQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []terrain.ChunkCoord
	stopped bool
}

func NewJobQueue() *JobQueue {
	q := &JobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a job and wakes one waiting consumer.
func (q *JobQueue) Push(coord terrain.ChunkCoord) {
	q.mu.Lock()
	q.jobs = append(q.jobs, coord)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until a job is available or the queue has been stopped.
// Jobs still queued at stop time are drained first; Pop returns false
// only once the queue is both stopped and empty.
func (q *JobQueue) Pop(out *terrain.ChunkCoord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.stopped && len(q.jobs) == 0 {
		q.cond.Wait()
	}
	if q.stopped && len(q.jobs) == 0 {
		return false
	}

	*out = q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// Let the drained backing array go instead of pinning it.
		q.jobs = nil
	}
	return true
}

// Stop requests shutdown and wakes every consumer. Setting the flag and
// broadcasting under the mutex means no consumer can check the predicate,
// miss the flag, and then park forever.
func (q *JobQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len reports the number of queued jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
