package dispatcher

import "sync"

// Queue is an unbounded in-process FIFO of job keys awaiting presentation.
// Producers never block; the single consumer drains it at the dispatch rate.
type Queue struct {
	mu   sync.Mutex
	keys []string
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a key. Safe for concurrent producers.
func (q *Queue) Enqueue(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, key)
}

// Dequeue pops the oldest key, or returns false when the queue is empty.
func (q *Queue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.keys) == 0 {
		return "", false
	}
	key := q.keys[0]
	q.keys = q.keys[1:]
	return key, true
}

// Len returns the number of waiting keys.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}
