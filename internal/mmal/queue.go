package mmal

import "sync"

// Queue is a FIFO of buffers. Get never blocks; an empty queue yields nil,
// matching the driver's non-blocking queue primitive.
type Queue struct {
	mu   sync.Mutex
	bufs []*Buffer
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Put(b *Buffer) {
	q.mu.Lock()
	q.bufs = append(q.bufs, b)
	q.mu.Unlock()
}

// Get removes and returns the oldest buffer, or nil when the queue is empty.
func (q *Queue) Get() *Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.bufs) == 0 {
		return nil
	}
	b := q.bufs[0]
	copy(q.bufs, q.bufs[1:])
	q.bufs[len(q.bufs)-1] = nil
	q.bufs = q.bufs[:len(q.bufs)-1]
	return b
}

func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bufs)
}
