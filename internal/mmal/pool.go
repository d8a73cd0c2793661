package mmal

import "github.com/pkg/errors"

// Pool is a fixed set of num buffers of size bytes each, all initially
// free in the pool's queue. Pools feed ports that terminate in a callback:
// the application arms the port with free buffers, the driver fills and
// delivers them, and Release returns them here.
type Pool struct {
	queue *Queue
	num   int
	size  int
}

// NewPool pre-allocates num buffers of the given size.
func NewPool(num, size int) (*Pool, error) {
	if num <= 0 || size <= 0 {
		return nil, errors.Wrapf(ErrInvalid, "pool %dx%d", num, size)
	}
	p := &Pool{
		queue: NewQueue(),
		num:   num,
		size:  size,
	}
	for i := 0; i < num; i++ {
		p.queue.Put(&Buffer{data: make([]byte, 0, size), pool: p})
	}
	return p, nil
}

// Queue returns the free-buffer queue.
func (p *Pool) Queue() *Queue {
	return p.queue
}

// BufferNum returns the pool's fixed capacity N.
func (p *Pool) BufferNum() int {
	return p.num
}

// BufferSize returns the fixed per-buffer allocation size.
func (p *Pool) BufferSize() int {
	return p.size
}

// Free returns the number of buffers currently free in the pool.
func (p *Pool) Free() int {
	return p.queue.Length()
}

// Destroy drops the pool's buffers. The owning port must be disabled
// first, so that every buffer has found its way back to the queue.
func (p *Pool) Destroy() {
	for p.queue.Get() != nil {
	}
}
