package mmal

import (
	"sync"

	"github.com/pkg/errors"
)

// Connection is a tunneled, zero-copy link from one component's output
// port to another component's input port. While connected, buffer
// transport between the two components is handled inside the driver; the
// application never sees the buffers.
//
// Connections must be destroyed before either endpoint component.
type Connection struct {
	out *Port
	in  *Port

	mu        sync.Mutex
	ch        chan Frame
	destroyed bool
}

// NewConnection creates and enables a tunnel between out and in, enabling
// both endpoint ports. The input port's committed buffer count bounds the
// number of frames in flight inside the tunnel.
func NewConnection(out, in *Port) (*Connection, error) {
	if out == nil || in == nil {
		return nil, errors.Wrap(ErrInvalid, "connection endpoints")
	}
	if out.Direction() != DirOutput || in.Direction() != DirInput {
		return nil, errors.Wrapf(ErrInvalid, "connect %s -> %s", out.Name(), in.Name())
	}

	depth := in.BufferNum
	if depth <= 0 {
		depth = 3
	}
	c := &Connection{
		out: out,
		in:  in,
		ch:  make(chan Frame, depth),
	}
	if err := out.attach(c); err != nil {
		return nil, err
	}
	if err := in.attach(c); err != nil {
		out.detach()
		return nil, err
	}
	log.Debug("connected %s -> %s (depth %d)", out.Name(), in.Name(), depth)
	return c, nil
}

// send pushes a frame into the tunnel, dropping it when the consumer has
// fallen behind by a full queue. The producer must never block.
func (c *Connection) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return errors.Wrap(ErrDestroyed, "connection")
	}
	select {
	case c.ch <- f:
		return nil
	default:
		return errors.Wrapf(ErrNoMemory, "tunnel %s -> %s full", c.out.Name(), c.in.Name())
	}
}

// Destroy tears the tunnel down and disables both endpoint ports. The
// consuming component observes the closed frame channel and stops its
// worker.
func (c *Connection) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.Wrap(ErrDestroyed, "connection")
	}
	c.destroyed = true
	close(c.ch)
	c.mu.Unlock()

	c.out.detach()
	c.in.detach()
	log.Debug("destroyed connection %s -> %s", c.out.Name(), c.in.Name())
	return nil
}
