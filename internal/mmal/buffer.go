package mmal

import "time"

// BufferFlags describe the payload carried by a buffer.
type BufferFlags uint32

const (
	// FlagFrameEnd marks the final buffer of a frame.
	FlagFrameEnd BufferFlags = 1 << iota

	// FlagTransmissionFailed marks a frame the driver could not deliver
	// completely. It terminates the current frame like FlagFrameEnd.
	FlagTransmissionFailed

	// FlagKeyFrame marks an independently decodable frame.
	FlagKeyFrame
)

// A Frame is the driver-internal unit of data moving through tunneled
// connections and into application buffers.
type Frame struct {
	Data  []byte
	Flags BufferFlags
	PTS   time.Time
}

// A Buffer is a fixed-size data region owned by a Pool. At any instant a
// buffer is in exactly one place: free in its pool's queue, armed at a
// port waiting for the driver to fill it, or held by the application
// inside a port callback.
type Buffer struct {
	// Length is the number of valid bytes in the buffer.
	Length int

	// Flags describe the payload (frame end, transmission failure, ...).
	Flags BufferFlags

	// PTS is the capture timestamp assigned by the producing component.
	PTS time.Time

	data []byte
	pool *Pool
}

// Data returns the valid portion of the buffer's payload.
func (b *Buffer) Data() []byte {
	return b.data[:b.Length]
}

// Capacity returns the fixed allocation size of the buffer.
func (b *Buffer) Capacity() int {
	return cap(b.data)
}

// Release returns the buffer to the driver layer, i.e. to its pool of
// origin. Every delivered buffer must be released exactly once; releasing
// is distinct from resupplying the port via Port.SendBuffer.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.Length = 0
	b.Flags = 0
	b.PTS = time.Time{}
	b.pool.queue.Put(b)
}

// fill copies a driver frame into the buffer. The frame is truncated if it
// exceeds the buffer's capacity; callers fragment upstream to avoid this.
func (b *Buffer) fill(f Frame) {
	n := copy(b.data[:cap(b.data)], f.Data)
	b.data = b.data[:n]
	b.Length = n
	b.Flags = f.Flags
	b.PTS = f.PTS
}
