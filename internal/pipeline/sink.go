package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/kaimana/picamd/internal/mmal"
	"github.com/kaimana/picamd/internal/msg"
)

// sink is the application-side state attached to a callback port: the
// frame-assembly accumulator, the emission sequence counter, and the pool
// the port is resupplied from. Each sink is touched by exactly one driver
// goroutine, so only the counters read by Stats are atomic.
type sink struct {
	c    *Controller
	pool *mmal.Pool

	acc    []byte
	seq    atomic.Uint64
	aborts atomic.Uint64
}

func newSink(c *Controller, pool *mmal.Pool) *sink {
	return &sink{c: c, pool: pool}
}

// header stamps provenance for the frame being emitted.
func (s *sink) header(pts time.Time) msg.Header {
	if pts.IsZero() {
		pts = time.Now()
	}
	return msg.Header{
		Seq:     s.seq.Load(),
		Stamp:   pts,
		FrameID: s.c.frameID,
	}
}

// publishInfo emits the camera-info record that accompanies every frame
// of either stream.
func (s *sink) publishInfo(hdr msg.Header) {
	info := s.c.info
	info.Header = hdr
	if err := s.c.publisher.PublishCameraInfo(info); err != nil {
		log.Warn("camera info publish failed: %v", err)
	}
}

// resupply keeps the port perpetually armed: one buffer out of the
// callback means one fresh buffer back in, drawn from the pool. Skipped
// when the port was disabled by a concurrent teardown, or when the pool
// has nothing free (logged, and risks a dropped frame).
func (s *sink) resupply(port *mmal.Port) {
	if !port.Enabled() {
		return
	}
	buffer := s.pool.Queue().Get()
	if buffer == nil {
		log.Warn("pool exhausted, unable to return a buffer to %s", port.Name())
		return
	}
	if err := port.SendBuffer(buffer); err != nil {
		// Teardown won the race after the Enabled check.
		buffer.Release()
		log.Debug("resupply %s: %v", port.Name(), err)
	}
}

// rawCallback handles deliveries on the splitter's raw output. One buffer
// is one complete frame: it is published immediately and the companion
// camera-info record follows.
func (c *Controller) rawCallback(port *mmal.Port, buffer *mmal.Buffer) {
	s, _ := port.Userdata().(*sink)
	if s == nil {
		log.Error("received a raw buffer callback with no sink attached")
		buffer.Release()
		return
	}
	if !s.c.initialized.Load() {
		// Teardown in progress; the late delivery is dropped quietly.
		buffer.Release()
		return
	}

	if buffer.Length > 0 {
		hdr := s.header(buffer.PTS)

		encoding := msg.EncodingRGB8
		step := c.cfg.Width * 3
		if c.cfg.Monochrome {
			encoding = msg.EncodingMono8
			step = c.cfg.Width
		}

		img := msg.RawImage{
			Header:   hdr,
			Encoding: encoding,
			Height:   c.cfg.Height,
			Width:    c.cfg.Width,
			Step:     step,
			Data:     append([]byte(nil), buffer.Data()...),
		}
		if err := c.publisher.PublishImage(img); err != nil {
			log.Warn("raw image publish failed: %v", err)
		}
		s.publishInfo(hdr)
		s.seq.Add(1)
	}

	buffer.Release()
	s.resupply(port)
}

// compressedCallback handles deliveries on the encoder output. Buffers
// are fragments of a JPEG frame, accumulated until a frame-end or
// transmission-failure flag terminates the frame. A failed frame is still
// emitted, truncated, with its abort indicator set.
func (c *Controller) compressedCallback(port *mmal.Port, buffer *mmal.Buffer) {
	s, _ := port.Userdata().(*sink)
	if s == nil {
		log.Error("received an encoder buffer callback with no sink attached")
		buffer.Release()
		return
	}
	if !s.c.initialized.Load() {
		// Teardown in progress; the late delivery is dropped quietly.
		buffer.Release()
		return
	}

	if buffer.Length > 0 {
		s.acc = append(s.acc, buffer.Data()...)
	}

	if buffer.Flags&(mmal.FlagFrameEnd|mmal.FlagTransmissionFailed) != 0 {
		aborted := buffer.Flags&mmal.FlagTransmissionFailed != 0
		if aborted {
			s.aborts.Add(1)
			log.Warn("transmission failed, emitting truncated frame %d", s.seq.Load())
		}

		hdr := s.header(buffer.PTS)
		img := msg.CompressedImage{
			Header:  hdr,
			Format:  "jpeg",
			Data:    append([]byte(nil), s.acc...),
			Aborted: aborted,
		}
		if err := c.publisher.PublishCompressed(img); err != nil {
			log.Warn("compressed image publish failed: %v", err)
		}
		s.publishInfo(hdr)

		s.acc = s.acc[:0]
		s.seq.Add(1)
	}

	buffer.Release()
	s.resupply(port)
}
