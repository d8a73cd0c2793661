package soft

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/mmal"
)

const defaultJPEGQuality = 70

// Encoder compresses raw input frames to JPEG and delivers them on its
// output port in buffer-size fragments, the last fragment flagged with
// FlagFrameEnd. The worker goroutine starts when the input port is
// tunneled and exits when the connection is destroyed.
type Encoder struct {
	component

	// pendingFail records a mid-frame fragment drop. The failure marker
	// is deferred to the next delivery, when the consumer has re-armed
	// buffers, instead of competing for a buffer at the moment of
	// exhaustion. Touched only by the encode worker.
	pendingFail bool
}

func NewEncoder() *Encoder {
	e := &Encoder{
		component: component{name: mmal.ComponentEncoder},
	}
	e.control = mmal.NewPort(e.name+":ctrl", mmal.DirControl)

	in := mmal.NewPort(e.name+":in:0", mmal.DirInput)
	in.SetHooks(e.commitInputFormat, nil, e.onInputConnected)
	e.inputs = []*mmal.Port{in}

	out := mmal.NewPort(e.name+":out:0", mmal.DirOutput)
	out.SetHooks(e.commitOutputFormat, nil, nil)
	e.outputs = []*mmal.Port{out}
	return e
}

func (e *Encoder) OutputPort() *mmal.Port {
	return e.outputs[0]
}

func (e *Encoder) commitInputFormat(p *mmal.Port) error {
	switch p.Format.Encoding {
	case mmal.EncodingI420, mmal.EncodingRGB24:
	default:
		return errors.Wrapf(mmal.ErrUnsupported, "encoder input encoding %s", p.Format.Encoding)
	}
	p.BufferNumMin = 1
	p.BufferNumRecommended = 3
	p.BufferSizeMin = p.Format.FrameBytes()
	p.BufferSizeRecommended = p.Format.FrameBytes()
	return nil
}

func (e *Encoder) commitOutputFormat(p *mmal.Port) error {
	if p.Format.Encoding != mmal.EncodingMJPEG {
		return errors.Wrapf(mmal.ErrUnsupported, "encoder output encoding %s", p.Format.Encoding)
	}
	p.BufferNumMin = 1
	p.BufferNumRecommended = 3
	p.BufferSizeMin = 16 << 10
	p.BufferSizeRecommended = 256 << 10
	return nil
}

func (e *Encoder) onInputConnected(in *mmal.Port) {
	frames := in.Frames()
	if frames == nil {
		return
	}
	go e.encodeLoop(in, frames)
}

// encodeLoop is the driver-side producer thread for the output port.
func (e *Encoder) encodeLoop(in *mmal.Port, frames <-chan mmal.Frame) {
	log.Debug("encoder worker started")
	out := e.OutputPort()
	format := in.CommittedFormat()
	for f := range frames {
		data, err := e.encode(f.Data, format)
		if err != nil {
			log.Error("encode failed: %v", err)
			continue
		}
		e.deliver(out, data, f)
	}
	log.Debug("encoder worker stopped")
}

func (e *Encoder) encode(raw []byte, format mmal.Format) ([]byte, error) {
	if len(raw) < format.FrameBytes() {
		return nil, errors.Wrapf(mmal.ErrInvalid, "short frame: %d < %d", len(raw), format.FrameBytes())
	}

	var img image.Image
	switch format.Encoding {
	case mmal.EncodingI420:
		img = &image.Gray{
			Pix:    raw[:format.Width*format.Height],
			Stride: format.Width,
			Rect:   image.Rect(0, 0, format.Width, format.Height),
		}
	case mmal.EncodingRGB24:
		rgba := image.NewRGBA(image.Rect(0, 0, format.Width, format.Height))
		for i, j := 0, 0; i < format.Width*format.Height*3; i, j = i+3, j+4 {
			rgba.Pix[j+0] = raw[i+0]
			rgba.Pix[j+1] = raw[i+1]
			rgba.Pix[j+2] = raw[i+2]
			rgba.Pix[j+3] = 0xff
		}
		img = rgba
	default:
		return nil, errors.Wrapf(mmal.ErrUnsupported, "encoder input %s", format.Encoding)
	}

	quality := e.OutputPort().IntParameter(mmal.ParamJPEGQFactor, defaultJPEGQuality)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "jpeg encode")
	}
	return buf.Bytes(), nil
}

// deliver fragments one compressed frame across output buffers. When a
// fragment is dropped after part of the frame went out, the partial frame
// must be terminated so the consumer does not concatenate it with the
// next one; the transmission-failure marker is sent ahead of the next
// frame, once buffers are armed again.
func (e *Encoder) deliver(out *mmal.Port, data []byte, src mmal.Frame) {
	if e.pendingFail {
		err := out.Produce(mmal.Frame{
			Flags: mmal.FlagTransmissionFailed,
			PTS:   src.PTS,
		})
		if err != nil {
			// Still no buffer. Skip this frame too; delivering it would
			// corrupt the consumer's partial frame.
			log.Warn("transmission-failure marker dropped: %v", err)
			return
		}
		e.pendingFail = false
	}

	fragSize := out.BufferSize
	if fragSize <= 0 {
		fragSize = out.BufferSizeRecommended
	}
	if fragSize <= 0 {
		fragSize = len(data)
	}

	for off := 0; off < len(data); off += fragSize {
		end := off + fragSize
		flags := mmal.FlagKeyFrame
		if end >= len(data) {
			end = len(data)
			flags |= mmal.FlagFrameEnd
		}
		err := out.Produce(mmal.Frame{
			Data:  data[off:end],
			Flags: flags,
			PTS:   src.PTS,
		})
		if err != nil {
			log.Warn("encoder fragment dropped: %v", err)
			if off > 0 {
				e.pendingFail = true
			}
			return
		}
	}
}

func (e *Encoder) Destroy() error {
	return e.markDestroyed()
}
