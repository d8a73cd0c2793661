package soft

import (
	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/mmal"
)

// Splitter fans one input stream out to two outputs. The worker goroutine
// starts when the input port is tunneled and exits when the connection is
// destroyed.
type Splitter struct {
	component
}

func NewSplitter() *Splitter {
	s := &Splitter{
		component: component{name: mmal.ComponentSplitter},
	}
	s.control = mmal.NewPort(s.name+":ctrl", mmal.DirControl)

	in := mmal.NewPort(s.name+":in:0", mmal.DirInput)
	in.SetHooks(s.commitFormat, nil, s.onInputConnected)
	s.inputs = []*mmal.Port{in}

	for i := 0; i < 2; i++ {
		out := mmal.NewPort(s.name+":out:"+string(rune('0'+i)), mmal.DirOutput)
		out.SetHooks(s.commitFormat, nil, nil)
		s.outputs = append(s.outputs, out)
	}
	return s
}

func (s *Splitter) commitFormat(p *mmal.Port) error {
	switch p.Format.Encoding {
	case mmal.EncodingI420, mmal.EncodingRGB24, mmal.EncodingOpaque:
	default:
		return errors.Wrapf(mmal.ErrUnsupported, "splitter encoding %s", p.Format.Encoding)
	}
	p.BufferNumMin = 1
	p.BufferNumRecommended = 3
	p.BufferSizeMin = p.Format.FrameBytes()
	p.BufferSizeRecommended = p.Format.FrameBytes()
	return nil
}

func (s *Splitter) onInputConnected(in *mmal.Port) {
	frames := in.Frames()
	if frames == nil {
		return
	}
	go s.fanout(frames)
}

// fanout is the driver-side producer thread for both output ports. The
// same payload slice is handed to every output: callback-fed outputs copy
// into the armed application buffer, tunneled outputs treat it read-only.
func (s *Splitter) fanout(frames <-chan mmal.Frame) {
	log.Debug("splitter worker started")
	for f := range frames {
		for _, out := range s.outputs {
			if !out.Enabled() {
				continue
			}
			if err := out.Produce(f); err != nil {
				log.Debug("splitter %s: %v", out.Name(), err)
			}
		}
	}
	log.Debug("splitter worker stopped")
}

func (s *Splitter) Destroy() error {
	return s.markDestroyed()
}
