package soft

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/mmal"
)

// Camera port indices, matching the vendor component layout.
const (
	CameraPreviewPort = 0
	CameraVideoPort   = 1
	CameraStillPort   = 2
)

// Camera synthesizes raw frames at the negotiated rate. Capture runs while
// the component is enabled and the video port's capture parameter is set.
type Camera struct {
	component

	source FrameSource

	loopMu sync.Mutex
	quit   chan struct{}
	done   chan struct{}
}

func NewCamera() *Camera {
	cam := &Camera{
		component: component{name: mmal.ComponentCamera},
		source:    patternSource{},
	}
	cam.control = mmal.NewPort(cam.name+":ctrl", mmal.DirControl)
	cam.control.SetHooks(nil, cam.onControlParameter, nil)

	preview := mmal.NewPort(cam.name+":out:0", mmal.DirOutput)
	video := mmal.NewPort(cam.name+":out:1", mmal.DirOutput)
	still := mmal.NewPort(cam.name+":out:2", mmal.DirOutput)

	preview.SetHooks(cam.commitVideoFormat, nil, nil)
	video.SetHooks(cam.commitVideoFormat, cam.onVideoParameter, nil)
	still.SetHooks(cam.commitStillFormat, nil, nil)

	cam.outputs = []*mmal.Port{preview, video, still}
	return cam
}

// SetFrameSource replaces the synthetic test pattern. Must be called
// before capture starts.
func (cam *Camera) SetFrameSource(src FrameSource) {
	cam.source = src
}

func (cam *Camera) VideoPort() *mmal.Port {
	return cam.outputs[CameraVideoPort]
}

func (cam *Camera) commitVideoFormat(p *mmal.Port) error {
	switch p.Format.Encoding {
	case mmal.EncodingI420, mmal.EncodingRGB24:
	default:
		return errors.Wrapf(mmal.ErrUnsupported, "camera video encoding %s", p.Format.Encoding)
	}
	if p.Format.Width <= 0 || p.Format.Height <= 0 {
		return errors.Wrapf(mmal.ErrInvalid, "camera geometry %dx%d", p.Format.Width, p.Format.Height)
	}
	p.BufferNumMin = 1
	p.BufferNumRecommended = 3
	p.BufferSizeMin = p.Format.FrameBytes()
	p.BufferSizeRecommended = p.Format.FrameBytes()
	return nil
}

func (cam *Camera) commitStillFormat(p *mmal.Port) error {
	if p.Format.Encoding != mmal.EncodingOpaque {
		return errors.Wrapf(mmal.ErrUnsupported, "camera still encoding %s", p.Format.Encoding)
	}
	p.BufferNumMin = 1
	p.BufferNumRecommended = 3
	p.BufferSizeMin = 4096
	p.BufferSizeRecommended = 4096
	return nil
}

func (cam *Camera) onControlParameter(p *mmal.Port, id string, v interface{}) error {
	switch id {
	case mmal.ParamCameraConfig:
		if _, ok := v.(mmal.CameraConfig); !ok {
			return errors.Wrap(mmal.ErrInvalid, "camera config payload")
		}
	case mmal.ParamMirror:
		if _, ok := v.(mmal.MirrorMode); !ok {
			return errors.Wrap(mmal.ErrInvalid, "mirror payload")
		}
	}
	return nil
}

func (cam *Camera) onVideoParameter(p *mmal.Port, id string, v interface{}) error {
	if id != mmal.ParamCapture {
		return nil
	}
	on, ok := v.(bool)
	if !ok {
		return errors.Wrap(mmal.ErrInvalid, "capture payload")
	}
	if on {
		if !cam.isEnabled() {
			return errors.Wrap(mmal.ErrNotReady, "camera not enabled")
		}
		cam.startCapture()
	} else {
		cam.stopCapture()
	}
	return nil
}

func (cam *Camera) startCapture() {
	cam.loopMu.Lock()
	defer cam.loopMu.Unlock()
	if cam.quit != nil {
		// Capture already running; setting the shutter twice is harmless.
		return
	}
	cam.quit = make(chan struct{})
	cam.done = make(chan struct{})
	go cam.captureLoop(cam.quit, cam.done)
}

func (cam *Camera) stopCapture() {
	cam.loopMu.Lock()
	defer cam.loopMu.Unlock()
	if cam.quit == nil {
		return
	}
	close(cam.quit)
	<-cam.done
	cam.quit = nil
	cam.done = nil
}

// captureLoop is the driver-side producer thread for the video port.
func (cam *Camera) captureLoop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	video := cam.VideoPort()
	format := video.CommittedFormat()

	rate := format.FrameRate
	if rate.Num <= 0 {
		rate = mmal.Rational{Num: 30, Den: 1}
	}
	if rate.Den <= 0 {
		rate.Den = 1
	}
	interval := time.Duration(int64(time.Second) * int64(rate.Den) / int64(rate.Num))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bpp := 3
	if format.Encoding == mmal.EncodingI420 {
		bpp = 1
	}

	var mirror mmal.MirrorMode
	if v, ok := cam.control.Parameter(mmal.ParamMirror); ok {
		mirror, _ = v.(mmal.MirrorMode)
	}

	log.Debug("camera capture loop started (%dx%d %s @ %d/%d)",
		format.Width, format.Height, format.Encoding, rate.Num, rate.Den)

	var seq uint64
	for {
		select {
		case <-quit:
			log.Debug("camera capture loop stopped after %d frames", seq)
			return
		case now := <-ticker.C:
			data := cam.source.Frame(seq, now, format)
			if mirror.HFlip || mirror.VFlip {
				flipFrame(data, format.Width, format.Height, bpp, mirror)
			}
			seq++
			err := video.Produce(mmal.Frame{
				Data:  data,
				Flags: mmal.FlagFrameEnd | mmal.FlagKeyFrame,
				PTS:   now,
			})
			if err != nil {
				log.Debug("camera frame %d not delivered: %v", seq, err)
			}
		}
	}
}

func (cam *Camera) Disable() error {
	cam.stopCapture()
	return cam.component.Disable()
}

func (cam *Camera) Destroy() error {
	cam.stopCapture()
	return cam.markDestroyed()
}
