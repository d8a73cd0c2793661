package pipeline

import (
	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/camctl"
	"github.com/kaimana/picamd/internal/mmal"
)

// Standard port indices on the camera component.
const (
	cameraPreviewPort = 0
	cameraVideoPort   = 1
	cameraStillPort   = 2
)

// createCamera builds and enables the camera component: video port in the
// configured raw encoding at the configured rate, still port in the
// driver-opaque encoding.
func (c *Controller) createCamera() (mmal.Component, error) {
	camera, err := mmal.NewComponent(mmal.ComponentCamera)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (mmal.Component, error) {
		camera.Destroy()
		return nil, err
	}

	if len(camera.Outputs()) <= cameraStillPort {
		return fail(errors.Wrap(mmal.ErrNotReady, "camera missing output ports"))
	}
	video := camera.Outputs()[cameraVideoPort]
	still := camera.Outputs()[cameraStillPort]

	err = camera.Control().SetParameter(mmal.ParamCameraConfig, mmal.CameraConfig{
		MaxStillsWidth:  c.cfg.Width,
		MaxStillsHeight: c.cfg.Height,
		MaxVideoWidth:   c.cfg.Width,
		MaxVideoHeight:  c.cfg.Height,
		NumVideoFrames:  videoOutputBuffers,
	})
	if err != nil {
		return fail(errors.Wrap(err, "camera config"))
	}

	encoding := mmal.EncodingRGB24
	if c.cfg.Monochrome {
		encoding = mmal.EncodingI420
	}
	video.Format.Encoding = encoding
	video.Format.Width = c.cfg.Width
	video.Format.Height = c.cfg.Height
	video.Format.FrameRate = mmal.Rational{Num: c.cfg.Framerate, Den: 1}
	if err := video.CommitFormat(); err != nil {
		return fail(errors.Wrap(err, "camera video format"))
	}
	video.BufferNum = video.BufferNumRecommended
	if video.BufferNum < videoOutputBuffers {
		video.BufferNum = videoOutputBuffers
	}
	video.BufferSize = video.BufferSizeRecommended

	still.Format.Encoding = mmal.EncodingOpaque
	still.Format.Width = c.cfg.Width
	still.Format.Height = c.cfg.Height
	still.Format.FrameRate = mmal.Rational{Num: 1, Den: 1}
	if err := still.CommitFormat(); err != nil {
		return fail(errors.Wrap(err, "camera still format"))
	}
	still.BufferNum = still.BufferNumRecommended
	if still.BufferNum < videoOutputBuffers {
		still.BufferNum = videoOutputBuffers
	}
	still.BufferSize = still.BufferSizeRecommended

	if err := camera.Enable(); err != nil {
		return fail(errors.Wrap(err, "enable camera"))
	}
	if err := camctl.ApplyAll(camera, c.ctl); err != nil {
		return fail(errors.Wrap(err, "camera controls"))
	}

	log.Info("camera component done")
	return camera, nil
}

// createSplitter builds the splitter, copying the camera video format
// onto its input and both outputs with a starvation-safe buffer count.
func (c *Controller) createSplitter(source *mmal.Port) (mmal.Component, error) {
	splitter, err := mmal.NewComponent(mmal.ComponentSplitter)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (mmal.Component, error) {
		splitter.Destroy()
		return nil, err
	}

	sourceFormat := source.CommittedFormat()

	in := splitter.Inputs()[0]
	in.Format.CopyFrom(&sourceFormat)
	in.BufferNum = videoOutputBuffers
	if err := in.CommitFormat(); err != nil {
		return fail(errors.Wrap(err, "splitter input format"))
	}
	in.BufferSize = in.BufferSizeRecommended

	for _, out := range splitter.Outputs() {
		out.Format.CopyFrom(in.Format)
		out.BufferNum = videoOutputBuffers
		if err := out.CommitFormat(); err != nil {
			return fail(errors.Wrapf(err, "splitter output format %s", out.Name()))
		}
		out.BufferSize = out.BufferSizeRecommended
	}

	if err := splitter.Enable(); err != nil {
		return fail(errors.Wrap(err, "enable splitter"))
	}

	log.Info("splitter component done")
	return splitter, nil
}

// createEncoder builds the JPEG encoder: input format copied from the
// splitter's encoder-facing output, output overridden to the compressed
// encoding with driver-recommended buffering, never below the minimum.
func (c *Controller) createEncoder(source *mmal.Port) (mmal.Component, error) {
	encoder, err := mmal.NewComponent(mmal.ComponentEncoder)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (mmal.Component, error) {
		encoder.Destroy()
		return nil, err
	}

	sourceFormat := source.CommittedFormat()

	in := encoder.Inputs()[0]
	in.Format.CopyFrom(&sourceFormat)
	if err := in.CommitFormat(); err != nil {
		return fail(errors.Wrap(err, "encoder input format"))
	}
	in.BufferNum = videoOutputBuffers
	in.BufferSize = in.BufferSizeRecommended

	out := encoder.Outputs()[0]
	out.Format.CopyFrom(in.Format)
	out.Format.Encoding = mmal.EncodingMJPEG
	out.Format.Bitrate = c.cfg.Bitrate
	if err := out.CommitFormat(); err != nil {
		return fail(errors.Wrap(err, "encoder output format"))
	}

	out.BufferSize = encoderBufferSize
	if out.BufferSize < out.BufferSizeMin {
		out.BufferSize = out.BufferSizeMin
	}
	out.BufferNum = out.BufferNumRecommended
	if out.BufferNum < out.BufferNumMin {
		out.BufferNum = out.BufferNumMin
	}

	if err := out.SetParameter(mmal.ParamVideoBitrate, c.cfg.Bitrate); err != nil {
		return fail(errors.Wrap(err, "encoder bitrate"))
	}
	if err := out.SetParameter(mmal.ParamJPEGQFactor, c.cfg.Quality); err != nil {
		return fail(errors.Wrap(err, "encoder quality"))
	}

	if err := encoder.Enable(); err != nil {
		return fail(errors.Wrap(err, "enable encoder"))
	}

	log.Info("encoder component done")
	return encoder, nil
}
