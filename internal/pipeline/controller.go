package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/camctl"
	"github.com/kaimana/picamd/internal/config"
	"github.com/kaimana/picamd/internal/mmal"
	"github.com/kaimana/picamd/internal/msg"
	"github.com/kaimana/picamd/internal/pub"
)

// state aggregates every driver object owned by one pipeline run. It is
// mutated only under Controller.mu; delivery callbacks never read it, so
// teardown may reset it wholesale.
type state struct {
	active  bool
	session uuid.UUID

	camera   mmal.Component
	splitter mmal.Component
	encoder  mmal.Component

	splitterConn *mmal.Connection
	encoderConn  *mmal.Connection

	splitterPool *mmal.Pool
	encoderPool  *mmal.Pool

	rawSink        *sink
	compressedSink *sink
}

// Controller builds, starts and stops the capture pipeline. StartCapture
// and StopCapture are idempotent and safe to call from any goroutine;
// driver callbacks never mutate controller state.
type Controller struct {
	mu sync.Mutex
	st state

	// initialized gates the delivery callbacks. It lives outside state so
	// a callback racing with teardown reads it while StopCapture resets
	// the rest of the run's objects.
	initialized atomic.Bool

	cfg       config.Config
	ctl       camctl.Params
	info      msg.CameraInfo
	frameID   string
	publisher pub.Publisher
}

// New creates a controller. The camera-control flips are seeded from the
// capture configuration, and the camera-info template is republished with
// every frame.
func New(cfg config.Config, ctl camctl.Params, info msg.CameraInfo, publisher pub.Publisher) *Controller {
	cfg.Normalize()
	ctl.HFlip = cfg.HFlip
	ctl.VFlip = cfg.VFlip
	return &Controller{
		cfg:       cfg,
		ctl:       ctl,
		info:      info,
		frameID:   cfg.FrameID(),
		publisher: publisher,
	}
}

// Active reports whether capture is currently running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.active
}

// StartCapture brings the pipeline up if needed and opens the shutter.
// Calling it while capture is running is a no-op.
func (c *Controller) StartCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.active {
		log.Info("capture already running")
		return nil
	}
	if !c.initialized.Load() {
		if err := c.initPipeline(); err != nil {
			return err
		}
	}

	log.Info("starting capture (%dx%d quality=%d framerate=%d)",
		c.cfg.Width, c.cfg.Height, c.cfg.Quality, c.cfg.Framerate)

	video := c.st.camera.Outputs()[cameraVideoPort]
	if err := video.SetParameter(mmal.ParamCapture, true); err != nil {
		return errors.Wrap(err, "enable capture")
	}

	// Arm both callback ports with every free buffer before the driver
	// starts writing. An unarmed port can only drop frames.
	prime(c.st.splitter.Outputs()[0], c.st.splitterPool)
	prime(c.st.encoder.Outputs()[0], c.st.encoderPool)

	c.st.active = true
	log.Info("capture started, session %s", c.st.session)
	return nil
}

// StopCapture tears the whole pipeline down. Calling it while stopped is
// a no-op. Ports are disabled most-downstream first, then connections
// destroyed, then components disabled, then pools and components
// destroyed; this ordering lets an in-flight delivery finish against a
// disabled port instead of freed memory.
func (c *Controller) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized.Load() {
		log.Info("capture already stopped")
		return nil
	}
	c.initialized.Store(false)

	camera := c.st.camera
	videoPort := camera.Outputs()[cameraVideoPort]
	stillPort := camera.Outputs()[cameraStillPort]
	splitterRawOut := c.st.splitter.Outputs()[0]
	splitterEncOut := c.st.splitter.Outputs()[1]
	encoderOut := c.st.encoder.Outputs()[0]

	// Close the shutter so the camera stops producing.
	videoPort.SetParameter(mmal.ParamCapture, false)

	stillPort.Disable()
	videoPort.Disable()
	encoderOut.Disable()
	splitterRawOut.Disable()
	splitterEncOut.Disable()

	if c.st.encoderConn != nil {
		c.st.encoderConn.Destroy()
	}
	if c.st.splitterConn != nil {
		c.st.splitterConn.Destroy()
	}

	log.Info("disabling components")
	c.st.encoder.Disable()
	camera.Disable()
	c.st.splitter.Disable()

	log.Info("destroying buffer pools")
	if c.st.splitterPool != nil {
		c.st.splitterPool.Destroy()
	}
	if c.st.encoderPool != nil {
		c.st.encoderPool.Destroy()
	}

	log.Info("destroying components")
	c.st.encoder.Destroy()
	camera.Destroy()
	c.st.splitter.Destroy()

	c.st = state{}
	log.Info("capture stopped")
	return nil
}

// Stats returns per-sink emission counters for observability.
func (c *Controller) Stats() (rawFrames, compressedFrames, aborted uint64) {
	c.mu.Lock()
	raw, comp := c.st.rawSink, c.st.compressedSink
	c.mu.Unlock()
	if raw != nil {
		rawFrames = raw.seq.Load()
	}
	if comp != nil {
		compressedFrames = comp.seq.Load()
		aborted = comp.aborts.Load()
	}
	return
}

// initPipeline performs the configure, build and wire phases. On any
// failure every object created so far is destroyed and the controller is
// left uninitialized.
func (c *Controller) initPipeline() error {
	camera, err := c.createCamera()
	if err != nil {
		return errors.Wrap(err, "create camera")
	}

	splitter, err := c.createSplitter(camera.Outputs()[cameraVideoPort])
	if err != nil {
		camera.Destroy()
		return errors.Wrap(err, "create splitter")
	}

	encoder, err := c.createEncoder(splitter.Outputs()[1])
	if err != nil {
		splitter.Destroy()
		camera.Destroy()
		return errors.Wrap(err, "create encoder")
	}

	c.st.camera = camera
	c.st.splitter = splitter
	c.st.encoder = encoder

	if err := c.wire(); err != nil {
		c.unwire()
		encoder.Destroy()
		splitter.Destroy()
		camera.Destroy()
		c.st = state{}
		return errors.Wrap(err, "wire pipeline")
	}

	c.st.session = uuid.New()
	c.initialized.Store(true)
	log.Info("pipeline initialized, session %s", c.st.session)
	return nil
}

// wire connects camera to splitter and splitter to encoder, creates the
// two buffer pools, and attaches the callback sinks.
func (c *Controller) wire() error {
	cameraVideo := c.st.camera.Outputs()[cameraVideoPort]
	splitterIn := c.st.splitter.Inputs()[0]
	splitterRawOut := c.st.splitter.Outputs()[0]
	splitterEncOut := c.st.splitter.Outputs()[1]
	encoderIn := c.st.encoder.Inputs()[0]
	encoderOut := c.st.encoder.Outputs()[0]

	var err error
	if c.st.splitterConn, err = mmal.NewConnection(cameraVideo, splitterIn); err != nil {
		return errors.Wrap(err, "camera -> splitter")
	}
	if c.st.encoderConn, err = mmal.NewConnection(splitterEncOut, encoderIn); err != nil {
		return errors.Wrap(err, "splitter -> encoder")
	}

	if c.st.splitterPool, err = mmal.NewPool(splitterRawOut.BufferNum, splitterRawOut.BufferSize); err != nil {
		return errors.Wrap(err, "splitter pool")
	}
	if c.st.encoderPool, err = mmal.NewPool(encoderOut.BufferNum, encoderOut.BufferSize); err != nil {
		return errors.Wrap(err, "encoder pool")
	}

	c.st.rawSink = newSink(c, c.st.splitterPool)
	splitterRawOut.SetUserdata(c.st.rawSink)
	if err := splitterRawOut.Enable(c.rawCallback); err != nil {
		return errors.Wrap(err, "enable raw sink port")
	}

	c.st.compressedSink = newSink(c, c.st.encoderPool)
	encoderOut.SetUserdata(c.st.compressedSink)
	if err := encoderOut.Enable(c.compressedCallback); err != nil {
		return errors.Wrap(err, "enable compressed sink port")
	}

	log.Info("pipeline wired: camera -> splitter -> {raw sink, encoder -> jpeg sink}")
	return nil
}

// unwire rolls back whatever wire managed to create.
func (c *Controller) unwire() {
	if out := c.st.splitter.Outputs()[0]; out != nil {
		out.Disable()
	}
	if out := c.st.encoder.Outputs()[0]; out != nil {
		out.Disable()
	}
	if c.st.encoderConn != nil {
		c.st.encoderConn.Destroy()
		c.st.encoderConn = nil
	}
	if c.st.splitterConn != nil {
		c.st.splitterConn.Destroy()
		c.st.splitterConn = nil
	}
	if c.st.splitterPool != nil {
		c.st.splitterPool.Destroy()
		c.st.splitterPool = nil
	}
	if c.st.encoderPool != nil {
		c.st.encoderPool.Destroy()
		c.st.encoderPool = nil
	}
}

// prime hands every free buffer in the pool to the port.
func prime(port *mmal.Port, pool *mmal.Pool) {
	num := pool.Queue().Length()
	for q := 0; q < num; q++ {
		buffer := pool.Queue().Get()
		if buffer == nil {
			log.Error("unable to get a required buffer %d from pool queue", q)
			continue
		}
		if err := port.SendBuffer(buffer); err != nil {
			log.Error("unable to send a buffer to %s (%d): %v", port.Name(), q, err)
			buffer.Release()
		}
	}
}
