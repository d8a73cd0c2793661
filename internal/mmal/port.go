package mmal

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/logging"
)

var log = logging.DefaultLogger.WithTag("mmal")

// Direction of data flow through a port, from the component's point of view.
type Direction int

const (
	DirInput Direction = iota
	DirOutput
	DirControl
)

// Callback receives filled buffers from the driver on output ports that are
// not tunneled. It runs on the producing component's goroutine, so it must
// not block. The callback owns the buffer until it calls Buffer.Release.
type Callback func(port *Port, buf *Buffer)

// Well-known parameter identifiers.
const (
	ParamCapture      = "capture"        // bool: shutter on the camera video port
	ParamVideoBitrate = "video-bitrate"  // int: target bitrate on encoder output
	ParamJPEGQFactor  = "jpeg-q-factor"  // int: JPEG quality 1-100 on encoder output
	ParamCameraConfig = "camera-config"  // component-defined struct on camera control
	ParamMirror       = "mirror"         // MirrorMode on camera control
	ParamCamControl   = "camera-control" // component-defined struct on camera control
)

// MirrorMode selects horizontal/vertical flipping on the camera.
type MirrorMode struct {
	HFlip bool
	VFlip bool
}

// Port is a directional endpoint of a component. A port carries a mutable
// Format that takes effect on CommitFormat, and becomes active when either
// enabled with a callback or wired into a Connection. A port never has
// both a callback and a connection.
type Port struct {
	// Format is mutated in place and applied by CommitFormat.
	Format *Format

	// Requested buffering, set by the application between commit and
	// enable. Never sized below the committed minima.
	BufferNum  int
	BufferSize int

	// Driver-reported buffering bounds, populated by CommitFormat.
	BufferNumMin         int
	BufferNumRecommended int
	BufferSizeMin        int
	BufferSizeRecommended int

	name string
	dir  Direction

	mu       sync.Mutex
	enabled  bool
	cb       Callback
	conn     *Connection
	armed    *Queue
	userdata interface{}
	params   map[string]interface{}

	committed Format
	dropped   uint64

	// Component hooks.
	onCommit    func(*Port) error
	onParameter func(*Port, string, interface{}) error
	onConnect   func(*Port)
}

// NewPort constructs a port for a component implementation. The hooks let
// the component validate formats and react to parameter changes; any of
// them may be nil.
func NewPort(name string, dir Direction) *Port {
	return &Port{
		Format: &Format{},
		name:   name,
		dir:    dir,
		armed:  NewQueue(),
		params: make(map[string]interface{}),
	}
}

func (p *Port) Name() string {
	return p.name
}

func (p *Port) Direction() Direction {
	return p.dir
}

// SetHooks installs the component-side hooks. Intended for component
// implementations only.
func (p *Port) SetHooks(onCommit func(*Port) error, onParameter func(*Port, string, interface{}) error, onConnect func(*Port)) {
	p.onCommit = onCommit
	p.onParameter = onParameter
	p.onConnect = onConnect
}

// CommitFormat applies the pending Format. The component validates the
// encoding and publishes its buffering bounds on the port.
func (p *Port) CommitFormat() error {
	if p.onCommit != nil {
		if err := p.onCommit(p); err != nil {
			return errors.Wrapf(err, "commit format on %s", p.name)
		}
	}
	p.mu.Lock()
	p.committed = *p.Format
	p.mu.Unlock()
	return nil
}

// CommittedFormat returns the format in effect since the last commit.
func (p *Port) CommittedFormat() Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed
}

// Enable activates the port and registers the delivery callback. Ports
// feeding a Connection are enabled by the connection instead and must not
// be enabled directly.
func (p *Port) Enable(cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return errors.Wrap(ErrPortEnabled, p.name)
	}
	if p.conn != nil {
		return errors.Wrap(ErrPortConnected, p.name)
	}
	if p.dir == DirOutput && cb == nil {
		return errors.Wrapf(ErrInvalid, "enable %s without callback", p.name)
	}
	p.cb = cb
	p.enabled = true
	return nil
}

// Disable deactivates the port and returns any armed buffers to their
// pools. A delivery racing with Disable may still invoke the callback
// once; the callback observes Enabled() == false and must not resupply.
func (p *Port) Disable() error {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return nil
	}
	p.enabled = false
	p.cb = nil
	p.mu.Unlock()

	// Flush buffers the driver never filled.
	for {
		b := p.armed.Get()
		if b == nil {
			break
		}
		b.Release()
	}
	return nil
}

// Enabled reports whether the port is currently active. Safe to call from
// delivery callbacks.
func (p *Port) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SendBuffer arms the port with an empty buffer for the driver to fill.
func (p *Port) SendBuffer(b *Buffer) error {
	if b == nil {
		return errors.Wrap(ErrInvalid, "nil buffer")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return errors.Wrap(ErrPortNotEnabled, p.name)
	}
	if p.conn != nil {
		return errors.Wrap(ErrPortConnected, p.name)
	}
	p.armed.Put(b)
	return nil
}

// SetUserdata attaches opaque application state, made available to the
// delivery callback via Userdata.
func (p *Port) SetUserdata(v interface{}) {
	p.mu.Lock()
	p.userdata = v
	p.mu.Unlock()
}

func (p *Port) Userdata() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userdata
}

// SetParameter sets a driver parameter on the port.
func (p *Port) SetParameter(id string, v interface{}) error {
	if p.onParameter != nil {
		if err := p.onParameter(p, id, v); err != nil {
			return errors.Wrapf(err, "set %s on %s", id, p.name)
		}
	}
	p.mu.Lock()
	p.params[id] = v
	p.mu.Unlock()
	return nil
}

// Parameter reads back a previously set parameter.
func (p *Port) Parameter(id string) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.params[id]
	return v, ok
}

// BoolParameter reads a boolean parameter, false when unset.
func (p *Port) BoolParameter(id string) bool {
	v, ok := p.Parameter(id)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IntParameter reads an integer parameter, def when unset.
func (p *Port) IntParameter(id string, def int) int {
	v, ok := p.Parameter(id)
	if !ok {
		return def
	}
	n, _ := v.(int)
	return n
}

// Dropped returns the count of frames discarded because no buffer was
// armed at delivery time.
func (p *Port) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Produce routes one driver frame through the port: into the tunneled
// connection if one is attached, otherwise into an armed application
// buffer handed to the callback. Intended for component implementations.
// The callback runs on the caller's goroutine, outside the port lock, so
// a concurrent Disable is observable from inside the callback.
func (p *Port) Produce(f Frame) error {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return errors.Wrap(ErrPortNotEnabled, p.name)
	}
	conn := p.conn
	cb := p.cb
	p.mu.Unlock()

	if conn != nil {
		return conn.send(f)
	}

	buf := p.armed.Get()
	if buf == nil {
		atomic.AddUint64(&p.dropped, 1)
		return errors.Wrapf(ErrNoMemory, "no buffer armed on %s", p.name)
	}
	buf.fill(f)
	if cb == nil {
		// Should be unreachable: Enable requires a callback on outputs.
		buf.Release()
		return errors.Wrap(ErrInvalid, p.name)
	}
	cb(p, buf)
	return nil
}

// Frames exposes the stream arriving over a tunneled connection, for the
// consuming component's worker goroutine. Nil when the port is not
// connected. The channel is closed when the connection is destroyed.
func (p *Port) Frames() <-chan Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.ch
}

func (p *Port) attach(c *Connection) error {
	p.mu.Lock()
	if p.enabled {
		p.mu.Unlock()
		return errors.Wrap(ErrPortEnabled, p.name)
	}
	if p.conn != nil {
		p.mu.Unlock()
		return errors.Wrap(ErrPortConnected, p.name)
	}
	p.conn = c
	p.enabled = true
	onConnect := p.onConnect
	p.mu.Unlock()

	if onConnect != nil {
		onConnect(p)
	}
	return nil
}

func (p *Port) detach() {
	p.mu.Lock()
	p.conn = nil
	p.enabled = false
	p.mu.Unlock()
}
