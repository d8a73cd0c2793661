package soft

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/logging"
	"github.com/kaimana/picamd/internal/mmal"
)

var log = logging.DefaultLogger.WithTag("soft")

func init() {
	mmal.RegisterComponent(mmal.ComponentCamera, func() (mmal.Component, error) {
		return NewCamera(), nil
	})
	mmal.RegisterComponent(mmal.ComponentSplitter, func() (mmal.Component, error) {
		return NewSplitter(), nil
	})
	mmal.RegisterComponent(mmal.ComponentEncoder, func() (mmal.Component, error) {
		return NewEncoder(), nil
	})
}

// component carries the state shared by all soft components.
type component struct {
	name    string
	control *mmal.Port
	inputs  []*mmal.Port
	outputs []*mmal.Port

	mu        sync.Mutex
	enabled   bool
	destroyed bool
}

func (c *component) Name() string {
	return c.name
}

func (c *component) Control() *mmal.Port {
	return c.control
}

func (c *component) Inputs() []*mmal.Port {
	return c.inputs
}

func (c *component) Outputs() []*mmal.Port {
	return c.outputs
}

func (c *component) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return errors.Wrap(mmal.ErrDestroyed, c.name)
	}
	c.enabled = true
	return nil
}

func (c *component) Disable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
	return nil
}

func (c *component) isEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && !c.destroyed
}

func (c *component) markDestroyed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return errors.Wrap(mmal.ErrDestroyed, c.name)
	}
	c.enabled = false
	c.destroyed = true
	return nil
}
