package mmal

import (
	"sort"

	"github.com/pkg/errors"
)

// Default component names, matching the vendor driver's naming scheme.
const (
	ComponentCamera   = "vc.ril.camera"
	ComponentSplitter = "vc.ril.video_splitter"
	ComponentEncoder  = "vc.ril.video_encode"
)

// CameraConfig is the camera-wide configuration block, set on the camera
// component's control port under ParamCameraConfig before port formats
// are committed.
type CameraConfig struct {
	MaxStillsWidth  int
	MaxStillsHeight int
	MaxVideoWidth   int
	MaxVideoHeight  int
	NumVideoFrames  int
}

// Component is a processing unit with control, input and output ports.
// Components are created through NewComponent, enabled once their port
// formats are committed, and destroyed only after their ports have been
// disabled and their connections destroyed.
type Component interface {
	Name() string
	Control() *Port
	Inputs() []*Port
	Outputs() []*Port

	Enable() error
	Disable() error
	Destroy() error
}

// Factory creates a component instance for a registered name.
type Factory func() (Component, error)

var registry = map[string]Factory{}

// RegisterComponent makes a component implementation available under the
// given driver name. Implementations register themselves in init().
func RegisterComponent(name string, f Factory) {
	registry[name] = f
}

// NewComponent instantiates the component registered under name.
func NewComponent(name string) (Component, error) {
	f, ok := registry[name]
	if !ok {
		var names []string
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		log.Error("component %q not registered (have %v)", name, names)
		return nil, errors.Wrapf(ErrUnsupported, "component %q not registered", name)
	}
	return f()
}
