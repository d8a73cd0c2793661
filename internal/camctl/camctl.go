// Package camctl holds the camera-control parameter set (exposure, white
// balance, flips, ...) applied to the camera component's control port
// during pipeline setup.
package camctl

import (
	"github.com/pkg/errors"

	"github.com/kaimana/picamd/internal/mmal"
)

// Well-known mode names accepted by the camera.
const (
	ExposureAuto  = "auto"
	ExposureNight = "night"
	ExposureSport = "sports"

	AWBAuto     = "auto"
	AWBSunlight = "sunlight"
	AWBTungsten = "tungsten"
)

// Params mirrors the vendor camera-control block. Zero values mean
// "driver default" except where noted.
type Params struct {
	Sharpness          int // -100..100
	Contrast           int // -100..100
	Brightness         int // 0..100
	Saturation         int // -100..100
	ISO                int // 100..800, 0 = auto
	VideoStabilisation bool
	ExposureComp       int    // -10..10
	ExposureMode       string // ExposureAuto etc.
	AWBMode            string // AWBAuto etc.
	Rotation           int    // 0, 90, 180, 270
	HFlip              bool
	VFlip              bool
	ShutterSpeed       int // microseconds, 0 = auto
}

// Defaults returns the parameter set used when nothing is configured.
func Defaults() Params {
	return Params{
		Brightness:   50,
		ExposureMode: ExposureAuto,
		AWBMode:      AWBAuto,
	}
}

// ApplyAll pushes the full parameter set onto the camera's control port.
func ApplyAll(cam mmal.Component, p Params) error {
	if p.Rotation%90 != 0 {
		return errors.Wrapf(mmal.ErrInvalid, "rotation %d", p.Rotation)
	}
	ctrl := cam.Control()
	if err := ctrl.SetParameter(mmal.ParamCamControl, p); err != nil {
		return err
	}
	return ctrl.SetParameter(mmal.ParamMirror, mmal.MirrorMode{
		HFlip: p.HFlip,
		VFlip: p.VFlip,
	})
}
