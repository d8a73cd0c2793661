package mmal

import "github.com/pkg/errors"

// Sentinel errors corresponding to driver status codes.
var (
	ErrNoMemory       = errors.New("mmal: out of buffer headers")
	ErrInvalid        = errors.New("mmal: invalid argument")
	ErrNotReady       = errors.New("mmal: component not ready")
	ErrUnsupported    = errors.New("mmal: unsupported encoding")
	ErrPortEnabled    = errors.New("mmal: port already enabled")
	ErrPortNotEnabled = errors.New("mmal: port not enabled")
	ErrPortConnected  = errors.New("mmal: port is tunneled to a connection")
	ErrDestroyed      = errors.New("mmal: object already destroyed")
)
