/*
Package pipeline owns the capture pipeline: a camera component feeding a
splitter through a tunneled connection, with the splitter's first output
delivering raw frames to a callback sink and its second output tunneled
into a JPEG encoder whose output feeds the compressed-frame sink.

The Controller drives the lifecycle: component creation, port format
negotiation, wiring, capture start, and teardown. Teardown always
disables ports before destroying connections, pools and components; a
delivery racing with teardown observes its disabled port and stops
without touching freed state.
*/
package pipeline

import (
	"github.com/kaimana/picamd/internal/logging"
)

var log = logging.DefaultLogger.WithTag("pipeline")

// Minimum buffers on any video output port, to avoid starving the driver.
const videoOutputBuffers = 3

// Encoder output buffers are fixed at 256 KiB, enough for a worst-case
// JPEG at full resolution; the committed minimum still wins if larger.
const encoderBufferSize = 256 << 10
