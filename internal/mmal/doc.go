/*
Package mmal models the vendor media-processing driver that the capture
pipeline is built on: components with input/output ports, negotiated port
formats, tunneled connections between ports, fixed-capacity buffer pools,
and driver-invoked buffer callbacks.

The API mirrors the contract of the Broadcom MMAL driver on the Raspberry
Pi, but the driver side is pluggable: component implementations register
themselves by name (see RegisterComponent), and the soft subpackage
provides an in-process implementation with one producer goroutine per
output port.

Buffer ownership follows the driver contract exactly. A buffer delivered
to a port callback must be returned to the driver with Buffer.Release();
keeping the port supplied is a separate step, performed by drawing a fresh
buffer from the pool's queue and handing it to Port.SendBuffer. The two
operations are never conflated.
*/
package mmal
