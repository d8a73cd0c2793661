package mmal

// Encoding identifies a pixel or compressed data layout, in the driver's
// FourCC style.
type Encoding string

const (
	EncodingI420   Encoding = "I420" // planar YUV 4:2:0 (luma plane first)
	EncodingRGB24  Encoding = "RGB3" // interleaved 8-bit RGB
	EncodingOpaque Encoding = "OPQV" // driver-internal frames, not mappable
	EncodingMJPEG  Encoding = "MJPG" // JPEG-compressed frames
)

// Rational is a frame rate expressed as numerator/denominator.
type Rational struct {
	Num int
	Den int
}

// Format describes the elementary stream carried by a port. The struct
// attached to a port may be mutated freely; changes take effect only once
// Port.CommitFormat is called.
type Format struct {
	Encoding  Encoding
	Width     int
	Height    int
	FrameRate Rational
	Bitrate   int
}

// CopyFrom overwrites f with the contents of src, like mmal_format_copy.
func (f *Format) CopyFrom(src *Format) {
	*f = *src
}

// FrameBytes returns the size in bytes of one uncompressed frame, or 0 for
// encodings without a fixed frame size.
func (f *Format) FrameBytes() int {
	switch f.Encoding {
	case EncodingI420:
		// Only the luma plane is delivered to application buffers.
		return f.Width * f.Height
	case EncodingRGB24:
		return f.Width * f.Height * 3
	default:
		return 0
	}
}
