package mmal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameBytes(t *testing.T) {
	f := Format{Encoding: EncodingRGB24, Width: 4, Height: 2}
	assert.Equal(t, 24, f.FrameBytes())

	f.Encoding = EncodingI420
	assert.Equal(t, 8, f.FrameBytes())

	f.Encoding = EncodingMJPEG
	assert.Zero(t, f.FrameBytes())
	f.Encoding = EncodingOpaque
	assert.Zero(t, f.FrameBytes())
}

func TestFormatCopyFrom(t *testing.T) {
	src := Format{Encoding: EncodingI420, Width: 640, Height: 480, FrameRate: Rational{30, 1}, Bitrate: 100}
	var dst Format
	dst.CopyFrom(&src)
	assert.Equal(t, src, dst)

	dst.Width = 1280
	assert.Equal(t, 640, src.Width, "copies do not alias")
}
