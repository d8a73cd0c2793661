// Package msg defines the records published for every completed frame:
// a raw image or compressed image, always accompanied by a camera-info
// record carrying the calibration for the capture session.
package msg

import "time"

// Header carries per-frame provenance. Seq increases strictly by one per
// emitting stream; raw and compressed streams count independently.
type Header struct {
	Seq     uint64    `json:"seq"`
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"`
}

// Raw image encodings.
const (
	EncodingMono8 = "mono8" // 1 byte per pixel, single plane
	EncodingRGB8  = "rgb8"  // 3 bytes per pixel, interleaved
)

// RawImage is one uncompressed camera frame.
type RawImage struct {
	Header   Header `json:"header"`
	Encoding string `json:"encoding"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Step     int    `json:"step"` // row stride in bytes
	Data     []byte `json:"data"`
}

// CompressedImage is one compressed camera frame. Aborted is set when the
// driver flagged a transmission failure and the payload may be truncated.
type CompressedImage struct {
	Header  Header `json:"header"`
	Format  string `json:"format"`
	Data    []byte `json:"data"`
	Aborted bool   `json:"aborted,omitempty"`
}

// CameraInfo carries the camera calibration, republished alongside every
// frame of either stream so consumers can pair images with intrinsics.
type CameraInfo struct {
	Header          Header      `json:"header"`
	Height          int         `json:"height"`
	Width           int         `json:"width"`
	DistortionModel string      `json:"distortion_model"`
	D               []float64   `json:"d"`
	K               [9]float64  `json:"k"`
	R               [9]float64  `json:"r"`
	P               [12]float64 `json:"p"`
}
