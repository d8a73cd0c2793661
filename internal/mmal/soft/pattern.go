package soft

import (
	"fmt"
	"time"

	"github.com/fogleman/gg"

	"github.com/kaimana/picamd/internal/mmal"
)

// A FrameSource supplies the camera component with raw frame data in the
// layout implied by the committed format: one luma byte per pixel for
// I420, three interleaved bytes per pixel for RGB24.
type FrameSource interface {
	Frame(seq uint64, stamp time.Time, f mmal.Format) []byte
}

// patternSource renders a moving test card: a sweeping colored block over
// a neutral background, stamped with the frame sequence number.
type patternSource struct{}

func (patternSource) Frame(seq uint64, stamp time.Time, f mmal.Format) []byte {
	dc := gg.NewContext(f.Width, f.Height)

	dc.SetRGB(0.25, 0.25, 0.25)
	dc.Clear()

	// Block sweeps one full width every 60 frames.
	side := float64(f.Height) / 4
	x := float64(seq%60) / 60 * (float64(f.Width) - side)
	y := (float64(f.Height) - side) / 2
	dc.SetRGB(0.9, float64(seq%256)/255, 0.2)
	dc.DrawRectangle(x, y, side, side)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawString(fmt.Sprintf("%d", seq), 4, 13)

	img := dc.Image()
	bounds := img.Bounds()

	switch f.Encoding {
	case mmal.EncodingI420:
		out := make([]byte, f.Width*f.Height)
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				// BT.601 luma.
				out[i] = byte((299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000)
				i++
			}
		}
		return out
	default:
		out := make([]byte, 0, f.Width*f.Height*3)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				out = append(out, byte(r>>8), byte(g>>8), byte(b>>8))
			}
		}
		return out
	}
}

// flipFrame mirrors a packed frame in place. bpp is bytes per pixel.
func flipFrame(data []byte, width, height, bpp int, mirror mmal.MirrorMode) {
	stride := width * bpp
	if len(data) < stride*height {
		return
	}
	if mirror.VFlip {
		tmp := make([]byte, stride)
		for y := 0; y < height/2; y++ {
			top := data[y*stride : (y+1)*stride]
			bot := data[(height-1-y)*stride : (height-y)*stride]
			copy(tmp, top)
			copy(top, bot)
			copy(bot, tmp)
		}
	}
	if mirror.HFlip {
		px := make([]byte, bpp)
		for y := 0; y < height; y++ {
			row := data[y*stride : (y+1)*stride]
			for x := 0; x < width/2; x++ {
				a := row[x*bpp : (x+1)*bpp]
				b := row[(width-1-x)*bpp : (width-x)*bpp]
				copy(px, a)
				copy(a, b)
				copy(b, px)
			}
		}
	}
}
