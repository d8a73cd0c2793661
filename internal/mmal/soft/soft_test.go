package soft

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimana/picamd/internal/mmal"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{
		mmal.ComponentCamera,
		mmal.ComponentSplitter,
		mmal.ComponentEncoder,
	} {
		comp, err := mmal.NewComponent(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, comp.Name())
		require.NoError(t, comp.Destroy())
	}

	_, err := mmal.NewComponent("vc.ril.resize")
	assert.Error(t, err)
}

func TestCameraProducesFrames(t *testing.T) {
	cam := NewCamera()
	video := cam.VideoPort()
	video.Format.Encoding = mmal.EncodingI420
	video.Format.Width = 16
	video.Format.Height = 8
	video.Format.FrameRate = mmal.Rational{Num: 60, Den: 1}
	require.NoError(t, video.CommitFormat())
	video.BufferNum = 3

	sink := mmal.NewPort("sink:in:0", mmal.DirInput)
	sink.BufferNum = 4
	conn, err := mmal.NewConnection(video, sink)
	require.NoError(t, err)
	defer conn.Destroy()

	require.NoError(t, cam.Enable())

	// Capture requires an enabled component.
	require.NoError(t, video.SetParameter(mmal.ParamCapture, true))
	defer video.SetParameter(mmal.ParamCapture, false)

	frames := sink.Frames()
	for i := 0; i < 3; i++ {
		select {
		case f := <-frames:
			assert.Len(t, f.Data, 16*8, "I420 frames carry the luma plane")
			assert.NotZero(t, f.Flags&mmal.FlagFrameEnd)
			assert.False(t, f.PTS.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatal("no frame from camera")
		}
	}
}

func TestCameraCaptureRequiresEnable(t *testing.T) {
	cam := NewCamera()
	video := cam.VideoPort()
	video.Format.Encoding = mmal.EncodingRGB24
	video.Format.Width = 4
	video.Format.Height = 4
	require.NoError(t, video.CommitFormat())

	err := video.SetParameter(mmal.ParamCapture, true)
	assert.Error(t, err, "shutter before component enable")
}

func TestCameraRejectsBadFormats(t *testing.T) {
	cam := NewCamera()
	video := cam.VideoPort()
	video.Format.Encoding = mmal.EncodingMJPEG
	video.Format.Width = 4
	video.Format.Height = 4
	assert.Error(t, video.CommitFormat())

	still := cam.Outputs()[CameraStillPort]
	still.Format.Encoding = mmal.EncodingRGB24
	assert.Error(t, still.CommitFormat())
	still.Format.Encoding = mmal.EncodingOpaque
	assert.NoError(t, still.CommitFormat())
}

func TestSplitterFansOut(t *testing.T) {
	s := NewSplitter()

	src := mmal.NewPort("src:out:0", mmal.DirOutput)
	in := s.Inputs()[0]
	in.Format.Encoding = mmal.EncodingRGB24
	in.Format.Width = 2
	in.Format.Height = 2
	in.BufferNum = 3
	require.NoError(t, in.CommitFormat())

	// Output 0 terminates in a callback, output 1 in a tunnel.
	out0, out1 := s.Outputs()[0], s.Outputs()[1]
	pool, err := mmal.NewPool(2, 16)
	require.NoError(t, err)

	got := make(chan []byte, 2)
	require.NoError(t, out0.Enable(func(p *mmal.Port, b *mmal.Buffer) {
		got <- append([]byte(nil), b.Data()...)
		b.Release()
	}))
	require.NoError(t, out0.SendBuffer(pool.Queue().Get()))

	dst := mmal.NewPort("dst:in:0", mmal.DirInput)
	dst.BufferNum = 2
	tunnel, err := mmal.NewConnection(out1, dst)
	require.NoError(t, err)
	defer tunnel.Destroy()

	conn, err := mmal.NewConnection(src, in)
	require.NoError(t, err)
	defer conn.Destroy()

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	require.NoError(t, src.Produce(mmal.Frame{Data: payload, Flags: mmal.FlagFrameEnd}))

	select {
	case data := <-got:
		assert.Equal(t, payload, data)
	case <-time.After(2 * time.Second):
		t.Fatal("callback output never delivered")
	}
	select {
	case f := <-dst.Frames():
		assert.Equal(t, payload, f.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("tunneled output never delivered")
	}
}

func TestEncoderFragmentsJPEG(t *testing.T) {
	e := NewEncoder()

	in := e.Inputs()[0]
	in.Format.Encoding = mmal.EncodingRGB24
	in.Format.Width = 32
	in.Format.Height = 16
	require.NoError(t, in.CommitFormat())

	out := e.OutputPort()
	out.Format.Encoding = mmal.EncodingMJPEG
	require.NoError(t, out.CommitFormat())
	// Tiny buffers force multi-fragment frames.
	out.BufferSize = 64
	require.NoError(t, out.SetParameter(mmal.ParamJPEGQFactor, 80))

	pool, err := mmal.NewPool(16, out.BufferSize)
	require.NoError(t, err)

	type frag struct {
		data  []byte
		flags mmal.BufferFlags
	}
	frags := make(chan frag, 32)
	require.NoError(t, out.Enable(func(p *mmal.Port, b *mmal.Buffer) {
		frags <- frag{append([]byte(nil), b.Data()...), b.Flags}
		b.Release()
		if nb := pool.Queue().Get(); nb != nil {
			p.SendBuffer(nb)
		}
	}))
	for i := 0; i < pool.BufferNum(); i++ {
		require.NoError(t, out.SendBuffer(pool.Queue().Get()))
	}

	src := mmal.NewPort("src:out:0", mmal.DirOutput)
	conn, err := mmal.NewConnection(src, in)
	require.NoError(t, err)
	defer conn.Destroy()

	raw := make([]byte, 32*16*3)
	for i := range raw {
		raw[i] = byte(i)
	}
	require.NoError(t, src.Produce(mmal.Frame{Data: raw, PTS: time.Now()}))

	var assembled []byte
	count := 0
	for {
		select {
		case f := <-frags:
			count++
			assembled = append(assembled, f.data...)
			if f.flags&mmal.FlagFrameEnd != 0 {
				goto done
			}
		case <-time.After(2 * time.Second):
			t.Fatal("encoder never finished the frame")
		}
	}
done:
	assert.Greater(t, count, 1, "frame should span multiple fragments")
	assert.True(t, bytes.HasPrefix(assembled, []byte{0xff, 0xd8}), "JPEG SOI")
	assert.True(t, bytes.HasSuffix(assembled, []byte{0xff, 0xd9}), "JPEG EOI")
}

func TestEncoderDefersFailureMarkerUntilBuffersReturn(t *testing.T) {
	e := NewEncoder()

	in := e.Inputs()[0]
	in.Format.Encoding = mmal.EncodingRGB24
	in.Format.Width = 32
	in.Format.Height = 16
	require.NoError(t, in.CommitFormat())

	out := e.OutputPort()
	out.Format.Encoding = mmal.EncodingMJPEG
	require.NoError(t, out.CommitFormat())
	out.BufferSize = 64

	type frag struct {
		data  []byte
		flags mmal.BufferFlags
	}
	frags := make(chan frag, 64)
	// The callback never resupplies, so the armed buffers are all the
	// port gets until the test re-arms it.
	require.NoError(t, out.Enable(func(p *mmal.Port, b *mmal.Buffer) {
		frags <- frag{append([]byte(nil), b.Data()...), b.Flags}
		b.Release()
	}))

	starved, err := mmal.NewPool(2, 64)
	require.NoError(t, err)
	for i := 0; i < starved.BufferNum(); i++ {
		require.NoError(t, out.SendBuffer(starved.Queue().Get()))
	}

	src := mmal.NewPort("src:out:0", mmal.DirOutput)
	conn, err := mmal.NewConnection(src, in)
	require.NoError(t, err)
	defer conn.Destroy()

	raw := make([]byte, 32*16*3)
	for i := range raw {
		raw[i] = byte(i)
	}

	// First frame exhausts the two armed buffers mid-frame.
	require.NoError(t, src.Produce(mmal.Frame{Data: raw, PTS: time.Now()}))
	for i := 0; i < 2; i++ {
		select {
		case f := <-frags:
			assert.Zero(t, f.flags&mmal.FlagFrameEnd, "frame must not complete")
		case <-time.After(2 * time.Second):
			t.Fatal("never got the partial frame's fragments")
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for out.Dropped() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fragment drop never observed")
		}
		time.Sleep(time.Millisecond)
	}

	// Re-arm generously and send a second frame. The failure marker for
	// the abandoned frame must arrive first, then the full second frame.
	pool, err := mmal.NewPool(32, 64)
	require.NoError(t, err)
	for i := 0; i < pool.BufferNum(); i++ {
		require.NoError(t, out.SendBuffer(pool.Queue().Get()))
	}
	require.NoError(t, src.Produce(mmal.Frame{Data: raw, PTS: time.Now()}))

	var marker frag
	select {
	case marker = <-frags:
	case <-time.After(2 * time.Second):
		t.Fatal("no failure marker")
	}
	assert.NotZero(t, marker.flags&mmal.FlagTransmissionFailed)
	assert.Empty(t, marker.data, "marker carries no payload")

	var assembled []byte
	for {
		select {
		case f := <-frags:
			assert.Zero(t, f.flags&mmal.FlagTransmissionFailed)
			assembled = append(assembled, f.data...)
			if f.flags&mmal.FlagFrameEnd != 0 {
				assert.True(t, bytes.HasPrefix(assembled, []byte{0xff, 0xd8}), "JPEG SOI")
				assert.True(t, bytes.HasSuffix(assembled, []byte{0xff, 0xd9}), "JPEG EOI")
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("second frame never completed")
		}
	}
}

func TestFlipFrame(t *testing.T) {
	// 3x2 mono image.
	data := []byte{
		1, 2, 3,
		4, 5, 6,
	}

	h := append([]byte(nil), data...)
	flipFrame(h, 3, 2, 1, mmal.MirrorMode{HFlip: true})
	assert.Equal(t, []byte{3, 2, 1, 6, 5, 4}, h)

	v := append([]byte(nil), data...)
	flipFrame(v, 3, 2, 1, mmal.MirrorMode{VFlip: true})
	assert.Equal(t, []byte{4, 5, 6, 1, 2, 3}, v)

	// 2x1 RGB pixels swap as whole pixels.
	rgb := []byte{1, 2, 3, 4, 5, 6}
	flipFrame(rgb, 2, 1, 3, mmal.MirrorMode{HFlip: true})
	assert.Equal(t, []byte{4, 5, 6, 1, 2, 3}, rgb)
}

func TestPatternSourceGeometry(t *testing.T) {
	var src patternSource

	mono := src.Frame(0, time.Now(), mmal.Format{Encoding: mmal.EncodingI420, Width: 8, Height: 4})
	assert.Len(t, mono, 8*4)

	rgb := src.Frame(0, time.Now(), mmal.Format{Encoding: mmal.EncodingRGB24, Width: 8, Height: 4})
	assert.Len(t, rgb, 8*4*3)
}
