package mmal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortEnableDisable(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)

	// Output ports need a callback.
	assert.Error(t, p.Enable(nil))

	cb := func(*Port, *Buffer) {}
	require.NoError(t, p.Enable(cb))
	assert.True(t, p.Enabled())
	assert.Error(t, p.Enable(cb), "double enable")

	require.NoError(t, p.Disable())
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Disable(), "disable is idempotent")
}

func TestSendBufferRequiresEnabledPort(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	pool, err := NewPool(1, 16)
	require.NoError(t, err)

	buf := pool.Queue().Get()
	assert.Error(t, p.SendBuffer(buf))
	buf.Release()
}

func TestProduceDeliversToCallback(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	pool, err := NewPool(2, 16)
	require.NoError(t, err)

	var got []byte
	var gotFlags BufferFlags
	require.NoError(t, p.Enable(func(port *Port, buf *Buffer) {
		got = append([]byte(nil), buf.Data()...)
		gotFlags = buf.Flags
		buf.Release()
	}))

	require.NoError(t, p.SendBuffer(pool.Queue().Get()))

	pts := time.Now()
	err = p.Produce(Frame{Data: []byte("hello"), Flags: FlagFrameEnd, PTS: pts})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, FlagFrameEnd, gotFlags)
	assert.Equal(t, 2, pool.Free(), "callback released the buffer home")
}

func TestProduceWithoutArmedBufferDrops(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	require.NoError(t, p.Enable(func(*Port, *Buffer) {
		t.Fatal("callback must not run without an armed buffer")
	}))

	err := p.Produce(Frame{Data: []byte("x")})
	assert.Error(t, err)
	assert.EqualValues(t, 1, p.Dropped())
}

func TestProduceOnDisabledPort(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	err := p.Produce(Frame{Data: []byte("x")})
	assert.Error(t, err)
	assert.EqualValues(t, 0, p.Dropped(), "disabled port is not a buffer drop")
}

func TestDisableFlushesArmedBuffers(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	pool, err := NewPool(3, 16)
	require.NoError(t, err)

	require.NoError(t, p.Enable(func(*Port, *Buffer) {}))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.SendBuffer(pool.Queue().Get()))
	}
	assert.Equal(t, 0, pool.Free())

	require.NoError(t, p.Disable())
	assert.Equal(t, 3, pool.Free(), "armed buffers return home on disable")
}

func TestBufferAccounting(t *testing.T) {
	// free-in-pool + armed-at-driver + held-by-callback == N throughout.
	const n = 4
	p := NewPort("test:out:0", DirOutput)
	pool, err := NewPool(n, 32)
	require.NoError(t, err)

	held := 0
	require.NoError(t, p.Enable(func(port *Port, buf *Buffer) {
		held++
		assert.Equal(t, n, pool.Free()+armed(p)+held)
		buf.Release()
		held--
		assert.Equal(t, n, pool.Free()+armed(p)+held)
	}))

	for i := 0; i < n; i++ {
		require.NoError(t, p.SendBuffer(pool.Queue().Get()))
	}
	assert.Equal(t, n, pool.Free()+armed(p))

	for i := 0; i < n; i++ {
		require.NoError(t, p.Produce(Frame{Data: []byte{byte(i)}}))
	}
	assert.Equal(t, n, pool.Free())
}

func armed(p *Port) int {
	return p.armed.Length()
}

func TestCommitFormatRunsHook(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	p.SetHooks(func(port *Port) error {
		port.BufferNumMin = 1
		port.BufferNumRecommended = 3
		port.BufferSizeMin = 64
		port.BufferSizeRecommended = 128
		return nil
	}, nil, nil)

	p.Format.Encoding = EncodingRGB24
	p.Format.Width = 4
	p.Format.Height = 2
	require.NoError(t, p.CommitFormat())

	assert.Equal(t, 3, p.BufferNumRecommended)
	assert.Equal(t, 128, p.BufferSizeRecommended)
	assert.Equal(t, EncodingRGB24, p.CommittedFormat().Encoding)
}

func TestUserdataRoundTrip(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	assert.Nil(t, p.Userdata())
	type ud struct{ n int }
	p.SetUserdata(&ud{7})
	got, ok := p.Userdata().(*ud)
	require.True(t, ok)
	assert.Equal(t, 7, got.n)
}

func TestParameters(t *testing.T) {
	p := NewPort("test:out:0", DirOutput)
	require.NoError(t, p.SetParameter(ParamCapture, true))
	require.NoError(t, p.SetParameter(ParamJPEGQFactor, 85))

	assert.True(t, p.BoolParameter(ParamCapture))
	assert.Equal(t, 85, p.IntParameter(ParamJPEGQFactor, 70))
	assert.Equal(t, 70, p.IntParameter(ParamVideoBitrate, 70))
}
