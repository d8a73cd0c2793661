package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultWidth, c.Width)
	assert.Equal(t, DefaultHeight, c.Height)
	assert.Equal(t, DefaultQuality, c.Quality)
	assert.Equal(t, DefaultFramerate, c.Framerate)
	assert.Equal(t, DefaultBitrate, c.Bitrate)
	assert.False(t, c.Monochrome)
	assert.Equal(t, "/camera", c.FrameID())
}

func TestNormalizeClamps(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "in range values survive",
			in:   Config{Width: 1280, Height: 720, Quality: 85, Framerate: 25, Bitrate: 1000000},
			want: Config{Width: 1280, Height: 720, Quality: 85, Framerate: 25, Bitrate: 1000000},
		},
		{
			name: "oversized geometry resets to defaults",
			in:   Config{Width: 4096, Height: 2160, Quality: 85, Framerate: 25, Bitrate: 1000000},
			want: Config{Width: DefaultWidth, Height: DefaultHeight, Quality: 85, Framerate: 25, Bitrate: 1000000},
		},
		{
			name: "negatives reset to defaults",
			in:   Config{Width: -1, Height: -1, Quality: -1, Framerate: -1, Bitrate: -1},
			want: Config{Width: DefaultWidth, Height: DefaultHeight, Quality: DefaultQuality, Framerate: DefaultFramerate, Bitrate: DefaultBitrate},
		},
		{
			name: "quality and framerate above max reset to defaults",
			in:   Config{Width: 640, Height: 480, Quality: 101, Framerate: 120, Bitrate: 1},
			want: Config{Width: 640, Height: 480, Quality: DefaultQuality, Framerate: DefaultFramerate, Bitrate: 1},
		},
		{
			name: "bitrate clamps to max, not default",
			in:   Config{Width: 640, Height: 480, Quality: 70, Framerate: 30, Bitrate: 99000000},
			want: Config{Width: 640, Height: 480, Quality: 70, Framerate: 30, Bitrate: MaxBitrate},
		},
		{
			name: "boundary values are in range",
			in:   Config{Width: MaxWidth, Height: MaxHeight, Quality: MaxQuality, Framerate: MaxFramerate, Bitrate: MaxBitrate},
			want: Config{Width: MaxWidth, Height: MaxHeight, Quality: MaxQuality, Framerate: MaxFramerate, Bitrate: MaxBitrate},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.in
			c.Normalize()
			assert.Equal(t, tc.want, c)

			// Clamping converges in one pass.
			again := c
			again.Normalize()
			assert.Equal(t, c, again)
		})
	}
}

func TestFrameIDPrefix(t *testing.T) {
	c := Config{FrameIDPrefix: "rig0"}
	assert.Equal(t, "rig0/camera", c.FrameID())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picamd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
width: 1280
height: 720
quality: 200
monochrome: true
frame_id_prefix: bench
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1280, c.Width)
	assert.Equal(t, 720, c.Height)
	assert.Equal(t, DefaultQuality, c.Quality, "out-of-range quality normalized on load")
	assert.Equal(t, DefaultFramerate, c.Framerate, "unset framerate defaulted on load")
	assert.True(t, c.Monochrome)
	assert.Equal(t, "bench/camera", c.FrameID())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: [not a number"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
