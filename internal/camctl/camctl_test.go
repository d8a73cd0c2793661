package camctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimana/picamd/internal/mmal"
	"github.com/kaimana/picamd/internal/mmal/soft"
)

func TestDefaults(t *testing.T) {
	p := Defaults()
	assert.Equal(t, 50, p.Brightness)
	assert.Equal(t, ExposureAuto, p.ExposureMode)
	assert.Equal(t, AWBAuto, p.AWBMode)
	assert.Zero(t, p.Rotation)
}

func TestApplyAll(t *testing.T) {
	cam := soft.NewCamera()
	p := Defaults()
	p.HFlip = true
	require.NoError(t, ApplyAll(cam, p))

	v, ok := cam.Control().Parameter(mmal.ParamMirror)
	require.True(t, ok)
	assert.Equal(t, mmal.MirrorMode{HFlip: true}, v)

	v, ok = cam.Control().Parameter(mmal.ParamCamControl)
	require.True(t, ok)
	assert.Equal(t, p, v)
}

func TestApplyAllRejectsBadRotation(t *testing.T) {
	cam := soft.NewCamera()
	p := Defaults()
	p.Rotation = 45
	assert.Error(t, ApplyAll(cam, p))

	p.Rotation = 270
	assert.NoError(t, ApplyAll(cam, p))
}
