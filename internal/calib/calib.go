// Package calib loads camera calibration files in the conventional
// camera-info YAML layout (camera_matrix/distortion_coefficients/
// rectification_matrix/projection_matrix with rows, cols, data).
package calib

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kaimana/picamd/internal/logging"
	"github.com/kaimana/picamd/internal/msg"
)

var log = logging.DefaultLogger.WithTag("calib")

type matrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

type file struct {
	ImageWidth      int    `yaml:"image_width"`
	ImageHeight     int    `yaml:"image_height"`
	CameraName      string `yaml:"camera_name"`
	DistortionModel string `yaml:"distortion_model"`
	CameraMatrix    matrix `yaml:"camera_matrix"`
	Distortion      matrix `yaml:"distortion_coefficients"`
	Rectification   matrix `yaml:"rectification_matrix"`
	Projection      matrix `yaml:"projection_matrix"`
}

// Load reads a calibration file into a CameraInfo template. A missing file
// is not an error: capture runs uncalibrated with a zeroed record, matching
// the behavior consumers of camera-info expect.
func Load(path string) (msg.CameraInfo, error) {
	var info msg.CameraInfo
	if path == "" {
		return info, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("calibration file %s missing, camera not calibrated", path)
			return info, nil
		}
		return info, errors.Wrap(err, "read calibration")
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return info, errors.Wrap(err, "parse calibration")
	}

	info.Width = f.ImageWidth
	info.Height = f.ImageHeight
	info.DistortionModel = f.DistortionModel
	info.D = append(info.D, f.Distortion.Data...)
	copy(info.K[:], f.CameraMatrix.Data)
	copy(info.R[:], f.Rectification.Data)
	copy(info.P[:], f.Projection.Data)

	log.Info("camera %q calibrated from %s", f.CameraName, path)
	return info, nil
}
