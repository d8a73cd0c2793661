// Package config loads and validates the capture configuration. Values
// outside their documented range are clamped back to the defaults rather
// than rejected, so a bad config file never prevents startup.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kaimana/picamd/internal/logging"
)

var log = logging.DefaultLogger.WithTag("config")

// Defaults and bounds.
const (
	DefaultWidth     = 640
	DefaultHeight    = 480
	DefaultQuality   = 70
	DefaultFramerate = 30
	DefaultBitrate   = 25000000

	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxQuality   = 100
	MaxFramerate = 90
	MaxBitrate   = 25000000
)

type Config struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Quality    int    `yaml:"quality"`
	Framerate  int    `yaml:"framerate"`
	Bitrate    int    `yaml:"bitrate"`
	Monochrome bool   `yaml:"monochrome"`
	HFlip      bool   `yaml:"hflip"`
	VFlip      bool   `yaml:"vflip"`

	// FrameIDPrefix is prepended to the "/camera" frame identifier stamped
	// on every published record.
	FrameIDPrefix string `yaml:"frame_id_prefix"`

	// Calibration is the path to the camera-info YAML file.
	Calibration string `yaml:"calibration"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	c := Config{}
	c.Normalize()
	return c
}

// Load reads a YAML config file and normalizes it.
func Load(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "parse config")
	}
	c.Normalize()
	return c, nil
}

// Normalize clamps out-of-range values to the defaults. Idempotent.
func (c *Config) Normalize() {
	if c.Width <= 0 || c.Width > MaxWidth {
		if c.Width != 0 {
			log.Warn("width %d out of range (1-%d), using %d", c.Width, MaxWidth, DefaultWidth)
		}
		c.Width = DefaultWidth
	}
	if c.Height <= 0 || c.Height > MaxHeight {
		if c.Height != 0 {
			log.Warn("height %d out of range (1-%d), using %d", c.Height, MaxHeight, DefaultHeight)
		}
		c.Height = DefaultHeight
	}
	if c.Quality <= 0 || c.Quality > MaxQuality {
		if c.Quality != 0 {
			log.Warn("quality %d out of range (1-%d), using %d", c.Quality, MaxQuality, DefaultQuality)
		}
		c.Quality = DefaultQuality
	}
	if c.Framerate <= 0 || c.Framerate > MaxFramerate {
		if c.Framerate != 0 {
			log.Warn("framerate %d out of range (1-%d), using %d", c.Framerate, MaxFramerate, DefaultFramerate)
		}
		c.Framerate = DefaultFramerate
	}
	if c.Bitrate <= 0 {
		c.Bitrate = DefaultBitrate
	} else if c.Bitrate > MaxBitrate {
		log.Warn("bitrate %d above limit, using %d", c.Bitrate, MaxBitrate)
		c.Bitrate = MaxBitrate
	}
}

// FrameID returns the frame identifier stamped on outgoing records.
func (c *Config) FrameID() string {
	return c.FrameIDPrefix + "/camera"
}
