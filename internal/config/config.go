// Package config loads and validates the application configuration.
//
// Configuration is a single YAML file with per-component sections; every
// field has a sane default so an empty file (or no file at all) yields a
// runnable setup pointing at /dev/video0.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Pose    PoseConfig    `yaml:"pose"`
	Trail   TrailConfig   `yaml:"trail"`
	Display DisplayConfig `yaml:"display"`
}

// CameraConfig configures webcam capture.
type CameraConfig struct {
	// Device is the V4L2 device path.
	Device string `yaml:"device"`
	// Resolution is one of "480p", "720p", "1080p".
	Resolution string `yaml:"resolution"`
	// FPS is the capture frame rate (1-60).
	FPS float64 `yaml:"fps"`
}

// PoseConfig configures the pose worker subprocess. The detector tuning
// fields are passed through to the worker opaquely.
type PoseConfig struct {
	// Script is the worker launcher path.
	Script string `yaml:"script"`
	// ModelComplexity selects the MediaPipe model (0=lite, 1=full, 2=heavy).
	ModelComplexity int `yaml:"model_complexity"`
	// MinDetectionConfidence is the detection threshold (0-1).
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	// MinTrackingConfidence is the tracking threshold (0-1).
	MinTrackingConfidence float64 `yaml:"min_tracking_confidence"`
	// SmoothLandmarks enables the detector's temporal smoothing.
	SmoothLandmarks bool `yaml:"smooth_landmarks"`
}

// TrailConfig configures the trail renderer and history.
type TrailConfig struct {
	// Layers is the number of skeleton copies.
	Layers int `yaml:"layers"`
	// MaxDelayMS is the oldest layer's delay in milliseconds (minimum 1;
	// the renderer treats 0 as "use the default", so a zero here would be
	// silently replaced rather than honored).
	MaxDelayMS int64 `yaml:"max_delay_ms"`
	// StalenessMS is the sample hide threshold in milliseconds.
	StalenessMS int64 `yaml:"staleness_ms"`
	// HistoryCapacity is the landmark history bound.
	HistoryCapacity int `yaml:"history_capacity"`
}

// DisplayConfig configures the render target and loop.
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// RefreshHz is the render loop rate (1-240).
	RefreshHz float64 `yaml:"refresh_hz"`
	// BloomRadius is the glow blur kernel size (0 disables bloom).
	BloomRadius int `yaml:"bloom_radius"`
	// BloomIntensity is the glow blend weight.
	BloomIntensity float64 `yaml:"bloom_intensity"`
	// LineThickness is the skeleton line width in pixels.
	LineThickness int `yaml:"line_thickness"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Device:     "/dev/video0",
			Resolution: "720p",
			FPS:        30,
		},
		Pose: PoseConfig{
			Script:                 "./pose_worker.sh",
			ModelComplexity:        1,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
			SmoothLandmarks:        true,
		},
		Trail: TrailConfig{
			Layers:          15,
			MaxDelayMS:      2500,
			StalenessMS:     1000,
			HistoryCapacity: 200,
		},
		Display: DisplayConfig{
			Width:          1280,
			Height:         720,
			RefreshHz:      60,
			BloomRadius:    15,
			BloomIntensity: 0.8,
			LineThickness:  3,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error: the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: failed to read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Constructors re-validate their
// own inputs; this catches config mistakes before anything is built.
func (c *Config) Validate() error {
	if c.Camera.Device == "" {
		return fmt.Errorf("config: camera.device is required")
	}
	switch c.Camera.Resolution {
	case "480p", "720p", "1080p":
	default:
		return fmt.Errorf("config: invalid camera.resolution %q (480p, 720p or 1080p)", c.Camera.Resolution)
	}
	if c.Camera.FPS < 1 || c.Camera.FPS > 60 {
		return fmt.Errorf("config: invalid camera.fps %.1f (must be 1-60)", c.Camera.FPS)
	}

	if c.Pose.ModelComplexity < 0 || c.Pose.ModelComplexity > 2 {
		return fmt.Errorf("config: invalid pose.model_complexity %d (must be 0-2)", c.Pose.ModelComplexity)
	}
	for name, v := range map[string]float64{
		"pose.min_detection_confidence": c.Pose.MinDetectionConfidence,
		"pose.min_tracking_confidence":  c.Pose.MinTrackingConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: invalid %s %.2f (must be 0-1)", name, v)
		}
	}

	if c.Trail.Layers < 1 {
		return fmt.Errorf("config: invalid trail.layers %d (must be >= 1)", c.Trail.Layers)
	}
	if c.Trail.MaxDelayMS < 1 {
		return fmt.Errorf("config: invalid trail.max_delay_ms %d (must be >= 1)", c.Trail.MaxDelayMS)
	}
	if c.Trail.StalenessMS < 1 {
		return fmt.Errorf("config: invalid trail.staleness_ms %d", c.Trail.StalenessMS)
	}
	if c.Trail.HistoryCapacity < 1 {
		return fmt.Errorf("config: invalid trail.history_capacity %d", c.Trail.HistoryCapacity)
	}

	if c.Display.Width < 1 || c.Display.Height < 1 {
		return fmt.Errorf("config: invalid display size %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.RefreshHz < 1 || c.Display.RefreshHz > 240 {
		return fmt.Errorf("config: invalid display.refresh_hz %.1f (must be 1-240)", c.Display.RefreshHz)
	}
	if c.Display.BloomRadius < 0 {
		return fmt.Errorf("config: invalid display.bloom_radius %d", c.Display.BloomRadius)
	}

	return nil
}
