// Package config loads engine settings from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("config: invalid value")

// Present modes accepted in RendererConfig.PresentMode.
const (
	PresentModeVSync    = "vsync"
	PresentModeUncapped = "uncapped"
)

// Config is the complete engine configuration. Zero sections are filled from DefaultConfig
// when parsed, so a file only needs the keys it changes.
type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Frame    FrameConfig    `toml:"frame"`
	Log      LogConfig      `toml:"log"`
	Graph    GraphConfig    `toml:"graph"`
}

// RendererConfig configures the GPU backend.
type RendererConfig struct {
	// MSAA is the sample count of the main pass: 1, 4, 8 or 16.
	MSAA uint32 `toml:"msaa"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode        string `toml:"present_mode"`
	BindGroupCacheSize int    `toml:"bind_group_cache_size"`
	ForceSoftware      bool   `toml:"force_software"`
}

// FrameConfig configures the frame driver.
type FrameConfig struct {
	// Workers is the size of the per-stage worker pool. 0 selects NumCPU-1.
	Workers int `toml:"workers"`
	// FrameLimit caps frames per second. 0 is uncapped.
	FrameLimit float64 `toml:"frame_limit"`
	Profiling  bool    `toml:"profiling"`
}

// LogConfig configures the engine logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// GraphConfig selects the parts of the base render graph.
type GraphConfig struct {
	Camera3D         bool `toml:"camera_3d"`
	Camera2D         bool `toml:"camera_2d"`
	MainDepthTexture bool `toml:"main_depth_texture"`
	MainPass         bool `toml:"main_pass"`
}

// DefaultConfig returns the settings used when no file is loaded.
//
// Returns:
//   - Config: the default configuration
func DefaultConfig() Config {
	return Config{
		Renderer: RendererConfig{
			MSAA:               4,
			PresentMode:        PresentModeUncapped,
			BindGroupCacheSize: 1024,
		},
		Log: LogConfig{Level: "info"},
		Graph: GraphConfig{
			Camera3D:         true,
			Camera2D:         true,
			MainDepthTexture: true,
			MainPass:         true,
		},
	}
}

// Parse decodes TOML on top of DefaultConfig and validates the result. Unknown keys are
// rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: a syntax, unknown key or validation error
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a TOML file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the decoded configuration
//   - error: an I/O or Parse error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Validate checks every value against its accepted range.
//
// Returns:
//   - error: the first invalid value, wrapping ErrInvalid
func (c Config) Validate() error {
	if !slices.Contains([]uint32{1, 4, 8, 16}, c.Renderer.MSAA) {
		return fmt.Errorf("%w: renderer.msaa %d is not 1, 4, 8 or 16", ErrInvalid, c.Renderer.MSAA)
	}
	if c.Renderer.PresentMode != PresentModeVSync && c.Renderer.PresentMode != PresentModeUncapped {
		return fmt.Errorf("%w: renderer.present_mode %q", ErrInvalid, c.Renderer.PresentMode)
	}
	if c.Renderer.BindGroupCacheSize < 0 {
		return fmt.Errorf("%w: renderer.bind_group_cache_size %d", ErrInvalid, c.Renderer.BindGroupCacheSize)
	}
	if c.Frame.Workers < 0 {
		return fmt.Errorf("%w: frame.workers %d", ErrInvalid, c.Frame.Workers)
	}
	if c.Frame.FrameLimit < 0 {
		return fmt.Errorf("%w: frame.frame_limit %g", ErrInvalid, c.Frame.FrameLimit)
	}
	return nil
}

// Marshal encodes the configuration as TOML.
//
// Returns:
//   - []byte: the TOML document
//   - error: an encoding error
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
