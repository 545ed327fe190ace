/*
DESCRIPTION
  config.go provides the Config struct for a vidrec recording run, along with
  loading from a JSON file and validation of required fields.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for a vidrec recording
// run. Configuration is read once at startup from a JSON file and is
// immutable for the life of the run.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// Input selects the source of video data.
const (
	InputRaspivid = "raspivid" // Capture from the Raspberry Pi camera using the raspivid utility.
	InputFile     = "file"     // Read an h.264 bytestream from a file. InputPath must be set.
	InputManual   = "manual"   // Data is written to the recorder manually through software.
)

// Defaults for fields that may be omitted from the config file.
const (
	defaultInput    = InputRaspivid
	defaultBounceMs = 20
	defaultLogLevel = "info"
)

// Validation errors for required fields.
var (
	ErrNoDuration  = errors.New("duration_seconds not set")
	ErrNoOutputDir = errors.New("output_dir not set")
	ErrNoTTLPin    = errors.New("gpio.pin_ttl not set")
	ErrNoInputPath = errors.New("input_path not set for file input")
	ErrBadInput    = errors.New("input bad")
	ErrBadLogLevel = errors.New("log.level bad")
)

// Camera holds the tuning parameters passed to the capture device. Fields
// left zero are defaulted by the device on Set; out-of-range values are also
// defaulted there, with a report of what was replaced.
type Camera struct {
	ID               string `json:"id"`
	Width            uint   `json:"width"`
	Height           uint   `json:"height"`
	FrameRate        uint   `json:"framerate"`
	Bitrate          uint   `json:"bitrate"` // kbps. Used for constant bitrate only.
	Quantization     uint   `json:"quantization"`
	CBR              bool   `json:"cbr"`
	Rotation         uint   `json:"rotation"`
	Brightness       uint   `json:"brightness"`
	Contrast         int    `json:"contrast"`
	Sharpness        int    `json:"sharpness"`
	Saturation       int    `json:"saturation"`
	Exposure         string `json:"exposure_mode"`
	EV               int    `json:"ev"`
	AutoWhiteBalance string `json:"awb_mode"`
	AWBGains         string `json:"awb_gains"`
	ISO              uint   `json:"iso"`
	Stabilisation    bool   `json:"video_stabilization"`

	// MinFrames defines the frequency of key NAL units SPS, PPS and IDR in
	// number of NAL units.
	MinFrames uint `json:"intra_period"`
}

// GPIO holds the TTL synchronization input parameters.
type GPIO struct {
	// PinTTL is the BCM number of the pin on which TTL pulses are observed.
	PinTTL int `json:"pin_ttl"`

	// BounceMs is the software debounce period in milliseconds. Edges arriving
	// within this period of the previous accepted edge are discarded.
	BounceMs uint `json:"bounce_ms"`
}

// Log holds logging destination and verbosity settings.
type Log struct {
	Path  string `json:"path"`
	Level string `json:"level"` // One of debug, info, warning or error.
}

// Config provides parameters relevant to a vidrec recording run. A new config
// must be validated before use; Validate applies defaults for optional fields
// and errors on missing required fields.
type Config struct {
	// DurationSeconds is the length of the recording. The recorder stops when
	// this has elapsed, or earlier on receipt of a termination signal.
	DurationSeconds uint `json:"duration_seconds"`

	// OutputDir is the root under which a dated session directory is created
	// for each run.
	OutputDir string `json:"output_dir"`

	Input     string `json:"input"`
	InputPath string `json:"input_path"`

	// FileFPS defines the rate at which frames from a file source are
	// processed. Zero means no pacing.
	FileFPS uint `json:"file_fps"`

	Camera Camera `json:"camera"`
	GPIO   GPIO   `json:"gpio"`
	Log    Log    `json:"log"`

	// Logger holds an implementation of the logging.Logger interface. This
	// must be set for the recorder to work correctly.
	Logger logging.Logger `json:"-"`
}

// Load reads the JSON file at path into a Config. The returned config has not
// been validated; required-field checks and defaulting happen in Validate so
// that command line overrides may be applied in between.
func Load(path string) (Config, error) {
	var c Config

	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "could not read config file")
	}

	err = json.Unmarshal(data, &c)
	if err != nil {
		return c, errors.Wrap(err, "could not parse config file")
	}

	return c, nil
}

// Validate checks that the required fields of the config are present and
// sensible, and applies defaults for optional fields. Camera tuning fields
// are not checked here; the capture device defaults those on Set.
func (c *Config) Validate() error {
	if c.DurationSeconds == 0 {
		return ErrNoDuration
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	switch c.Input {
	case "":
		c.Input = defaultInput
	case InputRaspivid, InputFile, InputManual:
	default:
		return errors.Wrap(ErrBadInput, c.Input)
	}

	if c.Input == InputFile && c.InputPath == "" {
		return ErrNoInputPath
	}

	// The TTL pin is a required device parameter when capturing from hardware.
	// File and manual inputs have no pin to watch.
	if c.Input == InputRaspivid && c.GPIO.PinTTL <= 0 {
		return ErrNoTTLPin
	}

	if c.GPIO.BounceMs == 0 {
		c.GPIO.BounceMs = defaultBounceMs
	}

	switch c.Log.Level {
	case "":
		c.Log.Level = defaultLogLevel
	case "debug", "info", "warning", "error":
	default:
		return errors.Wrap(ErrBadLogLevel, c.Log.Level)
	}

	return nil
}

// Duration returns the configured recording duration.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// Bounce returns the configured TTL debounce period.
func (c *Config) Bounce() time.Duration {
	return time.Duration(c.GPIO.BounceMs) * time.Millisecond
}

// LogLevel maps the configured log level name onto a logging package
// verbosity.
func (c *Config) LogLevel() int8 {
	switch c.Log.Level {
	case "debug":
		return logging.Debug
	case "warning":
		return logging.Warning
	case "error":
		return logging.Error
	default:
		return logging.Info
	}
}
