/*
DESCRIPTION
  raspivid.go provides an implementation of the Device interface for the
  raspivid command.

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

// Package raspivid provides an implementation of the Device interface for the
// Raspberry Pi camera. The camera is consumed exclusively for the lifetime of
// the device; the h.264 bytestream is read from the piped stdout of the
// raspivid process.
package raspivid

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"

	"github.com/ausocean/vidrec/device"
	"github.com/ausocean/vidrec/recorder/config"
)

// Used to indicate package in logging.
const pkg = "raspivid: "

// Raspivid configuration defaults.
const (
	defaultRotation         = 0
	defaultWidth            = 1280
	defaultHeight           = 720
	defaultBrightness       = 50
	defaultSaturation       = 0
	defaultExposure         = "auto"
	defaultAutoWhiteBalance = "auto"
	defaultMinFrames        = 100
	defaultQuantization     = 30
	defaultBitrate          = 4800
	defaultFrameRate        = 25
	defaultSharpness        = 0
	defaultContrast         = 0
	defaultISO              = 100
	defaultEV               = 0
	defaultAWBGains         = "1.0,1.0"
)

// Configuration errors.
var (
	errBadRotation         = errors.New("rotation bad or unset, defaulting")
	errBadWidth            = errors.New("width bad or unset, defaulting")
	errBadHeight           = errors.New("height bad or unset, defaulting")
	errBadFrameRate        = errors.New("framerate bad or unset, defaulting")
	errBadBitrate          = errors.New("bitrate bad or unset, defaulting")
	errBadMinFrames        = errors.New("intra period bad or unset, defaulting")
	errBadSaturation       = errors.New("saturation bad or unset, defaulting")
	errBadBrightness       = errors.New("brightness bad or unset, defaulting")
	errBadExposure         = errors.New("exposure mode bad or unset, defaulting")
	errBadAutoWhiteBalance = errors.New("auto white balance bad or unset, defaulting")
	errBadQuantization     = errors.New("quantization bad or unset, defaulting")
	errBadAWBGains         = errors.New("auto white balance gains bad or unset, defaulting")
	errBadEV               = errors.New("exposure value bad or unset, defaulting")
	errBadContrast         = errors.New("contrast bad or unset, defaulting")
	errBadSharpness        = errors.New("sharpness bad or unset, defaulting")
	errBadISO              = errors.New("iso bad or unset, defaulting")
)

// Possible modes for raspivid --exposure parameter.
var ExposureModes = [...]string{
	"off",
	"auto",
	"night",
	"nightpreview",
	"backlight",
	"spotlight",
	"sports",
	"snow",
	"beach",
	"verylong",
	"fixedfps",
	"antishake",
	"fireworks",
}

// Possible modes for raspivid --awb parameter.
var AutoWhiteBalanceModes = [...]string{
	"off",
	"auto",
	"sun",
	"cloud",
	"shade",
	"tungsten",
	"fluorescent",
	"incandescent",
	"flash",
	"horizon",
}

// Raspivid is an implementation of Device that provides control over the
// raspivid command to allow reading of video data from a Raspberry Pi camera.
type Raspivid struct {
	cfg       config.Camera
	cmd       *exec.Cmd
	out       io.ReadCloser
	log       logging.Logger
	done      chan struct{}
	isRunning bool
}

// New returns a new Raspivid.
func New(l logging.Logger) *Raspivid {
	return &Raspivid{
		log:  l,
		done: make(chan struct{}),
	}
}

// Name returns the name of the device.
func (r *Raspivid) Name() string {
	return "Raspivid"
}

// Set takes a Config struct, checks the validity of the camera fields and
// performs any configuration necessary. If fields are not valid, an error is
// added to the MultiError and a default value is used.
func (r *Raspivid) Set(c config.Config) error {
	var errs device.MultiError
	cam := c.Camera

	if cam.Rotation > 359 {
		cam.Rotation = defaultRotation
		errs = append(errs, errBadRotation)
	}

	if cam.Width == 0 {
		cam.Width = defaultWidth
		errs = append(errs, errBadWidth)
	}

	if cam.Height == 0 {
		cam.Height = defaultHeight
		errs = append(errs, errBadHeight)
	}

	if cam.FrameRate == 0 {
		cam.FrameRate = defaultFrameRate
		errs = append(errs, errBadFrameRate)
	}

	if cam.CBR {
		cam.Quantization = 0
		if cam.Bitrate == 0 {
			errs = append(errs, errBadBitrate)
			cam.Bitrate = defaultBitrate
		}
	} else {
		cam.Bitrate = 0
		if cam.Quantization < 10 || cam.Quantization > 40 {
			errs = append(errs, errBadQuantization)
			cam.Quantization = defaultQuantization
		}
	}

	if cam.MinFrames == 0 {
		errs = append(errs, errBadMinFrames)
		cam.MinFrames = defaultMinFrames
	}

	if cam.Brightness == 0 || cam.Brightness > 100 {
		errs = append(errs, errBadBrightness)
		cam.Brightness = defaultBrightness
	}

	if cam.Saturation < -100 || cam.Saturation > 100 {
		errs = append(errs, errBadSaturation)
		cam.Saturation = defaultSaturation
	}

	if cam.Exposure == "" || !sliceutils.ContainsString(ExposureModes[:], cam.Exposure) {
		errs = append(errs, errBadExposure)
		cam.Exposure = defaultExposure
	}

	if cam.EV < -10 || cam.EV > 10 {
		errs = append(errs, errBadEV)
		cam.EV = defaultEV
	}

	if cam.Contrast < -100 || cam.Contrast > 100 {
		errs = append(errs, errBadContrast)
		cam.Contrast = defaultContrast
	}

	if cam.Sharpness < -100 || cam.Sharpness > 100 {
		errs = append(errs, errBadSharpness)
		cam.Sharpness = defaultSharpness
	}

	if cam.AutoWhiteBalance == "" || !sliceutils.ContainsString(AutoWhiteBalanceModes[:], cam.AutoWhiteBalance) {
		errs = append(errs, errBadAutoWhiteBalance)
		cam.AutoWhiteBalance = defaultAutoWhiteBalance
	}

	if !goodAWBGains(cam.AWBGains) {
		errs = append(errs, errBadAWBGains)
		cam.AWBGains = defaultAWBGains
	}

	if cam.ISO < 100 || cam.ISO > 800 {
		errs = append(errs, errBadISO)
		cam.ISO = defaultISO
	}

	r.cfg = cam
	if len(errs) != 0 {
		return errs
	}
	return nil
}

func goodAWBGains(g string) bool {
	parts := strings.Split(g, ",")
	if len(parts) != 2 {
		return false
	}

	bg, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return false
	}

	rg, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return false
	}

	if bg < 0 || rg < 0 {
		return false
	}

	return true
}

// Start will prepare the arguments for the raspivid command using the
// configuration set using the Set method then call the raspivid command,
// piping the video output from which the Read method will read.
func (r *Raspivid) Start() error {
	args := r.createArgs()

	r.log.Info(pkg+"raspivid args", "raspividArgs", strings.Join(args, " "))
	r.cmd = exec.Command("raspivid", args...)

	var err error
	r.out, err = r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not pipe command output: %w", err)
	}

	stderr, err := r.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("could not pipe command error: %w", err)
	}

	go func() {
		for {
			select {
			case <-r.done:
				r.log.Info(pkg + "Stop() called, finished checking stderr")
				return
			default:
				buf, err := io.ReadAll(stderr)
				if err != nil {
					r.log.Error(pkg+"could not read stderr", "error", err)
					return
				}

				if len(buf) != 0 {
					r.log.Error(pkg+"error from raspivid stderr", "error", string(buf))
					return
				}
			}
		}
	}()

	err = r.cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start raspivid command: %w", err)
	}
	r.isRunning = true

	return nil
}

// Read implements io.Reader. Calling Read before Start has been called will
// result in 0 bytes read and an error.
func (r *Raspivid) Read(p []byte) (int, error) {
	if r.out != nil {
		return r.out.Read(p)
	}
	return 0, errors.New("cannot read, raspivid has not started")
}

// Stop will terminate the raspivid process and close the output pipe.
func (r *Raspivid) Stop() error {
	if !r.isRunning {
		return nil
	}
	close(r.done)
	if r.cmd == nil || r.cmd.Process == nil {
		return errors.New("raspivid process was never started")
	}
	err := r.cmd.Process.Kill()
	if err != nil {
		return fmt.Errorf("could not kill raspivid process: %w", err)
	}
	r.isRunning = false
	return r.out.Close()
}

// IsRunning is used to determine if the pi's camera is running.
func (r *Raspivid) IsRunning() bool {
	return r.isRunning
}

// createArgs builds the raspivid argument list from the camera configuration.
// Output goes to stdout with no preview and no timeout; the recorder, not
// raspivid, decides when capture ends.
func (r *Raspivid) createArgs() []string {
	const disabled = "0"
	args := []string{
		"--output", "-",
		"--nopreview",
		"--timeout", disabled,
		"--width", fmt.Sprint(r.cfg.Width),
		"--height", fmt.Sprint(r.cfg.Height),
		"--bitrate", fmt.Sprint(r.cfg.Bitrate * 1000), // Convert from kbps to bps.
		"--framerate", fmt.Sprint(r.cfg.FrameRate),
		"--rotation", fmt.Sprint(r.cfg.Rotation),
		"--brightness", fmt.Sprint(r.cfg.Brightness),
		"--saturation", fmt.Sprint(r.cfg.Saturation),
		"--sharpness", fmt.Sprint(r.cfg.Sharpness),
		"--contrast", fmt.Sprint(r.cfg.Contrast),
		"--awb", fmt.Sprint(r.cfg.AutoWhiteBalance),
		"--exposure", fmt.Sprint(r.cfg.Exposure),
	}

	if r.cfg.ISO != defaultISO {
		args = append(args, "--ISO", fmt.Sprint(r.cfg.ISO))
	}

	if r.cfg.Exposure == "off" {
		args = append(args, "--ev", fmt.Sprint(r.cfg.EV))
	}

	if r.cfg.AutoWhiteBalance == "off" {
		args = append(args, "--awbgains", fmt.Sprint(r.cfg.AWBGains))
	}

	if r.cfg.Stabilisation {
		args = append(args, "--vstab")
	}

	// Compute module boards carry more than one camera port.
	if r.cfg.ID != "" {
		args = append(args, "--camselect", r.cfg.ID)
	}

	args = append(args,
		"--codec", "H264",
		"--inline",
		"--intra", fmt.Sprint(r.cfg.MinFrames),
	)
	if !r.cfg.CBR {
		args = append(args, "-qp", fmt.Sprint(r.cfg.Quantization))
	}

	return args
}
