/*
DESCRIPTION
  recorder.go provides the Recorder type, which coordinates a recording run:
  the input device, the access unit lexer feeding the session's outputs, the
  TTL pulse source, the duration timer and graceful shutdown.

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

// Package recorder provides an API for running a synchronized video
// recording session: video from an input device is lexed into frames and
// written to a session directory together with per-frame timestamps and TTL
// pulse records, for a configured duration or until stopped.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ausocean/vidrec/codec/codecutil"
	"github.com/ausocean/vidrec/codec/h264"
	"github.com/ausocean/vidrec/device"
	"github.com/ausocean/vidrec/device/file"
	"github.com/ausocean/vidrec/device/raspivid"
	"github.com/ausocean/vidrec/recorder/config"
	"github.com/ausocean/vidrec/session"
	"github.com/ausocean/vidrec/ttl"
)

// State of the recorder's shutdown coordination.
type State uint8

const (
	Running State = iota
	Stopping
	Stopped
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Fatal error categories. Run wraps its errors with one of these so that
// callers can derive an exit status with errors.Is.
var (
	ErrIO     = errors.New("i/o failure")
	ErrDevice = errors.New("device failure")
)

// Recorder coordinates a recording run. Construct with New, then call Run
// once; the recorder is not reusable across runs.
type Recorder struct {
	// cfg holds the recorder configuration, including the logger.
	cfg config.Config

	// input is the device video is captured from. It is owned exclusively by
	// the recorder between Run's start of input and shutdown.
	input device.Device

	// lexTo splits the input's bytestream into frame-sized writes to the
	// session.
	lexTo func(dst io.Writer, src io.Reader, delay time.Duration) error

	// pulses delivers TTL events; nil when the input has no pulse hardware.
	pulses ttl.Source

	// sess owns the output directory and the three output streams.
	sess *session.Session

	state    State
	mu       sync.Mutex
	wg       sync.WaitGroup
	err      chan error
	fatal    chan error
	srcEnd   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Recorder beyond what the Config describes.
type Option func(*Recorder)

// WithDevice supplies the input device directly, overriding the input named
// by the config.
func WithDevice(d device.Device) Option {
	return func(r *Recorder) { r.input = d }
}

// WithTTLSource supplies the TTL event source directly, overriding the GPIO
// pin named by the config.
func WithTTLSource(s ttl.Source) Option {
	return func(r *Recorder) { r.pulses = s }
}

// New returns a pointer to a new Recorder for the given configuration, or an
// error if the configuration is not valid.
func New(cfg config.Config, opts ...Option) (*Recorder, error) {
	if cfg.Logger == nil {
		return nil, errors.New("config logger not set")
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("config is bad: %w", err)
	}

	r := &Recorder{
		cfg:    cfg,
		state:  Running,
		err:    make(chan error),
		fatal:  make(chan error, 1),
		srcEnd: make(chan struct{}),
		stop:   make(chan struct{}),
	}

	for _, o := range opts {
		o(r)
	}

	if r.input == nil {
		switch cfg.Input {
		case config.InputRaspivid:
			cfg.Logger.Debug("using raspivid input")
			r.input = raspivid.New(cfg.Logger)
		case config.InputFile:
			cfg.Logger.Debug("using file input")
			r.input = file.New(cfg.Logger)
		case config.InputManual:
			cfg.Logger.Debug("using manual input")
			r.input = device.NewManualInput()
		}
	}

	// Manual input delivers one frame per read; anything else is a raw h.264
	// bytestream that needs lexing into access units.
	r.lexTo = h264.Lex
	if _, ok := r.input.(*device.ManualInput); ok {
		r.lexTo = codecutil.Noop
	}

	if r.pulses == nil && cfg.Input == config.InputRaspivid {
		r.pulses = ttl.NewPin(cfg.GPIO.PinTTL, cfg.Bounce(), cfg.Logger)
	}

	// Configure the input device. Defaults cover invalid fields, so only log.
	err = r.input.Set(cfg)
	if err != nil {
		cfg.Logger.Warning("errors from configuring input device", "errors", err.Error())
	}

	go r.handleErrors()
	return r, nil
}

// Input returns the recorder's input device. This is how a manual input is
// obtained for software feeding.
func (r *Recorder) Input() device.Device { return r.input }

// State returns the current coordination state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.cfg.Logger.Debug("recorder state changed", "state", s.String())
}

// SessionDir returns the output directory of the run, or an empty string
// before Run has created it.
func (r *Recorder) SessionDir() string {
	if r.sess == nil {
		return ""
	}
	return r.sess.Dir()
}

// Frames returns the number of frames recorded so far.
func (r *Recorder) Frames() int {
	if r.sess == nil {
		return 0
	}
	return r.sess.Frames()
}

// Stop requests an early coordinated stop of the run. It is safe to call
// from any goroutine and more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Run performs the recording run: it creates the session, starts the TTL
// source and input device, and records until the configured duration
// elapses, ctx is cancelled, Stop is called or the input ends, whichever
// comes first. A device failure mid-run aborts the run; the session is
// still drained and closed. Run returns nil on a graceful run, or an error
// wrapped with ErrIO or ErrDevice.
func (r *Recorder) Run(ctx context.Context) error {
	log := r.cfg.Logger

	sess, err := session.New(r.cfg.OutputDir, time.Now(), log)
	if err != nil {
		return fmt.Errorf("%w: could not create session: %v", ErrIO, err)
	}
	r.sess = sess

	if r.pulses != nil {
		err = r.pulses.Start()
		if err != nil {
			sess.Close()
			return fmt.Errorf("%w: could not start TTL source: %v", ErrDevice, err)
		}
		r.wg.Add(1)
		go r.processPulses()
	}

	err = r.input.Start()
	if err != nil {
		if r.pulses != nil {
			r.pulses.Stop()
		}
		r.wg.Wait()
		sess.Close()
		return fmt.Errorf("%w: could not start %s input: %v", ErrDevice, r.input.Name(), err)
	}
	log.Info("recording started", "input", r.input.Name(), "dir", sess.Dir(), "duration", r.cfg.Duration().String())

	// Calculate delay between frames if FileFPS is set, so that file sources
	// play at a camera-like rate. Otherwise use no delay.
	d := time.Duration(0)
	if r.cfg.FileFPS != 0 {
		d = time.Duration(1000/r.cfg.FileFPS) * time.Millisecond
	}

	r.wg.Add(1)
	go r.processFrames(d)

	timer := time.NewTimer(r.cfg.Duration())
	defer timer.Stop()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("termination signal received, stopping")
	case <-r.stop:
		log.Info("stop requested, stopping")
	case <-timer.C:
		log.Info("configured duration elapsed, stopping")
	case <-r.srcEnd:
		log.Info("end of input reached, stopping")
	case err := <-r.fatal:
		log.Error("fatal input error, aborting run", "error", err.Error())
		runErr = fmt.Errorf("%w: %v", ErrDevice, err)
	}

	cerr := r.shutdown()
	if runErr == nil && cerr != nil {
		runErr = fmt.Errorf("%w: could not close session: %v", ErrIO, cerr)
	}
	return runErr
}

// shutdown performs the coordinated stop: the input and TTL source are
// stopped, which ends the frame and pulse routines; once those have drained
// the session is closed. Signals arriving during or after shutdown have no
// further effect.
func (r *Recorder) shutdown() error {
	r.setState(Stopping)
	log := r.cfg.Logger

	log.Debug("stopping input")
	err := r.input.Stop()
	if err != nil {
		log.Error("could not stop input", "error", err.Error())
	} else {
		log.Info("input stopped")
	}

	if r.pulses != nil {
		log.Debug("stopping TTL source")
		err = r.pulses.Stop()
		if err != nil {
			log.Error("could not stop TTL source", "error", err.Error())
		} else {
			log.Info("TTL source stopped")
		}
	}

	log.Debug("waiting for routines to finish")
	r.wg.Wait()
	log.Info("routines finished")

	cerr := r.sess.Close()
	if cerr != nil {
		log.Error("could not close session", "error", cerr.Error())
	}

	r.setState(Stopped)
	log.Info("recorder stopped", "frames", r.sess.Frames())
	return cerr
}

// processFrames is run as a routine to lex the input bytestream into frames
// written to the session, until the input ends or is stopped.
func (r *Recorder) processFrames(delay time.Duration) {
	defer r.wg.Done()

	r.cfg.Logger.Debug("lexing input")
	err := r.lexTo(r.sess, r.input, delay)

	// Once shutdown has begun the input has been stopped under us, so any
	// lex error is expected and not reported.
	if r.State() != Running {
		r.cfg.Logger.Debug("input lexing finished during shutdown")
		return
	}

	switch {
	case err == nil, errors.Is(err, io.EOF):
		r.cfg.Logger.Info("end of input")
		close(r.srcEnd)
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.cfg.Logger.Info("unexpected EOF from input")
		close(r.srcEnd)
	case errors.Is(err, session.ErrClosed):
	default:
		select {
		case r.fatal <- err:
		default:
		}
	}
}

// processPulses is run as a routine to consume TTL events and append records
// to the session's TTL log, until the source's event channel is closed.
func (r *Recorder) processPulses() {
	defer r.wg.Done()

	for ev := range r.pulses.Events() {
		err := r.sess.WritePulse(ev.Level, ev.Time)
		if err != nil {
			r.err <- err
		}
	}
	r.cfg.Logger.Debug("TTL event channel closed")
}

// handleErrors logs errors from the recorder's routines.
func (r *Recorder) handleErrors() {
	for {
		err := <-r.err
		if err != nil {
			r.cfg.Logger.Error("async error", "error", err.Error())
		}
	}
}
