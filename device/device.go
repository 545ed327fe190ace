/*
DESCRIPTION
  device.go provides Device, an interface describing a configurable video
  input that can be started and stopped, and from which encoded video data
  may be read.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides an interface and implementations for video input
// devices that can be started and stopped, and from which encoded video data
// can be obtained.
package device

import (
	"errors"
	"fmt"
	"io"

	"github.com/ausocean/vidrec/recorder/config"
)

// Device describes a configurable video input from which encoded video data
// can be obtained. Device is an io.Reader. A Device owns its underlying
// source exclusively between Start and Stop.
type Device interface {
	io.Reader

	// Name returns the name of the Device.
	Name() string

	// Set configures the Device using the fields of the Config struct relevant
	// to the implementation. Invalid fields are defaulted; a MultiError
	// describing the replacements is returned so that the caller may report
	// them, but the device remains usable.
	Set(c config.Config) error

	// Start will start the Device capturing video data; after which the Read
	// method may be called to obtain the data.
	Start() error

	// Stop will stop the Device from capturing video data. From this point
	// Reads will no longer be successful.
	Stop() error

	// IsRunning is used to determine if the device is running.
	IsRunning() bool
}

// MultiError implements the built in error interface. MultiError is used to
// collect errors during validation of configuration parameters for Devices.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// ManualInput is an implementation of Device for data written manually
// through software; it is used when the recorder is fed by another process
// in-program, and for testing. ManualInput also implements io.Writer; it
// employs an io.Pipe, so every write must be matched by a read of the bytes
// or blocking will occur (and vice versa). This makes writing of distinct
// access units easy, i.e. one write can represent one frame.
type ManualInput struct {
	isRunning bool
	reader    *io.PipeReader
	writer    *io.PipeWriter
}

// NewManualInput provides a new ManualInput.
func NewManualInput() *ManualInput {
	return &ManualInput{}
}

// Read reads from the manual input and puts the bytes into p.
func (m *ManualInput) Read(p []byte) (int, error) {
	if !m.isRunning {
		return 0, errors.New("manual input has not been started, can't read")
	}
	return m.reader.Read(p)
}

// Name returns the name of ManualInput i.e. "ManualInput".
func (m *ManualInput) Name() string { return "ManualInput" }

// Set is a stub to satisfy the Device interface; no configuration fields are
// considered by ManualInput.
func (m *ManualInput) Set(c config.Config) error { return nil }

// Start opens the pipe and marks the input running.
func (m *ManualInput) Start() error {
	m.reader, m.writer = io.Pipe()
	m.isRunning = true
	return nil
}

// Stop closes the pipe and sets the isRunning flag to false.
func (m *ManualInput) Stop() error {
	if m.reader != nil {
		m.reader.Close()
	}
	m.isRunning = false
	return nil
}

// IsRunning returns true if Start has been called and Stop has not been
// called after.
func (m *ManualInput) IsRunning() bool { return m.isRunning }

// Write writes p to the ManualInput's writer side of its pipe.
func (m *ManualInput) Write(p []byte) (int, error) {
	if !m.isRunning {
		return 0, errors.New("manual input has not been started, can't write")
	}
	return m.writer.Write(p)
}

// CloseWrite closes the writer side of the pipe, forcing an io.EOF on the
// reader side. This lets a software feeder end the recording input cleanly.
func (m *ManualInput) CloseWrite() error {
	if m.writer == nil {
		return errors.New("manual input has not been started, can't close")
	}
	return m.writer.Close()
}
