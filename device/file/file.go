/*
DESCRIPTION
  file.go provides an implementation of the Device interface for video files.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package file provides an implementation of Device for files. Combined with
// lexer pacing this gives a simulated camera for bench runs and testing,
// without the camera hardware.
package file

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vidrec/recorder/config"
)

// File is an implementation of the Device interface for a file containing an
// h.264 bytestream.
type File struct {
	f         *os.File
	path      string
	isRunning bool
	log       logging.Logger
	set       bool
	mu        sync.Mutex
}

// New returns a new File device.
func New(l logging.Logger) *File { return &File{log: l} }

// NewWith returns a new File device with the required params provided, i.e.
// the Set method does not need to be called.
func NewWith(l logging.Logger, path string) *File {
	return &File{log: l, path: path, set: true}
}

// Name returns the name of the device.
func (d *File) Name() string {
	return "File"
}

// Set stores the input path from the config.
func (d *File) Set(c config.Config) error {
	d.path = c.InputPath
	d.set = true
	return nil
}

// Start opens the file at the location of the InputPath config field.
func (d *File) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.set {
		return errors.New("file device has not been set with config")
	}
	var err error
	d.f, err = os.Open(d.path)
	if err != nil {
		return fmt.Errorf("could not open video file: %w", err)
	}
	d.isRunning = true
	return nil
}

// Stop closes the file such that any further reads will fail.
func (d *File) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	if err != nil {
		return err
	}
	d.isRunning = false
	return nil
}

// Read implements io.Reader. If Start has not been called, or Stop has been
// called, an error is returned.
func (d *File) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil || !d.isRunning {
		return 0, errors.New("file device is not started")
	}
	return d.f.Read(p)
}

// IsRunning returns whether the device is between Start and Stop.
func (d *File) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isRunning
}
