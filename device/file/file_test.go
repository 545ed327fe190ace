/*
DESCRIPTION
  file_test.go tests the file implementation of the Device interface.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package file

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vidrec/recorder/config"
)

func TestFile(t *testing.T) {
	want := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84}
	path := filepath.Join(t.TempDir(), "in.h264")
	err := os.WriteFile(path, want, 0644)
	if err != nil {
		t.Fatalf("could not write input file: %v", err)
	}

	l := logging.New(logging.Debug, &bytes.Buffer{}, true) // Discard logs.
	d := New(l)

	err = d.Set(config.Config{InputPath: path})
	if err != nil {
		t.Fatalf("could not set device: %v", err)
	}

	err = d.Start()
	if err != nil {
		t.Fatalf("could not start device: %v", err)
	}

	if !d.IsRunning() {
		t.Error("device isn't running, when it should be")
	}

	got, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("could not read from device: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("did not get expected data\nGot: %v\nWant: %v", got, want)
	}

	err = d.Stop()
	if err != nil {
		t.Errorf("could not stop device: %v", err)
	}

	if d.IsRunning() {
		t.Error("device is running, when it should not be")
	}

	_, err = d.Read(make([]byte, 1))
	if err == nil {
		t.Error("did not get expected error reading a stopped device")
	}
}

func TestFileNotSet(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true)
	d := New(l)

	err := d.Start()
	if err == nil {
		t.Error("did not get expected error starting an unset device")
	}
}

func TestFileMissing(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true)
	d := NewWith(l, filepath.Join(t.TempDir(), "no-such-file.h264"))

	err := d.Start()
	if err == nil {
		t.Error("did not get expected error starting with a missing file")
	}
}
