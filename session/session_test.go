/*
DESCRIPTION
  session_test.go tests creation of the session directory and the behavior of
  the session's three output streams.

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

package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func testLog() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true) // Discard logs.
}

func TestNew(t *testing.T) {
	root := filepath.Join(t.TempDir(), "recordings")
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	s, err := New(root, now, testLog())
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	defer s.Close()

	want := filepath.Join(root, "2026-03-14_09-26-53")
	if s.Dir() != want {
		t.Errorf("did not get expected session dir\nGot: %s\nWant: %s", s.Dir(), want)
	}

	for _, name := range []string{VideoFileName, TimestampFileName, TTLFileName} {
		_, err := os.Stat(filepath.Join(s.Dir(), name))
		if err != nil {
			t.Errorf("expected output file missing: %v", err)
		}
	}
}

func TestNewCollision(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	s, err := New(root, now, testLog())
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	defer s.Close()

	_, err = New(root, now, testLog())
	if err == nil {
		t.Error("did not get expected error for colliding session directory")
	}
}

func TestWrite(t *testing.T) {
	s, err := New(t.TempDir(), time.Now(), testLog())
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}

	frames := [][]byte{
		{0x00, 0x00, 0x00, 0x01, 0x65, 0x88},
		{0x00, 0x00, 0x00, 0x01, 0x41, 0x9a},
		{0x00, 0x00, 0x00, 0x01, 0x41, 0x9b},
	}
	for _, f := range frames {
		n, err := s.Write(f)
		if err != nil {
			t.Fatalf("could not write frame: %v", err)
		}
		if n != len(f) {
			t.Fatalf("short write: %d of %d", n, len(f))
		}
	}

	if s.Frames() != len(frames) {
		t.Errorf("did not get expected frame count\nGot: %d\nWant: %d", s.Frames(), len(frames))
	}

	err = s.Close()
	if err != nil {
		t.Fatalf("could not close session: %v", err)
	}

	video, err := os.ReadFile(filepath.Join(s.Dir(), VideoFileName))
	if err != nil {
		t.Fatalf("could not read video file: %v", err)
	}
	if !bytes.Equal(video, bytes.Join(frames, nil)) {
		t.Error("video file does not hold the written frames")
	}

	recs := readRecords(t, filepath.Join(s.Dir(), TimestampFileName), timestampHeader)
	if len(recs) != len(frames) {
		t.Fatalf("did not get expected number of timestamp records\nGot: %d\nWant: %d", len(recs), len(frames))
	}

	var lastMono int64 = -1
	for i, rec := range recs {
		if rec[0] != int64(i) {
			t.Errorf("record %d has frame index %d", i, rec[0])
		}
		if rec[2] < lastMono {
			t.Errorf("monotonic offsets went backwards at record %d", i)
		}
		lastMono = rec[2]
	}
}

func TestWritePulse(t *testing.T) {
	s, err := New(t.TempDir(), time.Now(), testLog())
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}

	levels := []int{1, 0, 1}
	for _, l := range levels {
		err := s.WritePulse(l, time.Now())
		if err != nil {
			t.Fatalf("could not write pulse: %v", err)
		}
	}

	err = s.Close()
	if err != nil {
		t.Fatalf("could not close session: %v", err)
	}

	recs := readRecords(t, filepath.Join(s.Dir(), TTLFileName), ttlHeader)
	if len(recs) != len(levels) {
		t.Fatalf("did not get expected number of ttl records\nGot: %d\nWant: %d", len(recs), len(levels))
	}
	for i, rec := range recs {
		if rec[0] != int64(levels[i]) {
			t.Errorf("record %d has level %d, want %d", i, rec[0], levels[i])
		}
	}
}

func TestClosed(t *testing.T) {
	s, err := New(t.TempDir(), time.Now(), testLog())
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}

	err = s.Close()
	if err != nil {
		t.Fatalf("could not close session: %v", err)
	}

	// Close is idempotent.
	err = s.Close()
	if err != nil {
		t.Errorf("did not expect error from second close: %v", err)
	}

	_, err = s.Write([]byte{0x00})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("did not get ErrClosed from write after close, got: %v", err)
	}

	err = s.WritePulse(1, time.Now())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("did not get ErrClosed from pulse after close, got: %v", err)
	}
}

// readRecords parses a record log, checking the header and returning the
// comma-separated integer fields of each record line.
func readRecords(t *testing.T, path, header string) [][3]int64 {
	t.Helper()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read log: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if lines[0] != header {
		t.Fatalf("did not get expected header\nGot: %s\nWant: %s", lines[0], header)
	}

	var recs [][3]int64
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			t.Fatalf("record has %d fields: %s", len(fields), line)
		}
		var rec [3]int64
		for i, f := range fields {
			rec[i], err = strconv.ParseInt(f, 10, 64)
			if err != nil {
				t.Fatalf("could not parse record field: %v", err)
			}
		}
		recs = append(recs, rec)
	}
	return recs
}
