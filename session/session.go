/*
DESCRIPTION
  session.go provides the Session type, which owns the dated output directory
  of a recording run and the three output streams within it: the video file,
  the per-frame timestamp log and the TTL pulse log.

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

// Package session provides the recording session: a dated directory holding
// a video file, a frame timestamp log and a TTL pulse log, each appended by
// a writer that exclusively owns its file handle. Records are appended in
// arrival order within each log; no ordering is guaranteed across logs.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// Names of the output streams within a session directory.
const (
	VideoFileName     = "video.h264"
	TimestampFileName = "timestamps.log"
	TTLFileName       = "ttl.log"
)

// Layout of the session directory name under the output root.
const dirLayout = "2006-01-02_15-04-05"

const dirPerm = 0755

// Headers for the record logs. One record per line follows.
const (
	timestampHeader = "frame,unix_ns,monotonic_ns"
	ttlHeader       = "level,unix_ns,monotonic_ns"
)

// ErrClosed is returned by appends to a closed session. Once a session is
// closed no further records may be written to its logs.
var ErrClosed = errors.New("session is closed")

// Session is the set of output artifacts and handles for one capture run.
// The three files are created at construction and owned by the session until
// Close, which drains the writers, flushes and closes all handles.
type Session struct {
	dir    string
	epoch  time.Time
	log    logging.Logger
	video  *videoWriter
	stamps *logWriter
	pulses *logWriter
	mu     sync.Mutex
	frame  int
	closed bool
}

// New creates a session directory named for now under root, creating root
// first if necessary, and opens the three output streams within it. A
// directory collision, i.e. a second session within the same second, is an
// error; an existing session is never reused or overwritten.
func New(root string, now time.Time, l logging.Logger) (*Session, error) {
	err := os.MkdirAll(root, dirPerm)
	if err != nil {
		return nil, errors.Wrap(err, "could not create output root")
	}

	dir := filepath.Join(root, now.Format(dirLayout))
	err = os.Mkdir(dir, dirPerm)
	if err != nil {
		return nil, errors.Wrap(err, "could not create session directory")
	}

	video, err := newVideoWriter(filepath.Join(dir, VideoFileName), l)
	if err != nil {
		return nil, errors.Wrap(err, "could not create video output")
	}

	stamps, err := newLogWriter(filepath.Join(dir, TimestampFileName), timestampHeader, "timestamp", l)
	if err != nil {
		video.close()
		return nil, errors.Wrap(err, "could not create timestamp log")
	}

	pulses, err := newLogWriter(filepath.Join(dir, TTLFileName), ttlHeader, "ttl", l)
	if err != nil {
		video.close()
		stamps.close()
		return nil, errors.Wrap(err, "could not create ttl log")
	}

	l.Info("session created", "dir", dir)

	return &Session{
		dir:    dir,
		epoch:  time.Now(),
		log:    l,
		video:  video,
		stamps: stamps,
		pulses: pulses,
	}, nil
}

// Dir returns the path of the session directory.
func (s *Session) Dir() string { return s.dir }

// Frames returns the number of frames written to the session so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Write implements io.Writer. One call corresponds to one captured frame
// event: the bytes are queued for the video file and a timestamp record
// (frame index, wall-clock time, monotonic offset) is appended to the
// timestamp log.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	t := time.Now()
	s.stamps.write(fmt.Sprintf("%d,%d,%d\n", s.frame, t.UnixNano(), t.Sub(s.epoch).Nanoseconds()))
	s.frame++

	return s.video.Write(p)
}

// WritePulse appends a TTL record (signal level, event time, monotonic
// offset) to the TTL log.
func (s *Session) WritePulse(level int, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.pulses.write(fmt.Sprintf("%d,%d,%d\n", level, t.UnixNano(), t.Sub(s.epoch).Nanoseconds()))
	return nil
}

// Close drains and closes the three output streams. Appends after Close
// return ErrClosed. Close is idempotent; the first error encountered is
// returned, but all streams are always closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error

	err := s.video.close()
	if err != nil {
		s.log.Error("could not close video output", "error", err.Error())
		firstErr = err
	}

	err = s.stamps.close()
	if err != nil {
		s.log.Error("could not close timestamp log", "error", err.Error())
		if firstErr == nil {
			firstErr = err
		}
	}

	err = s.pulses.close()
	if err != nil {
		s.log.Error("could not close ttl log", "error", err.Error())
		if firstErr == nil {
			firstErr = err
		}
	}

	s.log.Info("session closed", "dir", s.dir, "frames", s.frame)
	return firstErr
}
