/*
DESCRIPTION
  writers.go provides the writers backing a session's output streams: a
  record log writer used for the timestamp and TTL logs, and a pool-buffered
  video writer. Each writer runs its own output routine and exclusively owns
  its file handle.

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
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
)

// Number of records that may be queued awaiting a log writer before event
// producers block. Blocking preserves arrival order; records are never
// dropped or reordered.
const recordQueueLen = 512

// Video pool buffer tuning.
const (
	poolElementSize  = 10000    // Bytes. Starting element size; elements grow as units require.
	poolCapacity     = 10 << 20 // Bytes.
	poolMaxAlloc     = 5 << 20  // Max size a single pool element may grow to.
	poolWriteTimeout = 5 * time.Second
	poolReadTimeout  = 500 * time.Millisecond
	poolDrainTimeout = 10 * time.Millisecond
)

// logWriter appends one record per line to a log file, consuming records
// from its queue in arrival order. On a write error the writer logs, stops
// writing and discards further records; the rest of the session continues.
type logWriter struct {
	name   string
	f      *os.File
	buf    *bufio.Writer
	in     chan string
	wg     sync.WaitGroup
	log    logging.Logger
	failed bool // Only touched by the run routine.
}

// newLogWriter creates the log file at path, writes the header line and
// starts the writer's output routine.
func newLogWriter(path, header, name string, l logging.Logger) (*logWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	w := &logWriter{
		name: name,
		f:    f,
		buf:  bufio.NewWriter(f),
		in:   make(chan string, recordQueueLen),
		log:  l,
	}

	_, err = w.buf.WriteString(header + "\n")
	if err != nil {
		f.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *logWriter) run() {
	defer w.wg.Done()
	for rec := range w.in {
		if w.failed {
			continue
		}
		_, err := w.buf.WriteString(rec)
		if err != nil {
			w.log.Error("write failed, stopping "+w.name+" writer", "error", err.Error())
			w.failed = true
		}
	}
}

// write queues one record line. The caller must not call write after close;
// the session's closed flag guards this.
func (w *logWriter) write(rec string) { w.in <- rec }

// close drains any queued records, flushes and closes the file.
func (w *logWriter) close() error {
	close(w.in)
	w.wg.Wait()
	err := w.buf.Flush()
	cerr := w.f.Close()
	if err != nil {
		return err
	}
	return cerr
}

// videoWriter queues lexed video units on a pool buffer which its output
// routine drains to the video file. The pool decouples the capture path from
// disk latency, in place of an unbounded in-memory queue.
type videoWriter struct {
	f      *os.File
	pool   *pool.Buffer
	done   chan struct{}
	wg     sync.WaitGroup
	log    logging.Logger
	failed bool // Only touched by the output routine.
}

func newVideoWriter(path string, l logging.Logger) (*videoWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	// Lexed units can be considerably larger than the starting element size;
	// let elements grow.
	pool.MaxAlloc(poolMaxAlloc)

	w := &videoWriter{
		f:    f,
		pool: pool.NewBuffer(poolCapacity/poolElementSize, poolElementSize, poolWriteTimeout),
		done: make(chan struct{}),
		log:  l,
	}
	w.wg.Add(1)
	go w.output()
	return w, nil
}

// Write implements io.Writer, queueing one video unit for the output
// routine. A unit that cannot be queued is dropped with an error logged;
// capture continues.
func (w *videoWriter) Write(p []byte) (int, error) {
	_, err := w.pool.Write(p)
	if err != nil {
		w.log.Error("video pool write failed, unit dropped", "error", err.Error(), "len", len(p))
		return len(p), nil
	}
	w.pool.Flush()
	return len(p), nil
}

// output drains the pool buffer to the video file until signalled done, then
// performs a final drain so that queued units are not lost on close.
func (w *videoWriter) output() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			w.drain()
			return
		default:
			chunk, err := w.pool.Next(poolReadTimeout)
			switch err {
			case nil, io.EOF:
				if chunk == nil {
					continue
				}
			case pool.ErrTimeout:
				continue
			default:
				w.log.Error("unexpected pool read error", "error", err.Error())
				continue
			}
			w.writeChunk(chunk)
		}
	}
}

func (w *videoWriter) drain() {
	for {
		chunk, err := w.pool.Next(poolDrainTimeout)
		if err != nil || chunk == nil {
			return
		}
		w.writeChunk(chunk)
	}
}

func (w *videoWriter) writeChunk(c *pool.Chunk) {
	if !w.failed {
		_, err := w.f.Write(c.Bytes())
		if err != nil {
			w.log.Error("write failed, stopping video writer", "error", err.Error())
			w.failed = true
		}
	}
	c.Close()
}

// close signals the output routine, waits for the final drain and closes the
// video file.
func (w *videoWriter) close() error {
	close(w.done)
	w.wg.Wait()
	return w.f.Close()
}
