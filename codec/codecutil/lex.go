/*
DESCRIPTION
  lex.go provides generalised lexers to lex input data that is already
  framed, i.e. where each read corresponds to one access unit.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codecutil provides general utilities for lexing media input.
package codecutil

import (
	"io"
	"time"
)

// Max size of a single access unit, i.e. one h264 frame.
const maxUnitSize = 250000

// Noop reads units from src and writes them unchanged to dst, one write per
// read, with successive writes performed not earlier than delay apart. It is
// used for sources that already deliver one access unit per read, such as a
// manual input fed one frame per write. Noop returns io.EOF on a clean end
// of input.
func Noop(dst io.Writer, src io.Reader, delay time.Duration) error {
	var tick <-chan time.Time
	if delay == 0 {
		closed := make(chan time.Time)
		close(closed)
		tick = closed
	} else {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	buf := make([]byte, maxUnitSize)
	for {
		n, err := src.Read(buf)
		if n != 0 {
			<-tick
			_, werr := dst.Write(buf[:n])
			if werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}
