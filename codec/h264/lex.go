/*
DESCRIPTION
  lex.go provides a lexer to lex an h264 bytestream into access units.

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

// Package h264 provides an h264 bytestream lexer. The lexer splits the
// stream into access units such that each write to the destination carries
// exactly one picture; the destination can therefore treat one write as one
// captured frame.
package h264

import (
	"bufio"
	"io"
	"time"
)

var noDelay = make(chan time.Time)

func init() {
	close(noDelay)
}

// NAL unit type codes from ITU-T H.264 table 7-1 that are relevant to
// access unit splitting.
const (
	nalNonIdrPic = 1
	nalIdrPic    = 5
)

const (
	readBufSize = 64 << 10
	auBufSize   = 8 << 10
)

// Lex lexes the H.264 bytestream read from src into access units, written
// one per call to dst, with successive writes performed not earlier than the
// specified delay apart. An access unit is cut at the start code following a
// coded slice (NAL types 1 and 5), so parameter sets and SEI lead the
// picture they belong to rather than forming units of their own. Any bytes
// remaining at end of stream are written as a final unit so that dst
// receives the stream in full. Lex returns io.EOF on a clean end of stream.
func Lex(dst io.Writer, src io.Reader, delay time.Duration) error {
	var tick <-chan time.Time
	if delay == 0 {
		tick = noDelay
	} else {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	r := bufio.NewReaderSize(src, readBufSize)
	au := make([]byte, 0, auBufSize)
	var zeroes int   // Length of the current run of 0x00 bytes.
	var havePic bool // True once the current access unit holds a coded slice.

	// finish writes out any remaining bytes and reports the given read error.
	finish := func(err error) error {
		if len(au) != 0 {
			<-tick
			if _, werr := dst.Write(au); werr != nil {
				return werr
			}
		}
		return err
	}

	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return finish(io.EOF)
			}
			return finish(err)
		}
		au = append(au, b)

		if b == 0x00 {
			zeroes++
			continue
		}

		if b != 0x01 || zeroes < 2 {
			zeroes = 0
			continue
		}

		// We're at the last byte of a start code; the byte after it is the
		// NAL header.
		scLen := zeroes + 1
		if scLen > 4 {
			scLen = 4
		}
		zeroes = 0

		h, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return finish(io.EOF)
			}
			return finish(err)
		}
		au = append(au, h)

		// A new NAL beginning after a coded slice closes the access unit;
		// everything before this start code is one frame.
		if havePic {
			n := len(au) - scLen - 1
			<-tick
			if _, err := dst.Write(au[:n]); err != nil {
				return err
			}
			next := make([]byte, 0, auBufSize)
			next = append(next, au[n:]...)
			au = next
			havePic = false
		}

		switch h & 0x1f {
		case nalNonIdrPic, nalIdrPic:
			havePic = true
		}
	}
}
