// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package frame reassembles server-sent event frames from a byte stream.
// The transport may split the stream at any byte; the assembler buffers
// partial text across reads and only hands out complete `data:` payloads,
// so the frames produced never depend on how the bytes were chunked.
package frame

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"strings"
)

const dataPrefix = "data:"

// DefaultReadSize is the chunk size Reader asks the underlying reader for.
const DefaultReadSize = 32 * 1024

var (
	lf   = []byte("\n\n")
	crlf = []byte("\r\n\r\n")
)

// Assembler accumulates raw bytes and emits complete frames.
// The zero value is ready to use. An Assembler is not safe for concurrent use.
type Assembler struct {
	buf []byte
	// scanned is how far buf has already been searched for a boundary.
	scanned int
}

// Feed appends chunk to the pending buffer and returns every frame the
// chunk completed, in order. Text without a boundary stays buffered.
func (a *Assembler) Feed(chunk []byte) []string {
	a.buf = append(a.buf, chunk...)

	var frames []string
	for {
		end, next := a.boundary()
		if end < 0 {
			// A boundary may straddle the next chunk; rescan the tail.
			a.scanned = max(0, len(a.buf)-len(crlf)+1)
			return frames
		}
		block := string(a.buf[:end])
		a.buf = a.buf[next:]
		a.scanned = 0
		if payload, ok := parseBlock(block); ok {
			frames = append(frames, payload)
		}
	}
}

// Pending returns the number of buffered bytes that are not part of a frame yet.
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Reset drops any buffered text.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.scanned = 0
}

// boundary locates the earliest blank line in the buffer. It returns the end
// of the event block and the offset where the next block starts, or -1.
func (a *Assembler) boundary() (int, int) {
	tail := a.buf[a.scanned:]
	i := bytes.Index(tail, lf)
	j := bytes.Index(tail, crlf)
	switch {
	case i < 0 && j < 0:
		return -1, -1
	case j >= 0 && (i < 0 || j < i):
		return a.scanned + j, a.scanned + j + len(crlf)
	default:
		return a.scanned + i, a.scanned + i + len(lf)
	}
}

// parseBlock extracts the data payload of one event block. Multiple data
// lines are joined with a newline; blocks without data (comments,
// keep-alives) yield nothing.
func parseBlock(block string) (string, bool) {
	var (
		lines []string
		found bool
	)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		found = true
		line = strings.TrimPrefix(line[len(dataPrefix):], " ")
		lines = append(lines, line)
	}
	if !found {
		return "", false
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n"), true
}

// Reader turns an io.Reader into a lazy sequence of frames.
type Reader struct {
	r       io.Reader
	asm     Assembler
	chunk   []byte
	pending []string
	err     error
	// OnRead, when set, is called with the size of every chunk read.
	OnRead func(n int)
}

// NewReader returns a Reader reading chunks of DefaultReadSize from r.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultReadSize)
}

// NewReaderSize returns a Reader that asks r for at most size bytes per read.
func NewReaderSize(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultReadSize
	}
	return &Reader{r: r, chunk: make([]byte, size)}
}

// Next returns the next complete frame. It returns io.EOF once the upstream
// reader is exhausted; any unterminated text left in the buffer is dropped,
// since a closed stream is a normal end and not a protocol error.
func (r *Reader) Next() (string, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return "", r.err
		}
		n, err := r.r.Read(r.chunk)
		if n > 0 {
			if r.OnRead != nil {
				r.OnRead(n)
			}
			r.pending = append(r.pending, r.asm.Feed(r.chunk[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			r.err = err
		}
	}
	f := r.pending[0]
	r.pending = r.pending[1:]
	return f, nil
}

// Frames returns the remaining frames as a single-use sequence. The sequence
// stops without an error at io.EOF and yields the error otherwise.
func (r *Reader) Frames() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			f, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}
