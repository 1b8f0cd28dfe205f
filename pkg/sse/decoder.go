// Package sse decodes the answer stream of the Perplexity ask endpoint.
//
// The stream is a sequence of frames separated by a blank CRLF line:
//
//	event: message\r\n
//	data: {...}\r\n
//	\r\n
//
// and ends with an "event: end_of_stream" frame. Only message frames are
// surfaced; everything else is dropped.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

const (
	// EventMessage is the event name of frames carrying a payload.
	EventMessage = "message"

	messagePrefix = "event: message\r\n"
	endLine       = "event: end_of_stream"
	dataMarker    = "data: "
)

var delimiter = []byte("\r\n\r\n")

var (
	// ErrNeedMore is returned by Decoder.Next when no complete frame is buffered.
	ErrNeedMore = errors.New("sse: need more input")

	// ErrInvalidUTF8 is returned for a message frame whose payload is not
	// valid UTF-8. The frame is consumed and decoding continues.
	ErrInvalidUTF8 = errors.New("sse: payload is not valid UTF-8")
)

// Frame is one message frame.
type Frame struct {
	Event string
	Data  string
}

// Decoder splits a byte stream into frames. It is push based: the caller
// feeds chunks as they arrive and pulls frames with Next. Chunk boundaries
// may fall anywhere, including inside the delimiter or a multi-byte rune.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	start    int // first unconsumed byte
	scanned  int // buf[start:scanned] holds no complete delimiter
	finished bool
}

// NewDecoder returns a Decoder in the accumulating state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk to the buffer. Input fed after the decoder finished
// is ignored.
func (d *Decoder) Feed(chunk []byte) {
	if d.finished || len(chunk) == 0 {
		return
	}
	if d.start > 0 {
		n := copy(d.buf, d.buf[d.start:])
		d.buf = d.buf[:n]
		d.scanned -= d.start
		d.start = 0
	}
	d.buf = append(d.buf, chunk...)
}

// Next returns the next message frame. It returns ErrNeedMore when the
// buffer holds no complete frame, and io.EOF once the end-of-stream frame
// was seen or Close was called.
func (d *Decoder) Next() (Frame, error) {
	for {
		if d.finished {
			return Frame{}, io.EOF
		}

		// a delimiter may straddle the previous scan boundary
		from := max(d.start, d.scanned-(len(delimiter)-1))
		idx := bytes.Index(d.buf[from:], delimiter)
		if idx < 0 {
			d.scanned = len(d.buf)
			return Frame{}, ErrNeedMore
		}

		end := from + idx
		candidate := d.buf[d.start:end]
		d.start = end + len(delimiter)
		d.scanned = d.start

		if isEndOfStream(candidate) {
			d.finish()
			return Frame{}, io.EOF
		}

		data, ok := messageData(candidate)
		if !ok {
			continue
		}
		if !utf8.Valid(data) {
			return Frame{}, ErrInvalidUTF8
		}
		return Frame{Event: EventMessage, Data: string(data)}, nil
	}
}

// Close marks the end of input. Any incomplete trailing frame is discarded.
func (d *Decoder) Close() {
	d.finish()
}

// Finished reports whether the decoder reached its terminal state.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Buffered returns the number of bytes held but not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.start
}

func (d *Decoder) finish() {
	d.finished = true
	d.buf = nil
	d.start = 0
	d.scanned = 0
}

func isEndOfStream(candidate []byte) bool {
	if !bytes.HasPrefix(candidate, []byte(endLine)) {
		return false
	}
	rest := candidate[len(endLine):]
	return len(rest) == 0 || bytes.HasPrefix(rest, []byte("\r\n"))
}

func messageData(candidate []byte) ([]byte, bool) {
	rest, ok := bytes.CutPrefix(candidate, []byte(messagePrefix))
	if !ok {
		return nil, false
	}
	i := bytes.Index(rest, []byte(dataMarker))
	if i < 0 {
		return nil, false
	}
	return rest[i+len(dataMarker):], true
}

// Reader pulls frames from an io.Reader.
type Reader struct {
	src *bufio.Reader
	dec *Decoder
	buf []byte
	err error
}

// NewReader returns a Reader decoding frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		src: bufio.NewReaderSize(r, 32*1024),
		dec: NewDecoder(),
		buf: make([]byte, 32*1024),
	}
}

// ReadFrame returns the next message frame. It returns io.EOF at the end of
// the stream, whether signalled by the end-of-stream frame or by the source
// running dry. ErrInvalidUTF8 is not fatal; the caller may keep reading.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		frame, err := r.dec.Next()
		if err != ErrNeedMore {
			return frame, err
		}
		if r.err != nil {
			r.dec.Close()
			if r.err == io.EOF {
				return Frame{}, io.EOF
			}
			return Frame{}, r.err
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.dec.Feed(r.buf[:n])
		}
		if err != nil {
			r.err = err
		}
	}
}

// Finished reports whether the underlying decoder reached its terminal state.
func (r *Reader) Finished() bool {
	return r.dec.Finished()
}
