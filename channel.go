package benchpipe

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

// readChunk is the increment [ReadChannel.ReadLine] pulls from the
// underlying stream while looking for a newline.
const readChunk = 512

// ReadChannel is the readable end of a byte channel: a
// unidirectional stream with exactly one reader. Reads return
// whatever is buffered, else block for at least one more chunk; once
// the write end is closed and the buffer drains, reads return
// [io.EOF] forever.
type ReadChannel struct {
	r   io.Reader
	buf []byte
}

// Pipe allocates an OS-backed channel. Both ends are inheritable by
// a spawned child process.
func Pipe() (*ReadChannel, *WriteChannel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return &ReadChannel{r: r}, &WriteChannel{f: w}, nil
}

// StringChannel returns an in-memory channel that yields s and then
// EOF. It is interchangeable with pipe-backed channels, which keeps
// hook functions testable without processes.
func StringChannel(s string) *ReadChannel {
	return &ReadChannel{r: strings.NewReader(s)}
}

// NewReadChannel wraps an arbitrary reader as a channel, adopting an
// existing stream such as the process's own standard input.
func NewReadChannel(r io.Reader) *ReadChannel {
	return &ReadChannel{r: r}
}

// EmptyChannel returns a channel that is already at end-of-stream.
func EmptyChannel() *ReadChannel {
	return &ReadChannel{r: strings.NewReader("")}
}

// Read returns up to len(p) bytes, preferring internally buffered
// data left over from [ReadChannel.ReadLine].
func (c *ReadChannel) Read(p []byte) (int, error) {
	if len(c.buf) > 0 {
		n := copy(p, c.buf)
		c.buf = c.buf[n:]
		return n, nil
	}
	return c.r.Read(p)
}

// ReadLine returns one newline-terminated chunk, including the
// newline. When the channel closes mid-line, the final partial chunk
// is returned without a trailing newline; the call after that
// returns [io.EOF].
func (c *ReadChannel) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(c.buf, '\n'); i >= 0 {
			line := append([]byte(nil), c.buf[:i+1]...)
			c.buf = c.buf[i+1:]
			return line, nil
		}
		chunk := make([]byte, readChunk)
		n, err := c.r.Read(chunk)
		c.buf = append(c.buf, chunk[:n]...)
		if err != nil {
			// A reader may hand over its final bytes together with
			// io.EOF; buffered newlines still split into lines.
			if errors.Is(err, io.EOF) && bytes.IndexByte(c.buf, '\n') >= 0 {
				continue
			}
			if errors.Is(err, io.EOF) && len(c.buf) > 0 {
				line := c.buf
				c.buf = nil
				return line, nil
			}
			return nil, err
		}
	}
}

// Close releases the read end. Reading after Close is an error.
func (c *ReadChannel) Close() error {
	c.buf = nil
	if closer, ok := c.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// File returns the underlying pipe end, or nil for in-memory
// channels. Hosts use it to wire a channel directly to a child
// process.
func (c *ReadChannel) File() *os.File {
	if f, ok := c.r.(*os.File); ok {
		return f
	}
	return nil
}

// WriteChannel is the writable end of a byte channel, with exactly
// one writer. Failing to call [WriteChannel.Close] is the single most
// common bug in this subsystem: every consumer downstream blocks
// forever.
type WriteChannel struct {
	f    *os.File
	once sync.Once
	err  error
}

func (c *WriteChannel) Write(p []byte) (int, error) {
	return c.f.Write(p)
}

// Close closes the write end, delivering end-of-stream to the
// reader. Safe to call more than once.
func (c *WriteChannel) Close() error {
	c.once.Do(func() { c.err = c.f.Close() })
	return c.err
}

// File returns the underlying pipe end for wiring to a child
// process's stdout or stderr.
func (c *WriteChannel) File() *os.File { return c.f }
