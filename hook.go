package benchpipe

import (
	"errors"
	"io"
	"sync/atomic"
)

// Hook is a concurrently-running transformation attached to an
// output channel. A hook moves through four states: created, started
// (by Start), draining (upstream write end closed), and closed (its
// own output write end closed, terminal). Starting a hook twice is a
// programming error and panics.
//
// Hooks that finish work asynchronously also implement [Waiter].
type Hook interface {
	// Start launches the hook's worker on the given input channel.
	Start(in *ReadChannel) error

	// Output returns the hook's outgoing channel. The worker closes
	// its write end on all exit paths.
	Output() *ReadChannel
}

// Waiter is an optional interface for hooks whose workers can be
// joined. Wait blocks until every worker has finished and returns
// the first error any of them produced.
type Waiter interface {
	Wait() error
}

type hookBase struct {
	name    string
	out     *ReadChannel
	started atomic.Bool
	done    chan struct{}
	err     error
}

func (h *hookBase) Output() *ReadChannel { return h.out }

func (h *hookBase) Wait() error {
	if !h.started.Load() {
		panic("benchpipe: hook " + h.name + " waited before start")
	}
	<-h.done
	return h.err
}

// markStarted flips the hook to started or panics if it already was.
func (h *hookBase) markStarted() {
	if h.started.Swap(true) {
		panic("benchpipe: hook " + h.name + " started twice")
	}
	h.done = make(chan struct{})
}

// WriterHook runs a function over an input channel, writing its
// transformed stream to the hook's output channel. The worker owns
// the output's write end and closes it when the function returns,
// whatever the exit path.
type WriterHook struct {
	hookBase
	fn func(in *ReadChannel, out *WriteChannel) error
}

// NewWriterHook returns a hook running fn as an independent worker.
// The name labels panics and traces.
func NewWriterHook(
	name string, fn func(in *ReadChannel, out *WriteChannel) error,
) *WriterHook {
	return &WriterHook{hookBase: hookBase{name: name}, fn: fn}
}

func (h *WriterHook) Start(in *ReadChannel) error {
	h.markStarted()
	r, w, err := Pipe()
	if err != nil {
		return err
	}
	h.out = r
	go func() {
		defer close(h.done)
		defer func() { _ = w.Close() }()
		h.err = h.fn(in, w)
	}()
	return nil
}

// ReaderHook duplicates its input channel: one copy becomes the
// hook's own output, fed to the next pipeline stage unchanged, and
// an identical copy is fed to a user-supplied observer function.
// This is how a line logger watches a stream without breaking the
// chain. The duplication worker closes both write ends once the
// input is exhausted; the observer never mutates what flows
// downstream.
type ReaderHook struct {
	hookBase
	fn func(in *ReadChannel) error
}

// NewReaderHook returns a hook feeding an identical copy of the
// stream to fn.
func NewReaderHook(
	name string, fn func(in *ReadChannel) error,
) *ReaderHook {
	return &ReaderHook{hookBase: hookBase{name: name}, fn: fn}
}

func (h *ReaderHook) Start(in *ReadChannel) error {
	h.markStarted()
	r, w, err := Pipe()
	if err != nil {
		return err
	}
	dupR, dupW, err := Pipe()
	if err != nil {
		_ = w.Close()
		_ = r.Close()
		return err
	}
	h.out = r

	teeDone := make(chan error, 1)
	go func() {
		teeDone <- tee(in, w, dupW)
	}()
	obsDone := make(chan error, 1)
	go func() {
		obsDone <- h.fn(dupR)
	}()
	go func() {
		defer close(h.done)
		h.err = errors.Join(<-teeDone, <-obsDone)
	}()
	return nil
}

// tee copies in to both outputs one byte range at a time, closing
// both write ends when in is exhausted.
func tee(in *ReadChannel, a, b *WriteChannel) error {
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()
	buf := make([]byte, readChunk)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := a.Write(buf[:n]); werr != nil {
				return werr
			}
			if _, werr := b.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// ResultHook runs a function that consumes its input to exhaustion
// and returns accumulated bytes. The result is handed off through a
// single-slot queue: [ResultHook.Result] blocks until the upstream
// channel closes and the worker finishes.
type ResultHook struct {
	hookBase
	fn   func(in *ReadChannel, out *WriteChannel) ([]byte, error)
	slot chan struct{}
	data []byte
}

// NewResultHook returns a hook whose fn's return value is retrieved
// with [ResultHook.Result].
func NewResultHook(
	name string, fn func(in *ReadChannel, out *WriteChannel) ([]byte, error),
) *ResultHook {
	return &ResultHook{
		hookBase: hookBase{name: name},
		fn:       fn,
		slot:     make(chan struct{}, 1),
	}
}

func (h *ResultHook) Start(in *ReadChannel) error {
	h.markStarted()
	r, w, err := Pipe()
	if err != nil {
		return err
	}
	h.out = r
	go func() {
		defer close(h.done)
		defer func() { _ = w.Close() }()
		h.data, h.err = h.fn(in, w)
		h.slot <- struct{}{}
	}()
	return nil
}

// Result blocks until the worker finishes and yields its accumulated
// bytes exactly once. Calling Result twice, or on a hook that was
// never started, is a programming error and panics.
func (h *ResultHook) Result() ([]byte, error) {
	if !h.started.Load() {
		panic("benchpipe: result requested from hook " +
			h.name + " before start")
	}
	_, ok := <-h.slot
	if !ok {
		panic("benchpipe: result of hook " + h.name + " taken twice")
	}
	close(h.slot)
	return h.data, h.err
}
