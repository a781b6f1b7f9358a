package benchpipe

import (
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// Output bundles the stdout and stderr channels of a running
// command. Hooks attach to it stage by stage: each attachment
// consumes the current channels and replaces them with the hooks'
// outputs, forming a chain the process output flows through.
type Output struct {
	Out *ReadChannel
	Err *ReadChannel

	hooks []Waiter
}

// OutputHook produces the hook pair to attach to an [Output]. Either
// side may be nil, in which case that stream passes through the
// stage untouched.
type OutputHook interface {
	Hooks() (out, err Hook)
}

// Pair is the trivial OutputHook: a literal hook for each side.
type Pair struct {
	Out Hook
	Err Hook
}

func (p Pair) Hooks() (_, _ Hook) { return p.Out, p.Err }

// Attach starts the hook pair on the current channels and swaps in
// their outputs. Hooks attach in call order; bytes flow through
// stages in the same order.
func (o *Output) Attach(h OutputHook) error {
	outHook, errHook := h.Hooks()
	if err := o.attachSide(&o.Out, outHook); err != nil {
		return err
	}
	return o.attachSide(&o.Err, errHook)
}

func (o *Output) attachSide(ch **ReadChannel, h Hook) error {
	if h == nil {
		return nil
	}
	if err := h.Start(*ch); err != nil {
		return err
	}
	*ch = h.Output()
	if w, ok := h.(Waiter); ok {
		o.hooks = append(o.hooks, w)
	}
	return nil
}

// Wait blocks until every attached hook's workers have finished. It
// returns the first hook error. The caller must first drain or close
// the terminal channels or Wait can block forever on a full pipe.
func (o *Output) Wait() error {
	var err error
	for _, h := range o.hooks {
		if werr := h.Wait(); err == nil {
			err = werr
		}
	}
	return err
}

// MergeErrToOut funnels both sides of the output into a single
// combined stream, replacing Out with the merge and Err with an
// empty channel. Lines are interleaved whole: each worker moves one
// line at a time into the shared write end, so concurrent stdout and
// stderr lines never shear mid-line.
func (o *Output) MergeErrToOut() error {
	merged, w, err := Pipe()
	if err != nil {
		return err
	}
	var grp errgroup.Group
	funnel := func(in *ReadChannel) func() error {
		return func() error {
			for {
				line, err := in.ReadLine()
				if len(line) > 0 {
					if _, werr := w.Write(line); werr != nil {
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
	}
	grp.Go(funnel(o.Out))
	grp.Go(funnel(o.Err))

	done := make(chan struct{})
	mergeErr := new(error)
	go func() {
		defer close(done)
		*mergeErr = grp.Wait()
		_ = w.Close()
	}()
	o.hooks = append(o.hooks, waitFunc(func() error {
		<-done
		return *mergeErr
	}))

	o.Out, o.Err = merged, EmptyChannel()
	return nil
}

type waitFunc func() error

func (f waitFunc) Wait() error { return f() }
