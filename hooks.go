package benchpipe

import (
	"context"
	"errors"
	"io"
	"strings"

	"lesiw.io/fs"
	"lesiw.io/prefix"
)

// NewLoggerHook observes a stream line by line, writing each line to
// w under the given prefix. The stream itself flows downstream
// unchanged.
func NewLoggerHook(pfx string, w io.Writer) *ReaderHook {
	pw := prefix.NewWriter(pfx, w)
	return NewReaderHook("logger", func(in *ReadChannel) error {
		for {
			line, err := in.ReadLine()
			if len(line) > 0 {
				if _, werr := pw.Write(line); werr != nil {
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
	})
}

// LoggerHook logs both sides of an output to w, stdout lines under
// outPfx and stderr lines under errPfx.
func LoggerHook(outPfx, errPfx string, w io.Writer) OutputHook {
	return Pair{
		Out: NewLoggerHook(outPfx, w),
		Err: NewLoggerHook(errPfx, w),
	}
}

// VoidHook consumes and discards a stream. Its output channel closes
// immediately, so no bytes reach later stages. Useful as a terminal
// stage for output nobody wants, keeping the process from blocking
// on a full pipe.
func VoidHook() OutputHook {
	void := func() *WriterHook {
		return NewWriterHook("void",
			func(in *ReadChannel, out *WriteChannel) error {
				_ = out.Close()
				_, err := io.Copy(io.Discard, in)
				return err
			})
	}
	return Pair{Out: void(), Err: void()}
}

// CollectHook accumulates both streams in full while passing them
// through unchanged. Stdout and Stderr block until the process
// output closes.
type CollectHook struct {
	out *ResultHook
	err *ResultHook
}

func NewCollectHook() *CollectHook {
	collect := func(name string) *ResultHook {
		return NewResultHook(name, func(
			in *ReadChannel, out *WriteChannel,
		) ([]byte, error) {
			defer func() { _ = out.Close() }()
			var all []byte
			buf := make([]byte, readChunk)
			for {
				n, err := in.Read(buf)
				if n > 0 {
					all = append(all, buf[:n]...)
					if _, werr := out.Write(buf[:n]); werr != nil {
						return all, werr
					}
				}
				if err != nil {
					if errors.Is(err, io.EOF) {
						return all, nil
					}
					return all, err
				}
			}
		})
	}
	return &CollectHook{out: collect("collect"), err: collect("collect")}
}

func (h *CollectHook) Hooks() (_, _ Hook) { return h.out, h.err }

// Stdout blocks until the stream closes, then returns everything the
// process wrote to standard output.
func (h *CollectHook) Stdout() ([]byte, error) { return h.out.Result() }

// Stderr blocks until the stream closes, then returns everything the
// process wrote to standard error.
func (h *CollectHook) Stderr() ([]byte, error) { return h.err.Result() }

// NewScanHook passes a stream through unchanged while looking for
// the first line containing pattern. [ResultHook.Result] returns the
// matching line, or [ErrClosedEarly] if the stream closes without
// one.
func NewScanHook(pattern string) *ResultHook {
	return NewResultHook("scan "+pattern, func(
		in *ReadChannel, out *WriteChannel,
	) ([]byte, error) {
		defer func() { _ = out.Close() }()
		var match []byte
		for {
			line, err := in.ReadLine()
			if len(line) > 0 {
				if match == nil &&
					strings.Contains(string(line), pattern) {
					match = append([]byte(nil), line...)
				}
				if _, werr := out.Write(line); werr != nil {
					return match, werr
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					return match, err
				}
				if match == nil {
					return nil, ErrClosedEarly
				}
				return match, nil
			}
		}
	})
}

// FileHook is a terminal stage persisting a stream to a file. It
// consumes the stream entirely and forwards nothing, so it must be
// the last hook attached on its side.
func FileHook(
	ctx context.Context, fsys fs.FS, outName, errName string,
) OutputHook {
	sink := func(name string) Hook {
		return NewWriterHook("file "+name,
			func(in *ReadChannel, out *WriteChannel) error {
				_ = out.Close()
				f, err := fs.Create(ctx, fsys, name)
				if err != nil {
					_, _ = io.Copy(io.Discard, in)
					return err
				}
				_, cerr := io.Copy(f, in)
				if err := f.Close(); cerr == nil {
					cerr = err
				}
				return cerr
			})
	}
	var p Pair
	if outName != "" {
		p.Out = sink(outName)
	}
	if errName != "" {
		p.Err = sink(errName)
	}
	return p
}

// PrependHook inserts fixed text ahead of a stream.
func PrependHook(out, err string) OutputHook {
	prepend := func(s string) Hook {
		return NewWriterHook("prepend",
			func(in *ReadChannel, w *WriteChannel) error {
				if _, err := io.WriteString(w, s); err != nil {
					return err
				}
				_, err := io.Copy(w, in)
				return err
			})
	}
	var p Pair
	if out != "" {
		p.Out = prepend(out)
	}
	if err != "" {
		p.Err = prepend(err)
	}
	return p
}
