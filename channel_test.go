package benchpipe_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"

	"github.com/benchpipe/benchpipe"
)

func TestChannelPreservesOrder(t *testing.T) {
	r, w, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for _, s := range []string{"one\n", "two\n", "three\n"} {
			if _, err := io.WriteString(w, s); err != nil {
				t.Error(err)
			}
		}
		if err := w.Close(); err != nil {
			t.Error(err)
		}
	}()
	buf, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v, want nil", err)
	}
	if got, want := string(buf), "one\ntwo\nthree\n"; got != want {
		t.Errorf("channel contents = %q, want %q", got, want)
	}
}

func TestReadLine(t *testing.T) {
	r, w, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		_, _ = io.WriteString(w, "alpha\nbeta\ngamma")
		_ = w.Close()
	}()
	var lines []string
	for {
		line, err := r.ReadLine()
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("ReadLine() error = %v, want io.EOF", err)
			}
			break
		}
	}
	want := []string{"alpha\n", "beta\n", "gamma"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestReadLineSpansChunks(t *testing.T) {
	r, w, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	long := make([]byte, 4000)
	for i := range long {
		long[i] = 'x'
	}
	go func() {
		_, _ = w.Write(long)
		_, _ = io.WriteString(w, "\ntail\n")
		_ = w.Close()
	}()
	line, err := r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() error = %v, want nil", err)
	}
	if got, want := len(line), len(long)+1; got != want {
		t.Errorf("long line length = %d, want %d", got, want)
	}
	line, err = r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() error = %v, want nil", err)
	}
	if got, want := string(line), "tail\n"; got != want {
		t.Errorf("second line = %q, want %q", got, want)
	}
}

func TestReadLineDataWithEOF(t *testing.T) {
	// Readers are allowed to return their final bytes together with
	// io.EOF; lines must still come out one at a time.
	r := benchpipe.NewReadChannel(
		iotest.DataErrReader(strings.NewReader("alpha\nbeta\ngamma")))
	var lines []string
	for {
		line, err := r.ReadLine()
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("ReadLine() error = %v, want io.EOF", err)
			}
			break
		}
	}
	want := []string{"alpha\n", "beta\n", "gamma"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r, w, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close() error = %v, want nil", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v, want nil", err)
	}
	if _, err := io.ReadAll(r); err != nil {
		t.Fatalf("io.ReadAll() after close error = %v, want nil", err)
	}
}

func TestReadAfterEOF(t *testing.T) {
	r, w, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 8)
	for range 3 {
		n, err := r.Read(buf)
		if n != 0 || !errors.Is(err, io.EOF) {
			t.Fatalf("Read() = %d, %v; want 0, io.EOF", n, err)
		}
	}
}

func TestStringChannel(t *testing.T) {
	r := benchpipe.StringChannel("hello world\n")
	buf, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v, want nil", err)
	}
	if got, want := string(buf), "hello world\n"; got != want {
		t.Errorf("contents = %q, want %q", got, want)
	}
}

func TestEmptyChannel(t *testing.T) {
	r := benchpipe.EmptyChannel()
	buf, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v, want nil", err)
	}
	if got, want := len(buf), 0; got != want {
		t.Errorf("read %d bytes, want %d", got, want)
	}
}
