package mock_test

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/benchpipe/benchpipe"
	"github.com/benchpipe/benchpipe/mock"
)

func start(
	t *testing.T, h benchpipe.Host, argv ...string,
) (benchpipe.Child, *benchpipe.ReadChannel, *benchpipe.ReadChannel) {
	t.Helper()
	ctx := t.Context()
	stdin := benchpipe.EmptyChannel()
	outR, outW, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	errR, errW, err := benchpipe.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	c, err := h.Start(ctx, argv, stdin, outW, errW, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	return c, outR, errR
}

func TestScriptedChild(t *testing.T) {
	h := mock.NewHost()
	h.Return(&mock.Child{Pid: 42, Stdout: "hello\n"}, "echo")

	c, outR, errR := start(t, h, "echo", "hello")
	if got, want := c.PID(), 42; got != want {
		t.Errorf("PID() = %d, want %d", got, want)
	}
	buf, err := io.ReadAll(outR)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(buf), "hello\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if _, err := io.ReadAll(errR); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(); err != nil {
		t.Errorf("Wait() error = %v, want nil", err)
	}

	want := []mock.StartCall{{Argv: []string{"echo", "hello"}}}
	if diff := cmp.Diff(want, h.StartCalls); diff != "" {
		t.Errorf("StartCalls mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptedExitCode(t *testing.T) {
	h := mock.NewHost()
	h.Return(&mock.Child{Code: 3}, "false")

	c, outR, errR := start(t, h, "false")
	_, _ = io.ReadAll(outR)
	_, _ = io.ReadAll(errR)
	err := c.Wait()
	var xerr *benchpipe.ExitError
	if !errors.As(err, &xerr) {
		t.Fatalf("Wait() error = %v, want ExitError", err)
	}
	if got, want := xerr.Code, 3; got != want {
		t.Errorf("exit code = %d, want %d", got, want)
	}
}

func TestBlockingChildReleases(t *testing.T) {
	h := mock.NewHost()
	h.Return(&mock.Child{Pid: 7, Block: true}, "sleep")

	c, outR, errR := start(t, h, "sleep", "600")
	_, _ = io.ReadAll(outR)
	_, _ = io.ReadAll(errR)

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()
	select {
	case err := <-done:
		t.Fatalf("Wait() returned %v before release", err)
	default:
	}
	h.Release(7)
	if err := <-done; err != nil {
		t.Errorf("Wait() error = %v, want nil", err)
	}
}

func TestTerminateEndsBlockingChild(t *testing.T) {
	h := mock.NewHost()
	h.Return(&mock.Child{Pid: 8, Block: true}, "sleep")

	c, outR, errR := start(t, h, "sleep", "600")
	_, _ = io.ReadAll(outR)
	_, _ = io.ReadAll(errR)
	if err := c.Terminate(); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(); err != nil {
		t.Errorf("Wait() error = %v, want nil", err)
	}
	want := []mock.SignalCall{{Pid: 8, Sig: unix.SIGTERM}}
	if diff := cmp.Diff(want, h.SignalCalls); diff != "" {
		t.Errorf("SignalCalls mismatch (-want +got):\n%s", diff)
	}
}

func TestShellScripting(t *testing.T) {
	h := mock.NewHost()
	h.ReturnShell("command -v", "/usr/bin/tool\n")
	h.ReturnShell("", "default\n")

	ctx := t.Context()
	out, err := h.Shell(ctx, "command -v tool")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := out, "/usr/bin/tool\n"; got != want {
		t.Errorf("Shell() = %q, want %q", got, want)
	}
	out, err = h.Shell(ctx, "anything else")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := out, "default\n"; got != want {
		t.Errorf("Shell() = %q, want %q", got, want)
	}
	if got, want := len(h.ShellCalls), 2; got != want {
		t.Errorf("recorded %d shell calls, want %d", got, want)
	}
}

func TestShellFailure(t *testing.T) {
	h := mock.NewHost()
	boom := errors.New("no such process")
	h.FailShell("netstat", boom)
	if _, err := h.Shell(t.Context(), "netstat -tnp"); !errors.Is(err, boom) {
		t.Errorf("Shell() error = %v, want %v", err, boom)
	}
}

func TestRemoteRelays(t *testing.T) {
	relay := mock.NewHost()
	remote := mock.NewRemote(relay)
	if remote.IsLocal() {
		t.Error("IsLocal() = true, want false")
	}
	var host benchpipe.Host = remote
	rh, ok := host.(benchpipe.RelayHost)
	if !ok {
		t.Fatal("remote host does not implement RelayHost")
	}
	if got, want := rh.Relay(), benchpipe.Host(relay); got != want {
		t.Errorf("Relay() = %v, want %v", got, want)
	}
}
