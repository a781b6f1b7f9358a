// Package sys implements a benchpipe.Host that launches commands on
// the local system using os/exec.
package sys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/benchpipe/benchpipe"
)

// Host returns a benchpipe.Host running commands on the local
// system. Each command gets its own process group so signals reach
// the whole tree it spawns.
func Host() benchpipe.Host { return host{} }

type host struct{}

var _ benchpipe.Host = host{}

func (host) Start(ctx context.Context, argv []string,
	stdin *benchpipe.ReadChannel,
	stdout, stderr *benchpipe.WriteChannel,
	dir string, env map[string]string,
) (benchpipe.Child, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command given")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if dir != "" && filepath.IsAbs(dir) {
		cmd.Dir = dir
	}
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if f := stdin.File(); f != nil {
		cmd.Stdin = f
	} else {
		cmd.Stdin = stdin
	}
	cmd.Stdout = stdout.File()
	cmd.Stderr = stderr.File()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	// The child holds its own copies of the stream descriptors, so
	// the launching side must release the write ends now or readers
	// never see EOF.
	_ = stdout.Close()
	_ = stderr.Close()
	return &child{cmd: cmd}, nil
}

func (host) Signal(ctx context.Context, pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

func (host) Shell(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "/bin/sh", "-c", command).
		CombinedOutput()
	if err != nil {
		return "", cmdError(err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func (host) IsLocal() bool { return true }

type child struct {
	cmd *exec.Cmd
}

func (c *child) PID() int { return c.cmd.Process.Pid }

func (c *child) Wait() error {
	return cmdError(c.cmd.Wait())
}

func (c *child) Signal(sig unix.Signal) error {
	return unix.Kill(c.cmd.Process.Pid, sig)
}

func (c *child) Terminate() error {
	return unix.Kill(-c.cmd.Process.Pid, unix.SIGTERM)
}

func (c *child) Kill() error {
	err := unix.Kill(-c.cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// cmdError wraps os/exec errors into benchpipe.ExitError. An
// exec.ExitError carries the exit code; other errors, like command
// not found, keep code zero.
func cmdError(err error) error {
	if err == nil {
		return nil
	}
	xerr := &benchpipe.ExitError{Err: err}
	if ee := new(exec.ExitError); errors.As(err, &ee) {
		xerr.Code = ee.ExitCode()
	}
	return xerr
}
