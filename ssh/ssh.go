// Package ssh implements a benchpipe.Host that launches commands on
// a remote system by wrapping them in an ssh invocation run on a
// relay host, usually the local system.
package ssh

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/benchpipe/benchpipe"
	"github.com/benchpipe/benchpipe/internal/sh"
)

type Option func(*host)

// Port sets the ssh port. The default is 22.
func Port(n int) Option {
	return func(h *host) { h.port = n }
}

// Host returns a benchpipe.Host running commands on addr through
// relay. The child handle returned by Start tracks the relay-side
// ssh process; remote process control goes through Shell round
// trips.
func Host(relay benchpipe.Host, addr string, opts ...Option) benchpipe.Host {
	h := &host{relay: relay, addr: addr, port: 22}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type host struct {
	relay benchpipe.Host
	addr  string
	port  int
}

var (
	_ benchpipe.Host      = (*host)(nil)
	_ benchpipe.RelayHost = (*host)(nil)
)

func (h *host) Relay() benchpipe.Host { return h.relay }

func (h *host) IsLocal() bool { return false }

// wrap builds the relay-side argv for a remote command line.
func (h *host) wrap(command string) []string {
	return []string{
		"ssh", h.addr, "-p", strconv.Itoa(h.port), "-t", command,
	}
}

// remoteCommand renders argv with its directory and environment into
// one shell line for the far side. Environment assignments go in
// front of the command, borrowing the shell's own VAR=value form, so
// nothing needs to exist on the remote beyond a POSIX shell.
func remoteCommand(argv []string, dir string, env map[string]string) string {
	command := sh.String(env, argv...).String()
	if dir != "" {
		command = "cd " + sh.Quote(dir) + " && " + command
	}
	return command
}

func (h *host) Start(ctx context.Context, argv []string,
	stdin *benchpipe.ReadChannel,
	stdout, stderr *benchpipe.WriteChannel,
	dir string, env map[string]string,
) (benchpipe.Child, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command given")
	}
	wrapped := h.wrap(remoteCommand(argv, dir, env))
	return h.relay.Start(ctx, wrapped, stdin, stdout, stderr, "", nil)
}

func (h *host) Signal(ctx context.Context, pid int, sig unix.Signal) error {
	_, err := h.Shell(ctx, fmt.Sprintf("kill -%d %d", sig, pid))
	return err
}

func (h *host) Shell(ctx context.Context, command string) (string, error) {
	return h.relay.Shell(ctx, sh.Join([]string{
		"ssh", h.addr, "-p", strconv.Itoa(h.port), command,
	}))
}
