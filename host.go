package benchpipe

import (
	"context"

	"golang.org/x/sys/unix"
)

// A Host launches commands somewhere: the local system, a remote
// machine behind ssh, or a script for testing. Implementations live
// in their own packages; this package only consumes the interface.
type Host interface {
	// Start launches argv with the given standard streams, working
	// directory, and extra environment, returning a handle to the
	// running child. The child runs in its own process group. An
	// empty dir inherits the host's current directory.
	Start(ctx context.Context, argv []string,
		stdin *ReadChannel, stdout, stderr *WriteChannel,
		dir string, env map[string]string,
	) (Child, error)

	// Signal delivers sig to the process with the given pid on this
	// host.
	Signal(ctx context.Context, pid int, sig unix.Signal) error

	// Shell runs a shell command line to completion and returns its
	// combined trimmed output.
	Shell(ctx context.Context, command string) (string, error)

	// IsLocal reports whether commands run on the calling system.
	IsLocal() bool
}

// RelayHost is an optional interface for hosts reached through
// another host, such as an ssh target launched from a local relay.
type RelayHost interface {
	// Relay returns the host the connection is launched from.
	Relay() Host
}

// Child is a handle to one launched process.
type Child interface {
	// PID returns the process id as seen by the launching host. For
	// a relayed host this is the relay-side pid of the connection,
	// not the remote process.
	PID() int

	// Wait blocks until the process exits and returns its exit
	// error, if any. Wait must be called exactly once.
	Wait() error

	// Signal delivers sig to the process.
	Signal(sig unix.Signal) error

	// Terminate sends SIGTERM to the process group.
	Terminate() error

	// Kill sends SIGKILL to the process group.
	Kill() error
}
