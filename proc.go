package benchpipe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
	"lesiw.io/fs"
)

// State describes where a launched process is in its lifecycle.
type State int

const (
	Running State = iota
	Finished
	TimedOut
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Finished:
		return "finished"
	case TimedOut:
		return "timed out"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// stopGrace is how long Stop waits for a process to exit after a
// termination request before escalating to SIGKILL.
const stopGrace = 5 * time.Second

// A Proc is a handle to a launched command and its output pipeline.
// One waiter goroutine owns the child's exit status; every method
// that needs the status reads it through the done channel, so the
// status is reaped exactly once no matter how many callers ask.
type Proc struct {
	host  Host
	child Child
	out   *Output
	log   zerolog.Logger

	fsys    fs.FS
	outFile string
	errFile string

	done    chan struct{}
	waitErr error

	mu    sync.Mutex
	state State

	drain func() error
}

func newProc(host Host, child Child, out *Output, log zerolog.Logger,
	classify func(error) error,
) *Proc {
	p := &Proc{
		host:  host,
		child: child,
		out:   out,
		log:   log,
		done:  make(chan struct{}),
	}
	p.drain = sync.OnceValue(func() error {
		if p.out == nil {
			return nil
		}
		return p.out.Wait()
	})
	go func() {
		defer close(p.done)
		err := child.Wait()
		if classify != nil {
			err = classify(err)
		}
		p.waitErr = err
		p.mu.Lock()
		if p.state == Running {
			p.state = Finished
		}
		p.mu.Unlock()
	}()
	return p
}

// PID returns the launched process id as seen by the launching host.
func (p *Proc) PID() int { return p.child.PID() }

// State returns the current lifecycle state.
func (p *Proc) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsFinished reports whether the process has exited, without
// blocking.
func (p *Proc) IsFinished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or ctx is done. When the
// context deadline fires first the process group is killed, the
// handle moves to the timed-out state, and a [TimeoutError] is
// returned.
func (p *Proc) Wait(ctx context.Context) error {
	start := time.Now()
	finished := func() error {
		if err := p.drain(); err != nil {
			return errors.Join(p.waitErr, err)
		}
		return p.annotate(ctx, p.waitErr)
	}
	// An exit that beat an already-expired context is still an exit.
	select {
	case <-p.done:
		return finished()
	default:
	}
	select {
	case <-p.done:
		return finished()
	case <-ctx.Done():
	}
	if err := p.child.Kill(); err != nil {
		p.log.Warn().Err(err).Int("pid", p.PID()).
			Msg("kill after timeout failed")
	}
	<-p.done
	p.mu.Lock()
	p.state = TimedOut
	p.mu.Unlock()
	_ = p.drain()
	return &TimeoutError{After: time.Since(start)}
}

// Signal delivers sig to the process with the given pid on the
// launching host. The pid is explicit because on a relayed host the
// handle's own pid names the relay-side connection, not the remote
// process; the caller resolves the remote pid and passes it here.
// Signalling the handle's own pid on a local host goes straight to
// the child.
func (p *Proc) Signal(ctx context.Context, sig unix.Signal, pid int) error {
	if p.IsFinished() {
		return &AlreadyFinishedError{Code: exitCode(p.waitErr)}
	}
	if p.host.IsLocal() && pid == p.PID() {
		return p.child.Signal(sig)
	}
	return p.host.Signal(ctx, pid, sig)
}

// Stop ends the process and its descendants. On a local host the
// whole process group gets SIGTERM. On a relayed host the remote
// process tree is found by correlating the relay-side connection pid
// with the remote peer port, then killed leaves first; if the
// correlation fails the relay-side group is terminated instead,
// which ends the connection but can orphan the remote tree. Either
// way Stop waits for exit, escalating to SIGKILL after a grace
// period. Stopping an already-finished process returns
// [AlreadyFinishedError].
func (p *Proc) Stop(ctx context.Context) error {
	if p.IsFinished() {
		return &AlreadyFinishedError{Code: exitCode(p.waitErr)}
	}
	if rh, ok := p.host.(RelayHost); ok {
		if err := p.stopRemote(ctx, rh); err != nil {
			p.log.Warn().Err(err).Int("pid", p.PID()).
				Msg("remote process correlation failed")
			if terr := p.child.Terminate(); terr != nil {
				p.log.Warn().Err(terr).Msg("terminate failed")
			}
		}
	} else if err := p.child.Terminate(); err != nil && !p.IsFinished() {
		return err
	}
	select {
	case <-p.done:
	case <-time.After(stopGrace):
		_ = p.child.Kill()
		<-p.done
	}
	p.mu.Lock()
	p.state = Stopped
	p.mu.Unlock()
	return p.drain()
}

// stopRemote resolves the remote process behind the relay connection
// and kills its tree. The mapping from relay pid to remote pid goes
// through the TCP connection: the relay-side netstat row for the
// connection pid gives the local port, and the remote netstat row
// for that port names the remote peer process. The mapping is only
// valid while the connection is up, so the tree is killed before
// anything touches the relay-side process.
func (p *Proc) stopRemote(ctx context.Context, rh RelayHost) error {
	port, err := connPort(ctx, rh.Relay(), p.PID())
	if err != nil {
		return &CorrelationError{Err: err}
	}
	pid, err := remotePID(ctx, p.host, port)
	if err != nil {
		return &CorrelationError{Err: err}
	}
	if err := killTree(ctx, p.host, pid); err != nil {
		return &CorrelationError{Err: err}
	}
	return nil
}

// connPort returns the local TCP port of the connection owned by pid
// on the relay.
func connPort(ctx context.Context, relay Host, pid int) (string, error) {
	out, err := relay.Shell(ctx,
		fmt.Sprintf("netstat -tnp | grep %d", pid))
	if err != nil {
		return "", fmt.Errorf("no connection for pid %d: %w", pid, err)
	}
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", fmt.Errorf("unexpected netstat row %q", line)
	}
	local := fields[3]
	i := strings.LastIndex(local, ":")
	if i < 0 || i == len(local)-1 {
		return "", fmt.Errorf("no port in address %q", local)
	}
	return local[i+1:], nil
}

// remotePID returns the pid of the remote process holding the
// connection from the given peer port.
func remotePID(ctx context.Context, host Host, port string) (int, error) {
	out, err := host.Shell(ctx, "sudo netstat -tnp | grep :"+port)
	if err != nil {
		return 0, fmt.Errorf("no remote peer on port %s: %w", port, err)
	}
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return 0, fmt.Errorf("unexpected netstat row %q", line)
	}
	pidProg, _, _ := strings.Cut(fields[6], "/")
	pid, err := strconv.Atoi(pidProg)
	if err != nil {
		return 0, fmt.Errorf("bad pid in netstat row %q: %w", line, err)
	}
	return pid, nil
}

// killTree kills pid and its descendants on host, children first so
// no child is reparented away before its turn.
func killTree(ctx context.Context, host Host, pid int) error {
	out, err := host.Shell(ctx,
		fmt.Sprintf("ps -o pid= --ppid %d", pid))
	if err == nil {
		for f := range strings.FieldsSeq(out) {
			child, err := strconv.Atoi(f)
			if err != nil {
				continue
			}
			if err := killTree(ctx, host, child); err != nil {
				return err
			}
		}
	}
	_, err = host.Shell(ctx, fmt.Sprintf("kill %d", pid))
	return err
}

// annotate attaches persisted stderr to a bare exit error, for
// processes spawned with their output on file.
func (p *Proc) annotate(ctx context.Context, err error) error {
	var xerr *ExitError
	if !errors.As(err, &xerr) || len(xerr.Log) > 0 ||
		p.fsys == nil || p.errFile == "" {
		return err
	}
	buf, rerr := fs.ReadFile(ctx, p.fsys, p.errFile)
	if rerr != nil || len(buf) == 0 {
		return err
	}
	return &ExitError{Log: buf, Err: xerr.Err, Code: xerr.Code}
}

// ExitErr returns the exit error of a finished process, or nil if it
// is still running or exited cleanly.
func (p *Proc) ExitErr() error {
	if !p.IsFinished() {
		return nil
	}
	return p.waitErr
}

// Output returns the process output persisted by [SpawnAsync],
// blocking until the process and its pipeline finish.
func (p *Proc) Output(ctx context.Context) (string, error) {
	<-p.done
	if err := p.drain(); err != nil {
		return "", err
	}
	if p.fsys == nil || p.outFile == "" {
		return "", errors.New("benchpipe: process output was not persisted")
	}
	buf, err := fs.ReadFile(ctx, p.fsys, p.outFile)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func exitCode(err error) int {
	var xerr *ExitError
	if errors.As(err, &xerr) {
		return xerr.Code
	}
	return 0
}
