// Package mock provides a Host implementation for testing that tracks
// invocations and allows scripting responses.
//
// Launched commands are scripted with [Host.Return]: each matching
// Start gets a child that plays back the scripted output and exit
// code. Shell round trips are scripted with [Host.ReturnShell] by
// substring pattern, most specific pattern first. Every Start, Shell,
// and Signal call is recorded for inspection with cmp.Diff.
//
//	h := new(mock.Host)
//	h.Return(&mock.Child{Pid: 101, Stdout: "hello\n"}, "echo")
//	h.ReturnShell("command -v", "/usr/bin/tool\n")
package mock

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/benchpipe/benchpipe"
)

// StartCall is one recorded Start invocation.
type StartCall struct {
	Argv []string
	Dir  string
	Env  map[string]string
}

// SignalCall is one recorded signal delivery, whether through
// Host.Signal or a child handle.
type SignalCall struct {
	Pid int
	Sig unix.Signal
}

// Child scripts the behavior of one launched process. Stdout and
// Stderr are written to the process streams as soon as it starts.
// A blocking child then stays alive until released, terminated,
// or killed; otherwise it exits immediately with Code.
type Child struct {
	Pid    int
	Code   int
	Stdout string
	Stderr string
	Block  bool
}

type script struct {
	argv []string
	kids []*Child
}

type shellScript struct {
	pattern string
	outs    []string
	err     error
}

// Host is a scripted implementation of benchpipe.Host.
type Host struct {
	mu sync.Mutex

	StartCalls  []StartCall
	ShellCalls  []string
	SignalCalls []SignalCall

	scripts []script
	shells  []shellScript
	local   bool
	nextPid int

	children map[int]*liveChild
}

// NewHost returns a local scripted host.
func NewHost() *Host { return &Host{local: true} }

// Return queues c for Start calls whose argv begins with pattern.
// The last child for a pattern repeats once the queue is exhausted.
// An empty pattern is the default for all commands.
func (h *Host) Return(c *Child, pattern ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.scripts {
		if argsEqual(h.scripts[i].argv, pattern) {
			h.scripts[i].kids = append(h.scripts[i].kids, c)
			return
		}
	}
	h.scripts = append(h.scripts, script{
		argv: append([]string(nil), pattern...),
		kids: []*Child{c},
	})
}

// ReturnShell queues output for Shell commands containing pattern.
// The last output for a pattern repeats once the queue is exhausted.
// An empty pattern is the default for all commands.
func (h *Host) ReturnShell(pattern, output string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.shells {
		if h.shells[i].pattern == pattern {
			h.shells[i].outs = append(h.shells[i].outs, output)
			return
		}
	}
	h.shells = append(h.shells, shellScript{
		pattern: pattern, outs: []string{output},
	})
}

// FailShell makes Shell commands containing pattern return err.
func (h *Host) FailShell(pattern string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.shells {
		if h.shells[i].pattern == pattern {
			h.shells[i].err = err
			return
		}
	}
	h.shells = append(h.shells, shellScript{pattern: pattern, err: err})
}

func (h *Host) Start(ctx context.Context, argv []string,
	stdin *benchpipe.ReadChannel,
	stdout, stderr *benchpipe.WriteChannel,
	dir string, env map[string]string,
) (benchpipe.Child, error) {
	h.mu.Lock()
	h.StartCalls = append(h.StartCalls, StartCall{
		Argv: append([]string(nil), argv...),
		Dir:  dir,
		Env:  env,
	})
	spec := h.take(argv)
	if spec == nil {
		spec = &Child{}
	}
	pid := spec.Pid
	if pid == 0 {
		h.nextPid++
		pid = 1000 + h.nextPid
	}
	c := &liveChild{host: h, pid: pid, code: spec.Code,
		exited: make(chan struct{})}
	if h.children == nil {
		h.children = make(map[int]*liveChild)
	}
	h.children[pid] = c
	h.mu.Unlock()

	go func() {
		_, _ = io.Copy(io.Discard, stdin)
	}()
	go func() {
		_, _ = io.WriteString(stdout, spec.Stdout)
		_, _ = io.WriteString(stderr, spec.Stderr)
		_ = stdout.Close()
		_ = stderr.Close()
		if !spec.Block {
			c.exit(spec.Code)
		}
	}()
	return c, nil
}

// take pops the most specific scripted child matching argv.
func (h *Host) take(argv []string) *Child {
	var best *script
	bestLen := -1
	for i := range h.scripts {
		s := &h.scripts[i]
		if argsMatch(argv, s.argv) && len(s.argv) > bestLen {
			best, bestLen = s, len(s.argv)
		}
	}
	if best == nil || len(best.kids) == 0 {
		return nil
	}
	c := best.kids[0]
	if len(best.kids) > 1 {
		best.kids = best.kids[1:]
	}
	return c
}

func (h *Host) Signal(
	ctx context.Context, pid int, sig unix.Signal,
) error {
	h.mu.Lock()
	h.SignalCalls = append(h.SignalCalls, SignalCall{Pid: pid, Sig: sig})
	c := h.children[pid]
	h.mu.Unlock()
	if c == nil {
		return fmt.Errorf("mock: no process %d", pid)
	}
	if sig == unix.SIGTERM || sig == unix.SIGKILL {
		c.exit(c.code)
	}
	return nil
}

func (h *Host) Shell(ctx context.Context, command string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ShellCalls = append(h.ShellCalls, command)
	var best *shellScript
	bestLen := -1
	for i := range h.shells {
		s := &h.shells[i]
		if strings.Contains(command, s.pattern) &&
			len(s.pattern) > bestLen {
			best, bestLen = s, len(s.pattern)
		}
	}
	if best == nil {
		return "", fmt.Errorf("mock: unscripted shell command %q", command)
	}
	if best.err != nil {
		return "", best.err
	}
	out := best.outs[0]
	if len(best.outs) > 1 {
		best.outs = best.outs[1:]
	}
	return out, nil
}

func (h *Host) IsLocal() bool { return h.local }

// Shelled reports whether command has been run through Shell. It is
// safe to call while the host is in use.
func (h *Host) Shelled(command string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.ShellCalls {
		if c == command {
			return true
		}
	}
	return false
}

// Release lets a blocking child with the given pid exit.
func (h *Host) Release(pid int) {
	h.mu.Lock()
	c := h.children[pid]
	h.mu.Unlock()
	if c != nil {
		c.exit(c.code)
	}
}

type liveChild struct {
	host   *Host
	pid    int
	code   int
	once   sync.Once
	exited chan struct{}
}

func (c *liveChild) exit(code int) {
	c.once.Do(func() {
		c.code = code
		close(c.exited)
	})
}

func (c *liveChild) PID() int { return c.pid }

func (c *liveChild) Wait() error {
	<-c.exited
	if c.code == 0 {
		return nil
	}
	return &benchpipe.ExitError{
		Err:  fmt.Errorf("exit status %d", c.code),
		Code: c.code,
	}
}

func (c *liveChild) Signal(sig unix.Signal) error {
	return c.host.Signal(context.Background(), c.pid, sig)
}

func (c *liveChild) Terminate() error {
	return c.Signal(unix.SIGTERM)
}

func (c *liveChild) Kill() error {
	return c.Signal(unix.SIGKILL)
}

// Remote is a scripted host reached through a relay, for exercising
// remote process control paths.
type Remote struct {
	Host
	relay benchpipe.Host
}

// NewRemote returns a scripted remote host launched from relay.
func NewRemote(relay benchpipe.Host) *Remote {
	return &Remote{relay: relay}
}

func (r *Remote) Relay() benchpipe.Host { return r.relay }

func (r *Remote) IsLocal() bool { return false }

func argsMatch(actual, pattern []string) bool {
	if len(actual) < len(pattern) {
		return false
	}
	for i, p := range pattern {
		if actual[i] != p {
			return false
		}
	}
	return true
}

func argsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
