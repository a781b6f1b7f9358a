package benchpipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"lesiw.io/fs"
	"lesiw.io/fs/osfs"

	"github.com/benchpipe/benchpipe/cmdtree"
	"github.com/benchpipe/benchpipe/internal/sh"
)

type config struct {
	stdin     *ReadChannel
	inHooks   []Hook
	outHooks  []OutputHook
	mergeErr  bool
	ignore    map[int]bool
	ignoreAll bool
	log       zerolog.Logger
	fsys      fs.FS
	outFile   string
	errFile   string
}

// An Option adjusts how a command is launched.
type Option func(*config)

// WithStdin feeds the channel to the command's standard input. The
// default is an immediately-closed channel.
func WithStdin(in *ReadChannel) Option {
	return func(c *config) { c.stdin = in }
}

// WithInputHooks chains hooks over standard input before it reaches
// the command, in call order.
func WithInputHooks(hooks ...Hook) Option {
	return func(c *config) { c.inHooks = append(c.inHooks, hooks...) }
}

// WithOutputHooks attaches hooks to the command's output, in call
// order.
func WithOutputHooks(hooks ...OutputHook) Option {
	return func(c *config) { c.outHooks = append(c.outHooks, hooks...) }
}

// MergeErrToOut funnels standard error into the standard output
// stream, line by line, before any output hooks attach.
func MergeErrToOut() Option {
	return func(c *config) { c.mergeErr = true }
}

// IgnoreExitCodes treats the given nonzero exit codes as success.
func IgnoreExitCodes(codes ...int) Option {
	return func(c *config) {
		if c.ignore == nil {
			c.ignore = make(map[int]bool)
		}
		for _, code := range codes {
			c.ignore[code] = true
		}
	}
}

// IgnoreAnyExit treats every exit code as success.
func IgnoreAnyExit() Option {
	return func(c *config) { c.ignoreAll = true }
}

// WithLogger routes lifecycle warnings to log.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithFS sets the filesystem [SpawnAsync] persists output to. The
// default is the host operating system.
func WithFS(fsys fs.FS) Option {
	return func(c *config) { c.fsys = fsys }
}

// WithOutputFiles names the files [SpawnAsync] persists output to.
func WithOutputFiles(out, err string) Option {
	return func(c *config) { c.outFile, c.errFile = out, err }
}

// Execute resolves the command tree to an argv, launches it on host,
// and wires the configured hook pipeline over its output. The
// returned handle is live: the caller must consume or terminate the
// pipeline's end channels, or Wait with a terminal hook attached.
//
// The working directory comes from [fs.WithWorkDir] on ctx and extra
// environment from [WithEnv].
func Execute(
	ctx context.Context, host Host, tree cmdtree.Node, opts ...Option,
) (*Proc, error) {
	cfg := config{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	argv, err := cmdtree.Argv(tree)
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Fprintln(Trace, sh.Join(argv))

	stdin := cfg.stdin
	if stdin == nil {
		stdin = EmptyChannel()
	}
	for _, h := range cfg.inHooks {
		if err := h.Start(stdin); err != nil {
			return nil, err
		}
		stdin = h.Output()
	}

	outR, outW, err := Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := Pipe()
	if err != nil {
		return nil, err
	}

	child, err := host.Start(
		ctx, argv, stdin, outW, errW, fs.WorkDir(ctx), Envs(ctx))
	if err != nil {
		_ = outW.Close()
		_ = errW.Close()
		return nil, err
	}

	// After Start the child is live; failing to wire the pipeline
	// must not leave it running and unreaped.
	abort := func(err error) (*Proc, error) {
		_ = child.Kill()
		_ = child.Wait()
		return nil, err
	}
	out := &Output{Out: outR, Err: errR}
	if cfg.mergeErr {
		if err := out.MergeErrToOut(); err != nil {
			return abort(err)
		}
	}
	for _, h := range cfg.outHooks {
		if err := out.Attach(h); err != nil {
			return abort(err)
		}
	}

	return newProc(host, child, out, cfg.log, cfg.classify), nil
}

// classify maps a raw child exit error to this package's error
// taxonomy, honoring the configured exit-code allowances.
func (c *config) classify(err error) error {
	if err == nil || c.ignoreAll {
		return nil
	}
	var xerr *ExitError
	if errors.As(err, &xerr) && c.ignore[xerr.Code] {
		return nil
	}
	return err
}

// SpawnAsync launches the command with its output persisted to
// files, for long-running workloads observed after the fact. The
// persistence stage is terminal on both sides, so the handle never
// blocks on an unread pipe; [Proc.Output] reads the result back.
func SpawnAsync(
	ctx context.Context, host Host, tree cmdtree.Node, opts ...Option,
) (*Proc, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	fsys := cfg.fsys
	if fsys == nil {
		fsys = osfs.New()
	}
	outFile, errFile := cfg.outFile, cfg.errFile
	if outFile == "" {
		outFile = fmt.Sprintf("benchpipe-%d.out", time.Now().UnixNano())
	}
	if errFile == "" {
		errFile = strings.TrimSuffix(outFile, ".out") + ".err"
	}
	opts = append(opts,
		WithFS(fsys),
		WithOutputFiles(outFile, errFile),
		WithOutputHooks(FileHook(ctx, fsys, outFile, errFile)),
	)
	p, err := Execute(ctx, host, tree, opts...)
	if err != nil {
		return nil, err
	}
	p.fsys = fsys
	p.outFile = outFile
	p.errFile = errFile
	return p, nil
}

// Run executes the command tree to completion and returns its
// standard output with trailing newlines removed. Standard error is
// discarded unless the command fails, in which case it rides the
// returned [ExitError].
func Run(
	ctx context.Context, host Host, tree cmdtree.Node, opts ...Option,
) (string, error) {
	collect := NewCollectHook()
	opts = append(opts, WithOutputHooks(collect, VoidHook()))
	p, err := Execute(ctx, host, tree, opts...)
	if err != nil {
		return "", err
	}
	waitErr := p.Wait(ctx)
	stdout, outErr := collect.Stdout()
	stderr, _ := collect.Stderr()
	if waitErr != nil {
		var xerr *ExitError
		if errors.As(waitErr, &xerr) && len(xerr.Log) == 0 {
			return "", &ExitError{
				Log:  stderr,
				Err:  xerr.Err,
				Code: xerr.Code,
			}
		}
		return "", waitErr
	}
	if outErr != nil {
		return "", outErr
	}
	return strings.TrimRight(string(stdout), "\n"), nil
}
