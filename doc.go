// Package benchpipe executes commands and supervises their output
// streams.
//
// A command is built as a tree
// ([github.com/benchpipe/benchpipe/cmdtree]) rather than a flat
// string, so commands can be nested, wrapped for remote execution,
// and parameterized with variables before they are flattened.
// [Execute] lowers a ground tree to an argument vector, spawns it on
// a [Host], and returns a [Proc]: a cancellable, signalable handle to
// the running command.
//
// Output flows through channels: unidirectional, OS-backed byte
// streams with exactly one reader and one writer ([ReadChannel],
// [WriteChannel]). Hooks attach to those channels and transform them
// concurrently:
//   - [WriterHook] consumes a channel and produces a new one
//     (drain, transform, sink).
//   - [ReaderHook] duplicates a channel so an observer, such as a
//     line logger, can watch the stream without breaking the chain.
//   - [ResultHook] accumulates a channel and exposes a blocking
//     Result once the upstream closes.
//
// An [OutputHook] pairs hooks for a process's stdout and stderr;
// composing several builds a multi-stage pipeline. Every hook worker
// closes its output's write end on all exit paths; a hook that does
// not strands every consumer downstream of it.
//
// Hosts decide where commands run.
// [github.com/benchpipe/benchpipe/sys] runs them on the local system.
// [github.com/benchpipe/benchpipe/ssh] relays them through the local
// ssh client; the supervisor then only holds the relay process, and
// [Proc.Stop] correlates connection tables to tear down the remote
// process tree. [github.com/benchpipe/benchpipe/mock] scripts a Host
// for tests.
//
// A typical run:
//
//	tree, _ := cmdtree.Command("echo hello")
//	out, err := benchpipe.Run(ctx, sys.Host(), tree) // "hello"
//
// or, keeping the handle:
//
//	collect := benchpipe.NewCollectHook()
//	p, err := benchpipe.Execute(ctx, sys.Host(), tree,
//	    benchpipe.WithOutputHooks(collect, benchpipe.VoidHook()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = p.Wait(ctx)
//	stdout, err := collect.Stdout() // "hello\n"
//
// [SpawnAsync] additionally persists the fully-drained output to
// files (through [lesiw.io/fs]) once the pipeline finishes, and
// [Proc.Output] reads it back.
//
// Environment variables and the working directory ride the
// [context.Context]: set them with [WithEnv] and
// [lesiw.io/fs.WithWorkDir].
//
// [Trace] can be set to any [io.Writer] to echo commands as they are
// spawned, in set -x style.
package benchpipe
