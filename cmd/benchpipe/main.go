// Command benchpipe launches a command on a local or remote host
// with the full output pipeline attached, streaming the command's
// output to its own.
//
//	benchpipe -- make bench
//	benchpipe --host bench1 --timeout 30m -- ./run.sh --iters 10
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"lesiw.io/fs"

	"github.com/benchpipe/benchpipe"
	"github.com/benchpipe/benchpipe/cmdtree"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("benchpipe", pflag.ContinueOnError)
	var (
		cfgPath = flags.StringP("config", "c", defaultConfigPath(),
			"path to the hosts file")
		hostName = flags.StringP("host", "H", "",
			"named host to run on (default local)")
		timeout = flags.DurationP("timeout", "t", 0,
			"kill the command after this long")
		dir = flags.StringP("dir", "d", "",
			"working directory for the command")
		env = flags.StringArrayP("env", "e", nil,
			"extra KEY=VALUE environment (repeatable)")
		merge = flags.Bool("merge", false,
			"fold stderr into stdout line by line")
		trace = flags.BoolP("trace", "x", false,
			"echo the command before running it")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	log := newLogger()

	argv := flags.Args()
	if len(argv) == 0 {
		log.Error().Msg("no command given")
		return 2
	}
	if *trace {
		benchpipe.Trace = benchpipe.ShTrace
	}

	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		log.Error().Err(err).Msg("loading hosts file")
		return 1
	}
	host, err := cfg.Resolve(*hostName)
	if err != nil {
		log.Error().Err(err).Msg("resolving host")
		return 1
	}

	tree, err := cmdtree.Command(argv[0], cmdtree.Args(argv[1:]...)...)
	if err != nil {
		log.Error().Err(err).Msg("parsing command")
		return 1
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	if *dir != "" {
		ctx = fs.WithWorkDir(ctx, *dir)
	}
	if envMap, err := parseEnv(*env); err != nil {
		log.Error().Err(err).Msg("parsing environment")
		return 1
	} else if len(envMap) > 0 {
		ctx = benchpipe.WithEnv(ctx, envMap)
	}

	opts := []benchpipe.Option{
		benchpipe.WithLogger(log),
		benchpipe.WithStdin(benchpipe.NewReadChannel(os.Stdin)),
		benchpipe.WithOutputHooks(
			benchpipe.Pair{
				Out: sinkHook(os.Stdout),
				Err: sinkHook(os.Stderr),
			},
		),
	}
	if *merge {
		opts = append(opts, benchpipe.MergeErrToOut())
	}

	p, err := benchpipe.Execute(ctx, host, tree, opts...)
	if err != nil {
		log.Error().Err(err).Msg("launching command")
		return 1
	}
	err = p.Wait(ctx)
	var terr *benchpipe.TimeoutError
	var xerr *benchpipe.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &terr):
		log.Error().Dur("after", terr.After).Msg("command timed out")
		return 124
	case errors.As(err, &xerr):
		if xerr.Code != 0 {
			return xerr.Code
		}
		log.Error().Err(err).Msg("command failed")
		return 1
	default:
		log.Error().Err(err).Msg("command failed")
		return 1
	}
}

// sinkHook is a terminal stage copying a stream to w.
func sinkHook(w io.Writer) benchpipe.Hook {
	return benchpipe.NewWriterHook("sink", func(
		in *benchpipe.ReadChannel, out *benchpipe.WriteChannel,
	) error {
		_ = out.Close()
		_, err := io.Copy(w, in)
		return err
	})
}

func newLogger() zerolog.Logger {
	var out io.Writer = os.Stderr
	if term.IsTerminal(int(os.Stderr.Fd())) {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/benchpipe/hosts.yaml"
	}
	return "benchpipe.yaml"
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad environment pair %q", pair)
		}
		env[k] = v
	}
	return env, nil
}
