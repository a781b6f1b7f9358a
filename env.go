package benchpipe

import (
	"context"
	"maps"
)

type envKey struct{}

// Envs returns a map of the environment variables stored in ctx.
func Envs(ctx context.Context) map[string]string {
	if env, ok := ctx.Value(envKey{}).(map[string]string); ok {
		return env
	}
	return nil
}

// WithEnv returns a new context with the provided environment
// variables merged with any existing environment variables in ctx.
// [Execute] passes them to the [Host]; the local host merges them
// over the process environment, the ssh host folds them into the
// relayed command line.
func WithEnv(ctx context.Context, env map[string]string) context.Context {
	val := maps.Clone(Envs(ctx))
	if val == nil {
		val = make(map[string]string, len(env))
	}
	maps.Copy(val, env)
	return context.WithValue(ctx, envKey{}, val)
}
