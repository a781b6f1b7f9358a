package benchpipe

import (
	"context"
	"fmt"
	"strings"

	"lesiw.io/zeros"

	"github.com/benchpipe/benchpipe/internal/sh"
)

// BinCache resolves program names to absolute paths on a host,
// remembering answers so repeated launches of the same binary cost
// one shell round trip total.
type BinCache struct {
	host  Host
	paths zeros.Map[string, string]
}

func NewBinCache(host Host) *BinCache {
	return &BinCache{host: host}
}

// Which returns the absolute path of name on the cache's host.
func (c *BinCache) Which(ctx context.Context, name string) (string, error) {
	if path, ok := c.paths.CheckGet(name); ok {
		return path, nil
	}
	out, err := c.host.Shell(ctx, "command -v "+sh.Quote(name))
	if err != nil {
		return "", fmt.Errorf("no %q in path: %w", name, err)
	}
	path := strings.TrimSpace(out)
	if path == "" {
		return "", fmt.Errorf("no %q in path", name)
	}
	c.paths.Set(name, path)
	return path, nil
}

// Reset drops every cached path, for use after the host's
// environment changes.
func (c *BinCache) Reset() {
	c.paths = zeros.Map[string, string]{}
}
