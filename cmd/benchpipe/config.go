package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/benchpipe/benchpipe"
	"github.com/benchpipe/benchpipe/ssh"
	"github.com/benchpipe/benchpipe/sys"
)

// Config maps host names to connection details.
type Config struct {
	Hosts map[string]HostConfig `yaml:"hosts"`
}

type HostConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// LoadConfig reads a YAML hosts file. A missing path yields an empty
// config, so the local host always works without one.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	} else if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Resolve returns the host to launch commands on. An empty name or
// "local" is the local system; anything else must appear in the
// hosts file and is reached over ssh.
func (c *Config) Resolve(name string) (benchpipe.Host, error) {
	if name == "" || name == "local" {
		return sys.Host(), nil
	}
	hc, ok := c.Hosts[name]
	if !ok {
		return nil, fmt.Errorf("unknown host %q", name)
	}
	addr := hc.Addr
	if addr == "" {
		addr = name
	}
	var opts []ssh.Option
	if hc.Port != 0 {
		opts = append(opts, ssh.Port(hc.Port))
	}
	return ssh.Host(sys.Host(), addr, opts...), nil
}
