package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv. Each setting is also read under
// its dotted name (rp.endpoint, rp.project, rp.uuid, rp.launch) for
// compatibility with existing host setups; the upper-case name wins.
const (
	EnvEndpoint = "RP_ENDPOINT"
	EnvProject  = "RP_PROJECT"
	EnvToken    = "RP_UUID"
	EnvLaunch   = "RP_LAUNCH"
)

var envKeys = []struct {
	primary string
	dotted  string
	set     func(*Config, string)
}{
	{EnvEndpoint, "rp.endpoint", func(c *Config, v string) { c.Portal.Endpoint = v }},
	{EnvProject, "rp.project", func(c *Config, v string) { c.Portal.Project = v }},
	{EnvToken, "rp.uuid", func(c *Config, v string) { c.Portal.Token = v }},
	{EnvLaunch, "rp.launch", func(c *Config, v string) { c.Launch.Name = v }},
}

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config struct.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup LookupFunc) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(ExpandEnvFunc(string(data), lookup)), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overlays the RP_* (or rp.*) environment onto cfg.
// Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	for _, k := range envKeys {
		if v, ok := lookup(k.primary); ok && v != "" {
			k.set(cfg, v)
			continue
		}
		if v, ok := lookup(k.dotted); ok && v != "" {
			k.set(cfg, v)
		}
	}
}

// Resolve loads path (if non-empty), overlays the environment, and applies
// defaults. It does not validate; callers apply flags first.
func Resolve(path string, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := load(path, lookup)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	ApplyEnv(cfg, lookup)
	cfg.ApplyDefaults()
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
