// Package config loads rpbridge.yaml and the environment into the settings
// of one reporting session.
//
// Precedence is flags > environment > file > defaults. Flags are applied by
// the CLI after Resolve.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/rpbridge/bridge"
	"github.com/pithecene-io/rpbridge/types"
)

// Transport types.
const (
	TransportPortal  = "portal"
	TransportRedis   = "redis"
	TransportArchive = "archive"
	TransportStub    = "stub"
)

// Archive backends.
const (
	BackendS3 = "s3"
	BackendFS = "fs"
)

// Defaults.
const (
	DefaultTransport = TransportPortal
	DefaultLogLevel  = "info"
	DefaultBackend   = BackendS3
)

// Config represents an rpbridge.yaml configuration file.
type Config struct {
	Launch      LaunchConfig    `yaml:"launch" json:"launch"`
	Transport   TransportConfig `yaml:"transport" json:"transport"`
	Portal      PortalConfig    `yaml:"portal" json:"portal"`
	Redis       RedisConfig     `yaml:"redis" json:"redis"`
	Archive     ArchiveConfig   `yaml:"archive" json:"archive"`
	Notify      NotifyConfig    `yaml:"notify,omitempty" json:"notify,omitempty"`
	Format      string          `yaml:"format" json:"format"`
	LogLevel    string          `yaml:"log_level" json:"log_level"`
	MetricsAddr string          `yaml:"metrics_addr" json:"metrics_addr"`
}

// LaunchConfig holds the launch attributes.
type LaunchConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Attributes  []types.Attribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Mode        string            `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// TransportConfig selects the reporting transport.
type TransportConfig struct {
	Type    string   `yaml:"type" json:"type"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// PortalConfig holds ReportPortal connection settings.
type PortalConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Project  string `yaml:"project" json:"project"`
	Token    string `yaml:"token" json:"token"`
}

// RedisConfig holds Redis pub/sub settings.
type RedisConfig struct {
	URL     string `yaml:"url" json:"url"`
	Channel string `yaml:"channel,omitempty" json:"channel,omitempty"`
}

// ArchiveConfig holds archive transport settings.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset,omitempty" json:"dataset,omitempty"`
	Backend     string `yaml:"backend,omitempty" json:"backend,omitempty"`
	Path        string `yaml:"path,omitempty" json:"path,omitempty"`
	Bucket      string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix      string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	S3PathStyle bool   `yaml:"s3_path_style,omitempty" json:"s3_path_style,omitempty"`
}

// NotifyConfig configures run-finished notifications. Each target is
// enabled by setting its URL.
type NotifyConfig struct {
	Webhook WebhookConfig `yaml:"webhook,omitempty" json:"webhook,omitempty"`
	Redis   RedisConfig   `yaml:"redis,omitempty" json:"redis,omitempty"`
	// Retries applies to every target; nil means the notifier default.
	Retries *int          `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// WebhookConfig holds the HTTP notification target.
type WebhookConfig struct {
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string, or nothing when zero.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// MarshalJSON renders the duration as a string, or "" when zero.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.Duration == 0 {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Transport.Type == "" {
		c.Transport.Type = DefaultTransport
	}
	if c.Format == "" {
		c.Format = string(bridge.FormatMetadata)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = DefaultBackend
	}
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, strings.Join(e.Invalid, "; "))
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks the settings required by the selected transport.
// Returns a *ValidationError listing every problem, or nil.
func (c *Config) Validate() error {
	v := &ValidationError{}
	missing := func(key, value string) {
		if value == "" {
			v.Missing = append(v.Missing, key)
		}
	}

	missing("launch.name", c.Launch.Name)

	switch c.Transport.Type {
	case TransportPortal:
		missing("portal.endpoint", c.Portal.Endpoint)
		missing("portal.project", c.Portal.Project)
		missing("portal.token", c.Portal.Token)
		if c.Portal.Endpoint != "" {
			if u, err := url.Parse(c.Portal.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				v.Invalid = append(v.Invalid, fmt.Sprintf("portal.endpoint %q is not an absolute URL", c.Portal.Endpoint))
			}
		}
	case TransportRedis:
		missing("redis.url", c.Redis.URL)
	case TransportArchive:
		switch c.Archive.Backend {
		case BackendS3:
			missing("archive.bucket", c.Archive.Bucket)
		case BackendFS:
			missing("archive.path", c.Archive.Path)
		default:
			v.Invalid = append(v.Invalid, fmt.Sprintf("archive.backend %q (want %s or %s)", c.Archive.Backend, BackendS3, BackendFS))
		}
	case TransportStub:
	default:
		v.Invalid = append(v.Invalid, fmt.Sprintf("transport.type %q (want portal, redis, archive or stub)", c.Transport.Type))
	}

	if _, err := bridge.ParseFormat(c.Format); err != nil {
		v.Invalid = append(v.Invalid, err.Error())
	}
	switch types.LaunchMode(c.Launch.Mode) {
	case "", types.LaunchModeDefault, types.LaunchModeDebug:
	default:
		v.Invalid = append(v.Invalid, fmt.Sprintf("launch.mode %q (want DEFAULT or DEBUG)", c.Launch.Mode))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		v.Invalid = append(v.Invalid, fmt.Sprintf("log_level %q (want debug, info, warn or error)", c.LogLevel))
	}
	if u := c.Notify.Webhook.URL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			v.Invalid = append(v.Invalid, fmt.Sprintf("notify.webhook.url %q is not an absolute URL", u))
		}
	}
	if r := c.Notify.Retries; r != nil && *r < 0 {
		v.Invalid = append(v.Invalid, "notify.retries must not be negative")
	}
	if c.Transport.Timeout.Duration < 0 {
		v.Invalid = append(v.Invalid, "transport.timeout must not be negative")
	}

	if len(v.Missing) == 0 && len(v.Invalid) == 0 {
		return nil
	}
	return v
}

// BridgeLaunch converts the launch section for the bridge.
func (c *Config) BridgeLaunch() bridge.Launch {
	return bridge.Launch{
		Name:        c.Launch.Name,
		Description: c.Launch.Description,
		Attributes:  c.Launch.Attributes,
		Mode:        types.LaunchMode(c.Launch.Mode),
	}
}

// Project returns the project dimension for logs and metrics.
func (c *Config) Project() string {
	if c.Transport.Type == TransportPortal {
		return c.Portal.Project
	}
	return ""
}

// redactedValue replaces secrets in rendered configuration.
const redactedValue = "***"

// Redacted returns a copy with the token, Redis passwords and webhook
// header values masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Launch.Attributes = append([]types.Attribute(nil), c.Launch.Attributes...)
	if out.Portal.Token != "" {
		out.Portal.Token = redactedValue
	}
	out.Redis.URL = redactURL(out.Redis.URL)
	out.Notify.Redis.URL = redactURL(out.Notify.Redis.URL)
	if len(c.Notify.Webhook.Headers) > 0 {
		out.Notify.Webhook.Headers = make(map[string]string, len(c.Notify.Webhook.Headers))
		for k := range c.Notify.Webhook.Headers {
			out.Notify.Webhook.Headers[k] = redactedValue
		}
	}
	return &out
}

// redactURL masks the password of a URL with user info.
func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), redactedValue)
	return u.String()
}
