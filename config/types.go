package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultHost             = "localhost"
	DefaultPort             = 41777
	DefaultStreamPath       = "/api/ws"
	DefaultReconnectFloor   = time.Second
	DefaultReconnectCeiling = 30 * time.Second
	DefaultKeepAlive        = 30 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultQueryTimeout     = 2 * time.Second
	DefaultNotifyTimeout    = time.Second
)

// ServerConfig locates the stratus server.
type ServerConfig struct {
	Host   string `yaml:"host,omitempty" toml:"host,omitempty" json:"host,omitempty" jsonschema:"description=Host name of the stratus server (default: localhost)"`
	Port   int    `yaml:"port,omitempty" toml:"port,omitempty" json:"port,omitempty" jsonschema:"description=TCP port of the stratus server (default: 41777),minimum=1,maximum=65535"`
	Scheme string `yaml:"scheme,omitempty" toml:"scheme,omitempty" json:"scheme,omitempty" jsonschema:"description=URL scheme for REST calls,enum=http,enum=https"`
}

// StreamConfig tunes the event stream transport. Durations use Go syntax ("1s", "500ms").
type StreamConfig struct {
	Path             string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Event stream endpoint path (default: /api/ws)"`
	ReconnectFloor   string `yaml:"reconnect_floor,omitempty" toml:"reconnect_floor,omitempty" json:"reconnect_floor,omitempty" jsonschema:"description=Initial reconnect delay (default: 1s),pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	ReconnectCeiling string `yaml:"reconnect_ceiling,omitempty" toml:"reconnect_ceiling,omitempty" json:"reconnect_ceiling,omitempty" jsonschema:"description=Maximum reconnect delay (default: 30s),pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	KeepAlive        string `yaml:"keepalive,omitempty" toml:"keepalive,omitempty" json:"keepalive,omitempty" jsonschema:"description=Keep-alive ping interval (default: 30s),pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	HandshakeTimeout string `yaml:"handshake_timeout,omitempty" toml:"handshake_timeout,omitempty" json:"handshake_timeout,omitempty" jsonschema:"description=WebSocket handshake timeout (default: 5s),pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
}

// HooksConfig configures the tool-invocation policy gate.
type HooksConfig struct {
	QueryTimeout  string   `yaml:"query_timeout,omitempty" toml:"query_timeout,omitempty" json:"query_timeout,omitempty" jsonschema:"description=Timeout for the workflow phase query (default: 2s),pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	NotifyTimeout string   `yaml:"notify_timeout,omitempty" toml:"notify_timeout,omitempty" json:"notify_timeout,omitempty" jsonschema:"description=Timeout for dirty-file notifications (default: 1s),pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	MutatingTools []string `yaml:"mutating_tools,omitempty" toml:"mutating_tools,omitempty" json:"mutating_tools,omitempty" jsonschema:"description=Tools gated by the phase guard (default: write edit bash patch)"`
	WatchTools    []string `yaml:"watch_tools,omitempty" toml:"watch_tools,omitempty" json:"watch_tools,omitempty" jsonschema:"description=Tools whose file path is reported for reindexing (default: write edit)"`
	BlockedPhases []string `yaml:"blocked_phases,omitempty" toml:"blocked_phases,omitempty" json:"blocked_phases,omitempty" jsonschema:"description=Workflow phases during which mutating tools are blocked (default: verify review)"`
	ReadOnlyTools []string `yaml:"read_only_tools,omitempty" toml:"read_only_tools,omitempty" json:"read_only_tools,omitempty" jsonschema:"description=Alternatives suggested when a tool is blocked (default: read grep glob)"`
	IgnorePaths   []string `yaml:"ignore_paths,omitempty" toml:"ignore_paths,omitempty" json:"ignore_paths,omitempty" jsonschema:"description=Dockerignore-style patterns for paths never reported as dirty"`

	DelegationTools []string `yaml:"delegation_tools,omitempty" toml:"delegation_tools,omitempty" json:"delegation_tools,omitempty" jsonschema:"description=Tools that spawn subagents (default: task)"`
	DeliveryAgents  []string `yaml:"delivery_agents,omitempty" toml:"delivery_agents,omitempty" json:"delivery_agents,omitempty" jsonschema:"description=Subagent type prefixes that need an active workflow before they are spawned (default: delivery-)"`
}

// Config is the stratus client configuration.
type Config struct {
	Server ServerConfig `yaml:"server,omitempty" toml:"server,omitempty" json:"server,omitempty" jsonschema:"description=Server location"`
	Stream StreamConfig `yaml:"stream,omitempty" toml:"stream,omitempty" json:"stream,omitempty" jsonschema:"description=Event stream transport settings"`
	Hooks  HooksConfig  `yaml:"hooks,omitempty" toml:"hooks,omitempty" json:"hooks,omitempty" jsonschema:"description=Policy gate settings"`

	// Extensions captures all other top-level keys (for example `logging`).
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Scheme == "" {
		c.Server.Scheme = "http"
	}
	if c.Stream.Path == "" {
		c.Stream.Path = DefaultStreamPath
	}
	if len(c.Hooks.MutatingTools) == 0 {
		c.Hooks.MutatingTools = []string{"write", "edit", "bash", "patch"}
	}
	if len(c.Hooks.WatchTools) == 0 {
		c.Hooks.WatchTools = []string{"write", "edit"}
	}
	if len(c.Hooks.BlockedPhases) == 0 {
		c.Hooks.BlockedPhases = []string{"verify", "review"}
	}
	if len(c.Hooks.ReadOnlyTools) == 0 {
		c.Hooks.ReadOnlyTools = []string{"read", "grep", "glob"}
	}
	if len(c.Hooks.DelegationTools) == 0 {
		c.Hooks.DelegationTools = []string{"task"}
	}
	if len(c.Hooks.DeliveryAgents) == 0 {
		c.Hooks.DeliveryAgents = []string{"delivery-"}
	}
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Scheme != "" && c.Server.Scheme != "http" && c.Server.Scheme != "https" {
		return fmt.Errorf("server.scheme must be http or https, got %q", c.Server.Scheme)
	}
	durations := map[string]string{
		"stream.reconnect_floor":   c.Stream.ReconnectFloor,
		"stream.reconnect_ceiling": c.Stream.ReconnectCeiling,
		"stream.keepalive":         c.Stream.KeepAlive,
		"stream.handshake_timeout": c.Stream.HandshakeTimeout,
		"hooks.query_timeout":      c.Hooks.QueryTimeout,
		"hooks.notify_timeout":     c.Hooks.NotifyTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, value)
		}
	}
	if c.ReconnectFloor() > c.ReconnectCeiling() {
		return fmt.Errorf("stream.reconnect_floor (%s) exceeds stream.reconnect_ceiling (%s)",
			c.ReconnectFloor(), c.ReconnectCeiling())
	}
	return nil
}

// BaseURL returns the REST base URL, e.g. http://localhost:41777.
func (c *Config) BaseURL() string {
	scheme := c.Server.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Server.Host, c.Server.Port)
}

// StreamURL returns the WebSocket URL of the event stream.
func (c *Config) StreamURL() string {
	scheme := "ws"
	if c.Server.Scheme == "https" {
		scheme = "wss"
	}
	path := c.Stream.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, c.Server.Host, c.Server.Port, path)
}

// ReconnectFloor is the initial and post-success reconnect delay.
func (c *Config) ReconnectFloor() time.Duration {
	return parseDuration(c.Stream.ReconnectFloor, DefaultReconnectFloor)
}

// ReconnectCeiling caps the reconnect delay.
func (c *Config) ReconnectCeiling() time.Duration {
	return parseDuration(c.Stream.ReconnectCeiling, DefaultReconnectCeiling)
}

// KeepAlive is the interval between keep-alive pings.
func (c *Config) KeepAlive() time.Duration {
	return parseDuration(c.Stream.KeepAlive, DefaultKeepAlive)
}

// HandshakeTimeout bounds the WebSocket handshake.
func (c *Config) HandshakeTimeout() time.Duration {
	return parseDuration(c.Stream.HandshakeTimeout, DefaultHandshakeTimeout)
}

// QueryTimeout bounds the policy gate's phase query.
func (c *Config) QueryTimeout() time.Duration {
	return parseDuration(c.Hooks.QueryTimeout, DefaultQueryTimeout)
}

// NotifyTimeout bounds a dirty-file notification.
func (c *Config) NotifyTimeout() time.Duration {
	return parseDuration(c.Hooks.NotifyTimeout, DefaultNotifyTimeout)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// UnmarshalExtension decodes the configuration for a specific extension from the
// loaded stratus.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
