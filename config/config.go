// Package config loads declarative client configuration from YAML or TOML
// files and builds the transport, client options and logger it describes.
//
// A minimal YAML file:
//
//	transport:
//	  kind: stdio
//	  command: goldentooth
//	  args: [mcp, serve]
//	  quiet: true
//	client:
//	  timeout: 30s
//
// String values may reference environment variables as $VAR or ${VAR}.
// MCP_ENDPOINT and MCP_AUTH_TOKEN override the endpoint and token.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
	"github.com/felixgeelhaar/mcp-client-go/transport"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvEndpoint  = "MCP_ENDPOINT"
	EnvAuthToken = "MCP_AUTH_TOKEN"
)

// ErrUnsupportedFormat is returned by Load for unknown file extensions.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Kind selects a transport variant.
type Kind string

// Transport kinds.
const (
	KindStdio     Kind = "stdio"
	KindHTTP      Kind = "http"
	KindWebSocket Kind = "websocket"
)

// Config is the complete client configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Client    ClientConfig    `yaml:"client" toml:"client"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// TransportConfig describes the channel to the server. Command, Args, Env,
// Dir, Quiet and MaxLineSize apply to stdio; Endpoint, AuthToken and
// Headers to http and websocket; Probe and MaxBodySize to http only.
type TransportConfig struct {
	Kind            Kind              `yaml:"kind" toml:"kind"`
	Command         string            `yaml:"command" toml:"command"`
	Args            []string          `yaml:"args" toml:"args"`
	Env             map[string]string `yaml:"env" toml:"env"`
	Dir             string            `yaml:"dir" toml:"dir"`
	Quiet           bool              `yaml:"quiet" toml:"quiet"`
	MaxLineSize     int               `yaml:"max_line_size" toml:"max_line_size"`
	Endpoint        string            `yaml:"endpoint" toml:"endpoint"`
	AuthToken       string            `yaml:"auth_token" toml:"auth_token"`
	Headers         map[string]string `yaml:"headers" toml:"headers"`
	Probe           bool              `yaml:"probe" toml:"probe"`
	MaxBodySize     int64             `yaml:"max_body_size" toml:"max_body_size"`
	RequestTimeout  Duration          `yaml:"request_timeout" toml:"request_timeout"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// ClientConfig configures the typed client.
type ClientConfig struct {
	Name            string   `yaml:"name" toml:"name"`
	Version         string   `yaml:"version" toml:"version"`
	ProtocolVersion string   `yaml:"protocol_version" toml:"protocol_version"`
	StrictProtocol  bool     `yaml:"strict_protocol" toml:"strict_protocol"`
	Timeout         Duration `yaml:"timeout" toml:"timeout"`
	UUIDRequestIDs  bool     `yaml:"uuid_request_ids" toml:"uuid_request_ids"`
}

// LoggingConfig selects the log backend.
type LoggingConfig struct {
	// Backend is "zap", "zerolog" or "none".
	Backend string `yaml:"backend" toml:"backend"`
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level" toml:"level"`
}

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:            KindStdio,
			MaxLineSize:     transport.DefaultMaxLineSize,
			MaxBodySize:     transport.DefaultMaxBodySize,
			RequestTimeout:  Duration{transport.DefaultRequestTimeout},
			ShutdownTimeout: Duration{transport.DefaultShutdownTimeout},
		},
		Client: ClientConfig{
			Name:            "mcp-client-go",
			Version:         "1.0.0",
			ProtocolVersion: protocol.MCPVersion,
			Timeout:         Duration{transport.DefaultRequestTimeout},
		},
		Logging: LoggingConfig{
			Backend: "none",
			Level:   "info",
		},
	}
}

// DefaultSearchPaths returns the config file search order:
// ./mcp.yaml, ./mcp.toml, then the same names under ~/.config/mcp-client.
func DefaultSearchPaths() []string {
	names := []string{"mcp.yaml", "mcp.yml", "mcp.toml"}
	paths := append([]string(nil), names...)

	if home, err := os.UserHomeDir(); err == nil {
		for _, n := range names {
			paths = append(paths, filepath.Join(home, ".config", "mcp-client", n))
		}
	}
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise the first existing entry of DefaultSearchPaths is returned.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Load reads the file at path, decoding it as YAML (.yaml, .yml) or TOML
// (.toml). Environment references are expanded, MCP_ENDPOINT and
// MCP_AUTH_TOKEN are applied, and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml" or
// ".toml") on top of Default, then applies the environment and validates.
func Parse(ext string, data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the endpoint and auth token from MCP_ENDPOINT and
// MCP_AUTH_TOKEN when they are set.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvEndpoint)); v != "" {
		c.Transport.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthToken)); v != "" {
		c.Transport.AuthToken = v
	}
}

// Validate reports the first problem with the configuration.
func (c *Config) Validate() error {
	t := c.Transport
	switch t.Kind {
	case KindStdio:
		if t.Command == "" {
			return errors.New("config: transport.command required for stdio")
		}
	case KindHTTP:
		if err := validateURL(t.Endpoint, "http", "https"); err != nil {
			return err
		}
	case KindWebSocket:
		if err := validateURL(t.Endpoint, "ws", "wss"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: unknown transport.kind %q", t.Kind)
	}

	if t.RequestTimeout.Duration < 0 || t.ShutdownTimeout.Duration < 0 || c.Client.Timeout.Duration < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	if t.MaxLineSize < 0 || t.MaxBodySize < 0 {
		return errors.New("config: size limits must not be negative")
	}

	switch c.Logging.Backend {
	case "", "none", "zap", "zerolog":
	default:
		return fmt.Errorf("config: unknown logging.backend %q", c.Logging.Backend)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("config: transport.endpoint required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: transport.endpoint: %w", err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("config: transport.endpoint %q must be a %s URL", raw, strings.Join(schemes, " or "))
}
