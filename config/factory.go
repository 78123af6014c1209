package config

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/felixgeelhaar/mcp-client-go/client"
	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/transport"
)

// NewTransport builds the transport variant selected by cfg.Kind.
func NewTransport(cfg TransportConfig, logger logging.Logger) (transport.Transport, error) {
	logger = logging.OrNop(logger)

	switch cfg.Kind {
	case KindStdio:
		opts := []transport.StdioOption{
			transport.WithLogger(logger),
			transport.WithRequestTimeout(cfg.RequestTimeout.Duration),
			transport.WithShutdownTimeout(cfg.ShutdownTimeout.Duration),
		}
		if env := envList(cfg.Env); len(env) > 0 {
			opts = append(opts, transport.WithEnv(env...))
		}
		if cfg.Dir != "" {
			opts = append(opts, transport.WithDir(cfg.Dir))
		}
		if cfg.Quiet {
			opts = append(opts, transport.WithQuiet())
		}
		if cfg.MaxLineSize > 0 {
			opts = append(opts, transport.WithMaxLineSize(cfg.MaxLineSize))
		}
		return transport.NewStdio(cfg.Command, cfg.Args, opts...), nil

	case KindHTTP:
		opts := []transport.HTTPOption{
			transport.WithHTTPLogger(logger),
			transport.WithHTTPRequestTimeout(cfg.RequestTimeout.Duration),
		}
		if cfg.AuthToken != "" {
			opts = append(opts, transport.WithAuthToken(cfg.AuthToken))
		}
		for _, k := range sortedKeys(cfg.Headers) {
			opts = append(opts, transport.WithHeader(k, cfg.Headers[k]))
		}
		if cfg.MaxBodySize > 0 {
			opts = append(opts, transport.WithMaxBodySize(cfg.MaxBodySize))
		}
		if cfg.Probe {
			opts = append(opts, transport.WithStartProbe())
		}
		return transport.NewHTTP(cfg.Endpoint, opts...), nil

	case KindWebSocket:
		opts := []transport.WebSocketOption{
			transport.WithWebSocketLogger(logger),
			transport.WithWebSocketRequestTimeout(cfg.RequestTimeout.Duration),
		}
		if cfg.AuthToken != "" {
			opts = append(opts, transport.WithWebSocketAuthToken(cfg.AuthToken))
		}
		for _, k := range sortedKeys(cfg.Headers) {
			opts = append(opts, transport.WithWebSocketHeader(k, cfg.Headers[k]))
		}
		return transport.NewWebSocket(cfg.Endpoint, opts...), nil

	default:
		return nil, fmt.Errorf("config: unknown transport kind %q", cfg.Kind)
	}
}

// ClientOptions converts cfg into client options.
func ClientOptions(cfg ClientConfig, logger logging.Logger) []client.Option {
	opts := []client.Option{
		client.WithTimeout(cfg.Timeout.Duration),
		client.WithLogger(logger),
	}
	if cfg.Name != "" {
		opts = append(opts, client.WithClientInfo(cfg.Name, cfg.Version))
	}
	if cfg.ProtocolVersion != "" {
		opts = append(opts, client.WithProtocolVersion(cfg.ProtocolVersion))
	}
	if cfg.StrictProtocol {
		opts = append(opts, client.WithStrictProtocolVersion())
	}
	if cfg.UUIDRequestIDs {
		opts = append(opts, client.WithIDGenerator(client.UUIDGenerator()))
	}
	return opts
}

// NewLogger builds the logger selected by cfg, writing to w. The zap
// backend writes JSON through a production encoder; zerolog writes JSON
// lines with timestamps. The returned function flushes buffered output.
func NewLogger(cfg LoggingConfig, w io.Writer) (logging.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case "zap":
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			level,
		)
		zl := zap.New(core)
		return logging.Zap(zl), func() { _ = zl.Sync() }, nil

	case "zerolog":
		zl := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
		return logging.Zerolog(zl), func() {}, nil

	case "", "none":
		return logging.Nop(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("config: unknown logging.backend %q", cfg.Backend)
	}
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("config: logging.level: %w", err)
	}
	return level, nil
}

func zerologLevel(l zapcore.Level) zerolog.Level {
	switch l {
	case zapcore.DebugLevel:
		return zerolog.DebugLevel
	case zapcore.WarnLevel:
		return zerolog.WarnLevel
	case zapcore.ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range sortedKeys(env) {
		out = append(out, k+"="+env[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
