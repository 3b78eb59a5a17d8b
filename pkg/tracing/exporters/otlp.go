// Package exporters builds the span exporters the tracer provider ships to
package exporters

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Ramsey-B/clover/pkg/errors"
)

// Protocol is the OTLP transport
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

// DefaultPort is the collector port each protocol listens on out of the box
func (p Protocol) DefaultPort() int {
	if p == ProtocolHTTP {
		return 4318
	}
	return 4317
}

const defaultExportTimeout = 10 * time.Second

// OTLPConfig points span export at a collector. An Endpoint without a port
// gets the protocol's default one.
type OTLPConfig struct {
	Endpoint string
	Protocol Protocol
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

// resolve fills in the protocol, port and timeout and rejects transports
// the exporter cannot speak
func (c OTLPConfig) resolve() (OTLPConfig, error) {
	if c.Protocol == "" {
		c.Protocol = ProtocolGRPC
	}
	c.Protocol = Protocol(strings.ToLower(string(c.Protocol)))
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return c, errors.NewConfigurationError("unsupported OTLP protocol %q, use grpc or http", c.Protocol)
	}

	if c.Endpoint == "" {
		c.Endpoint = "localhost"
	}
	if _, _, err := net.SplitHostPort(c.Endpoint); err != nil {
		c.Endpoint = net.JoinHostPort(c.Endpoint, strconv.Itoa(c.Protocol.DefaultPort()))
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultExportTimeout
	}
	return c, nil
}

// NewOTLPExporter ships dedup spans to an OTLP collector
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	if cfg.Protocol == ProtocolHTTP {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithTimeout(cfg.Timeout),
			otlptracehttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		return exp, errors.WrapExternalIO(err, "connect to otlp collector")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	return exp, errors.WrapExternalIO(err, "connect to otlp collector")
}
