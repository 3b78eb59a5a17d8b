package tracing

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// Config selects where spans go. An empty Endpoint logs spans instead of
// shipping them.
type Config struct {
	ServiceName string
	Endpoint    string
	Protocol    string
	Insecure    bool
}

// Setup installs a global tracer provider and returns its shutdown func
func Setup(ctx context.Context, cfg Config, logger ectologger.Logger) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if cfg.Endpoint == "" {
		exporter = exporters.NewLogExporter(logger)
	} else {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.Endpoint,
			Protocol: exporters.Protocol(cfg.Protocol),
			Insecure: cfg.Insecure,
		})
		if err != nil {
			return nil, err
		}
		exporter = otlp
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	SetTracer(provider.Tracer(cfg.ServiceName))

	logger.WithFields(map[string]any{"endpoint": cfg.Endpoint, "service": cfg.ServiceName}).Info("Tracing configured")
	return provider.Shutdown, nil
}
