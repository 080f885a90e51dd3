package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Iron-Ham/foresight/internal/errors"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ErrUnknownExporter is returned for an unsupported Config.Exporter.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config selects and configures the trace exporter.
type Config struct {
	// ServiceName identifies this process in traces (default: "foresight").
	ServiceName string
	// ServiceVersion is recorded as service.version when set.
	ServiceVersion string
	// Exporter is ExporterStdout or ExporterOTLP.
	Exporter string
	// Endpoint is the OTLP gRPC receiver address.
	Endpoint string
	// Insecure disables TLS for the OTLP connection.
	Insecure bool
	// SampleRatio is the fraction of root traces kept, in [0,1].
	SampleRatio float64
}

// Option configures provider construction.
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter sets where the stdout exporter writes. Default is os.Stderr
// so spans never mix with command output.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// NewTracerProvider builds a batching tracer provider for cfg without
// installing it.
func NewTracerProvider(ctx context.Context, cfg Config, opts ...Option) (*sdktrace.TracerProvider, error) {
	o := options{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case ExporterOTLP:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, grpcOpts...)
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(o.writer))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

// Init installs a provider built from cfg as the global tracer provider.
// The returned function flushes pending spans and must be called on exit.
func Init(ctx context.Context, cfg Config, opts ...Option) (shutdown func(context.Context) error, err error) {
	tp, err := NewTracerProvider(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func newResource(cfg Config) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = "foresight"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	return resource.NewWithAttributes("", attrs...)
}
