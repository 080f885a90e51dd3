// Package telemetry installs the OpenTelemetry tracer provider that records
// adaptation cycles and the actions they apply.
//
// Spans are created by the adaptive manager through the global provider.
// Without [Init] they are no-ops; after it they are batched to the
// configured exporter:
//
//   - "stdout": JSON spans on a writer (stderr by default)
//   - "otlp": an OTLP gRPC receiver such as the OpenTelemetry Collector
//
// # Basic Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{Exporter: "otlp", Endpoint: "localhost:4317"})
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
package telemetry
