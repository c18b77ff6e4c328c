// Package tracing builds the OpenTelemetry tracer provider statements are traced
// with. The exporter is chosen by TRACE_EXPORTER.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sllt/squery/pkg/squery/config"
	"github.com/sllt/squery/pkg/squery/datasource"
)

const (
	ExporterOTLP   = "otlp"
	ExporterZipkin = "zipkin"

	defaultServiceName = "squery"
	defaultOTLPURL     = "localhost:4317"
	defaultZipkinURL   = "http://localhost:9411/api/v2/spans"
)

var (
	errUnknownExporter = errors.New("unknown trace exporter")
	errInvalidRatio    = errors.New("TRACER_RATIO must be between 0 and 1")
)

// New returns a tracer provider configured from TRACE_EXPORTER, TRACER_URL,
// TRACER_RATIO and APP_NAME. It returns nil, nil when TRACE_EXPORTER is unset.
// Callers own the provider and must Shutdown it to flush pending spans.
func New(ctx context.Context, cfg config.Config, logger datasource.Logger) (*sdktrace.TracerProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Get("TRACE_EXPORTER")))
	if name == "" {
		return nil, nil
	}

	ratio, err := strconv.ParseFloat(cfg.GetOrDefault("TRACER_RATIO", "1"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: %q", errInvalidRatio, cfg.Get("TRACER_RATIO"))
	}

	exporter, url, err := newExporter(ctx, name, cfg.Get("TRACER_URL"))
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.GetOrDefault("APP_NAME", defaultServiceName)),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	if logger != nil {
		logger.Infof("exporting traces to '%s' at '%s'", name, url)
	}

	return tp, nil
}

func newExporter(ctx context.Context, name, url string) (sdktrace.SpanExporter, string, error) {
	switch name {
	case ExporterOTLP:
		if url == "" {
			url = defaultOTLPURL
		}

		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(url), otlptracegrpc.WithInsecure())

		return exp, url, err
	case ExporterZipkin:
		if url == "" {
			url = defaultZipkinURL
		}

		exp, err := zipkin.New(url)

		return exp, url, err
	default:
		return nil, "", fmt.Errorf("%w: %s", errUnknownExporter, name)
	}
}
