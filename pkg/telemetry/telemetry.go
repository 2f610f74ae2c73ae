// Package telemetry provides OpenTelemetry tracing for the risk engine.
// Pipeline runs get one root span per organization and one child span per stage.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskfabric/cyberrisk/pkg/config"
)

const tracerName = "github.com/riskfabric/cyberrisk"

// Config holds configuration for telemetry.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool

	ExporterType ExporterType
	OTLPEndpoint string
	OTLPInsecure bool

	// SampleRate is between 0.0 and 1.0.
	SampleRate float64
}

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp_grpc"
	ExporterOTLPHTTP ExporterType = "otlp_http"
)

// FromConfig maps the application's telemetry section to a provider config.
func FromConfig(cfg config.TelemetryConfig, service, version, env string) *Config {
	return &Config{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    env,
		Enabled:        cfg.Enabled,
		ExporterType:   ExporterType(cfg.Exporter),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
		SampleRate:     cfg.SampleRate,
	}
}

// Provider wraps the OpenTelemetry TracerProvider.
type Provider struct {
	cfg      *Config
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider creates a telemetry provider and installs it globally.
// A disabled config yields a provider backed by the global no-op tracer.
func NewProvider(ctx context.Context, cfg *Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{cfg: cfg, tracer: otel.Tracer(tracerName)}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		cfg:      cfg,
		provider: tp,
		tracer:   tp.Tracer(tracerName),
	}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func createExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return stdouttrace.New()
	}
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Span represents a traced operation.
type Span struct {
	trace.Span
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return ctx, &Span{Span: span}
}

// SetAttribute sets an attribute on the span.
func (s *Span) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.SetAttributes(attribute.String(key, v))
	case int:
		s.SetAttributes(attribute.Int(key, v))
	case int64:
		s.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.SetAttributes(attribute.Bool(key, v))
	case fmt.Stringer:
		s.SetAttributes(attribute.String(key, v.String()))
	default:
		s.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// SetError records an error on the span.
func (s *Span) SetError(err error) {
	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func (s *Span) SetOK() {
	s.SetStatus(codes.Ok, "")
}

// Finish ends the span, recording err when non-nil.
func (s *Span) Finish(err error) {
	if err != nil {
		s.SetError(err)
	} else {
		s.SetOK()
	}
	s.End()
}

// RunSpan starts the root span of one organization's pipeline run.
func RunSpan(ctx context.Context, orgID, runID, mode string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, "riskengine.run")
	span.SetAttributes(
		attribute.String("risk.org_id", orgID),
		attribute.String("risk.run_id", runID),
		attribute.String("risk.mode", mode),
	)
	return ctx, span
}

// StageSpan starts a span for one pipeline stage.
func StageSpan(ctx context.Context, stage string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, "riskengine.stage."+stage)
	span.SetAttributes(attribute.String("risk.stage", stage))
	return ctx, span
}

// DatabaseSpan starts a span for database operations.
func DatabaseSpan(ctx context.Context, operation, table string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		semconv.DBSystemPostgreSQL,
		semconv.DBOperation(operation),
		semconv.DBSQLTable(table),
	)
	return ctx, span
}

// HTTPMiddleware returns middleware that traces HTTP requests.
func HTTPMiddleware() func(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			rw := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPResponseStatusCode(rw.statusCode))
			if rw.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// GetTraceID returns the trace ID from context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// Timed records the elapsed time on the span when the returned func is called.
func Timed(span *Span) func() {
	start := time.Now()
	return func() {
		span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
	}
}
