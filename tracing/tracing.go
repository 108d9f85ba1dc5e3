package tracing

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

var ServiceName string
var Provider *sdktrace.TracerProvider

// InitTraceProvider wires an exporter selected by environment:
// OTEL_GRPC_ENDPOINT wins over OTEL_JAEGER_ENDPOINT, neither means no-op spans.
func InitTraceProvider(servicename string) (shutdown func(), err error) {
	ServiceName = servicename

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(servicename),
	)

	switch {
	case os.Getenv("OTEL_GRPC_ENDPOINT") != "":
		exp, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpoint(os.Getenv("OTEL_GRPC_ENDPOINT")),
			otlptracegrpc.WithHeaders(map[string]string{
				"Authorization": os.Getenv("OTEL_AUTH_KEY"),
			}),
		)
		if err != nil {
			return nil, err
		}
		Provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
		log.Info().Msg("New GRPC TraceProvider")
	case os.Getenv("OTEL_JAEGER_ENDPOINT") != "":
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(os.Getenv("OTEL_JAEGER_ENDPOINT"))))
		if err != nil {
			return nil, err
		}
		Provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
		log.Info().Msg("New Jaeger TraceProvider")
	default:
		Provider = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	}

	otel.SetTracerProvider(Provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	shutdown = func() { Provider.Shutdown(context.Background()) }
	return
}

func NewSpan(name string, ctx context.Context) (context.Context, trace.Span) {
	tracer := otel.Tracer(ServiceName)
	return tracer.Start(ctx, name)
}
