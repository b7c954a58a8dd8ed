// Package telemetry configures OpenTelemetry tracing for the bot and gives
// workflows a small span helper.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
)

// Setup initialises tracing for serviceName. Tracing is opt-in: with an empty
// endpoint Setup returns a no-op shutdown and the global no-op provider stays.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName, endpoint string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Start opens a span tagged with the group id.
func Start(ctx context.Context, tracer trace.Tracer, name, groupID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("economy.group_id", groupID))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End closes span, recording err. Business failures are tagged with their
// code but do not mark the span as errored.
func End(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	code := apperrors.CodeOf(err)
	span.SetAttributes(attribute.String("economy.error_code", string(code)))
	switch code.Kind() {
	case apperrors.KindValidation, apperrors.KindNotFound:
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
