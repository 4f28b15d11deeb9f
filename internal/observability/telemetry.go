package observability

import (
	"context"
	"time"

	"github.com/annel0/chunkloader/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracerName имя трассировщика операций с наборами чанков
const TracerName = "github.com/annel0/chunkloader"

// InitTelemetry настраивает OTLP экспортер, глобальный TracerProvider и
// W3C propagation (traceparent из входящих запросов подхватывает otelgin).
// Адрес коллектора берётся из стандартных OTEL_EXPORTER_OTLP_* переменных
// (по умолчанию localhost:4318). Возвращает функцию shutdown.
func InitTelemetry(ctx context.Context, serviceName, nodeID string) (func(context.Context) error, error) {
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceInstanceID(nodeID),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logging.Info("📡 OpenTelemetry инициализирован (service=%s, node=%s)", serviceName, nodeID)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

// Tracer возвращает трассировщик из глобального провайдера
// (no-op, если InitTelemetry не вызывался)
func Tracer() oteltrace.Tracer {
	return otel.Tracer(TracerName)
}

// SpanError помечает span ошибкой; nil err ничего не делает
func SpanError(span oteltrace.Span, err error, description string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}
