package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/opensource-finance/finsight/internal/domain"
)

func TestInit(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		shutdown, err := Init(context.Background(), domain.TracingConfig{})
		if err != nil {
			t.Fatalf("Init failed: %v", err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
	})

	t.Run("EnabledProducesValidTraceIDs", func(t *testing.T) {
		prev := otel.GetTracerProvider()
		defer otel.SetTracerProvider(prev)

		shutdown, err := Init(context.Background(), domain.TracingConfig{Enabled: true, ServiceName: "finsight-test"})
		if err != nil {
			t.Fatalf("Init failed: %v", err)
		}
		defer shutdown(context.Background())

		_, span := otel.Tracer("telemetry-test").Start(context.Background(), "probe")
		defer span.End()
		if !span.SpanContext().TraceID().IsValid() {
			t.Error("expected a valid trace ID from the SDK provider")
		}
	})
}
