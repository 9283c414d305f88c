package observability

import (
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	tnop "go.opentelemetry.io/otel/trace/noop"

	testlogr "github.com/alphabill-org/poolvalidator/internal/testutils/logger"
	"github.com/alphabill-org/poolvalidator/observability"
)

/*
NOPObservability creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs, traces or metrics.
*/
func NOPObservability() *observability.Observability {
	return observability.NewWithProviders(testlogr.NOP(), noop.NewMeterProvider(), tnop.NewTracerProvider())
}

/*
Default creates observability which logs into the test log, metrics and traces are no-op.
*/
func Default(t testing.TB) *observability.Observability {
	return observability.NewWithProviders(testlogr.New(t), noop.NewMeterProvider(), tnop.NewTracerProvider())
}
