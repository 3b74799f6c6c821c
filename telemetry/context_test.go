package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestAttrsEmptyOnFreshContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetCommonAttrs(ctx))
	assert.Empty(t, GetEventAttrs(ctx))
	assert.Empty(t, GetMetricAttrs(ctx))
}

func TestAppendAttrsAccumulatePerKind(t *testing.T) {
	ctx := context.Background()
	ctx = AppendCommonAttrs(ctx, attribute.String("component", "config"))
	ctx = AppendEventAttrs(ctx, attribute.String("event", "snapshot_served"))
	ctx = AppendMetricAttrs(ctx, attribute.String("status", "ok"))
	ctx = AppendCommonAttrs(ctx, attribute.String("instance", "core-1"))

	common := GetCommonAttrs(ctx)
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("component", "config"),
		attribute.String("instance", "core-1"),
	}, common)
	assert.Equal(t, []attribute.KeyValue{attribute.String("event", "snapshot_served")}, GetEventAttrs(ctx))
	assert.Equal(t, []attribute.KeyValue{attribute.String("status", "ok")}, GetMetricAttrs(ctx))
}

func TestAppendAttrsDoNotLeakBetweenSiblings(t *testing.T) {
	parent := AppendCommonAttrs(context.Background(), attribute.String("component", "server"))

	// Dos requests derivados del mismo contexto base: cada uno acumula lo
	// suyo sin contaminar al otro ni al padre.
	reqA := AppendCommonAttrs(parent, attribute.String("action", "GET"))
	reqB := AppendCommonAttrs(parent, attribute.String("action", "POST"))

	assert.Equal(t, []attribute.KeyValue{attribute.String("component", "server")}, GetCommonAttrs(parent))
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("component", "server"),
		attribute.String("action", "GET"),
	}, GetCommonAttrs(reqA))
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("component", "server"),
		attribute.String("action", "POST"),
	}, GetCommonAttrs(reqB))
}

func TestAppendAttrKindsAreIndependent(t *testing.T) {
	ctx := AppendMetricAttrs(context.Background(), attribute.String("status", "ok"))
	ctx = AppendEventAttrs(ctx, attribute.String("event", "trade_ingested"))

	assert.Empty(t, GetCommonAttrs(ctx))
	assert.Len(t, GetMetricAttrs(ctx), 1)
	assert.Len(t, GetEventAttrs(ctx), 1)
}
