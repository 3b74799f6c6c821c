package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// attrBag acumula atributos en el contexto, separados por destino. Se guarda
// bajo una sola clave; cada Append produce una copia nueva (copy-on-write),
// por lo que contextos hermanos no se contaminan entre sí.
type attrBag struct {
	common []attribute.KeyValue // logs + métricas + trazas
	event  []attribute.KeyValue // solo logs y spans
	metric []attribute.KeyValue // solo métricas
}

type attrBagKey struct{}

func bagFrom(ctx context.Context) attrBag {
	if bag, ok := ctx.Value(attrBagKey{}).(attrBag); ok {
		return bag
	}
	return attrBag{}
}

func cloneAppend(existing, attrs []attribute.KeyValue) []attribute.KeyValue {
	merged := make([]attribute.KeyValue, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	return append(merged, attrs...)
}

// AppendCommonAttrs añade atributos que aplican a logs, métricas y trazas.
func AppendCommonAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	bag := bagFrom(ctx)
	bag.common = cloneAppend(bag.common, attrs)
	return context.WithValue(ctx, attrBagKey{}, bag)
}

// AppendEventAttrs añade atributos que aplican solo a logs y spans.
func AppendEventAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	bag := bagFrom(ctx)
	bag.event = cloneAppend(bag.event, attrs)
	return context.WithValue(ctx, attrBagKey{}, bag)
}

// AppendMetricAttrs añade atributos que aplican solo a métricas.
func AppendMetricAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	bag := bagFrom(ctx)
	bag.metric = cloneAppend(bag.metric, attrs)
	return context.WithValue(ctx, attrBagKey{}, bag)
}

// GetCommonAttrs extrae los atributos comunes acumulados en el contexto.
func GetCommonAttrs(ctx context.Context) []attribute.KeyValue {
	return bagFrom(ctx).common
}

// GetEventAttrs extrae los atributos de eventos acumulados en el contexto.
func GetEventAttrs(ctx context.Context) []attribute.KeyValue {
	return bagFrom(ctx).event
}

// GetMetricAttrs extrae los atributos de métricas acumulados en el contexto.
func GetMetricAttrs(ctx context.Context) []attribute.KeyValue {
	return bagFrom(ctx).metric
}
