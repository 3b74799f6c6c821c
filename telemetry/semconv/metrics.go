package semconv

import "go.opentelemetry.io/otel/attribute"

// Metrics agrupa las dimensiones estándar con que se etiquetan las métricas
// del core.
var Metrics = metricAttributes{
	Status:    attribute.Key("status"),
	Action:    attribute.Key("action"),
	Component: attribute.Key("component"),
	Instance:  attribute.Key("instance"),
}

type metricAttributes struct {
	Status    attribute.Key // estado de la operación medida (ok, error)
	Action    attribute.Key // acción realizada (método HTTP, verbo de dominio)
	Component attribute.Key // componente que origina la métrica (nombre de handler)
	Instance  attribute.Key // instancia del servicio (hostname)
}
