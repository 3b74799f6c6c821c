package semconv

import "go.opentelemetry.io/otel/attribute"

// Logs agrupa los atributos que todo mensaje de log del core lleva para
// correlación y filtrado (Loki/Grafana).
var Logs = logAttributes{
	Feature:     attribute.Key("feature"),
	Event:       attribute.Key("event"),
	ServiceName: attribute.Key("service.name"),
	Environment: attribute.Key("service.environment"),
}

type logAttributes struct {
	Feature     attribute.Key // componente funcional que emite (ConfigDistribution, Pairing, ...)
	Event       attribute.Key // acción puntual ocurrida (config_served, token_consumed, ...)
	ServiceName attribute.Key // nombre del servicio, convención OTel service.name
	Environment attribute.Key // entorno de ejecución
}
