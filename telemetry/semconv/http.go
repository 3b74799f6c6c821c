package semconv

import "go.opentelemetry.io/otel/attribute"

// HTTP agrupa los atributos de instrumentación de la superficie HTTP del
// core. Los nombres siguen el prefijo "http." de las convenciones OTel.
var HTTP = httpAttributes{
	Method:     attribute.Key("http.method"),
	Path:       attribute.Key("http.path"),
	Handler:    attribute.Key("http.handler"),
	StatusCode: attribute.Key("http.status_code"),
	DurationMs: attribute.Key("http.duration_ms"),
	UserAgent:  attribute.Key("http.user_agent"),
	ClientIP:   attribute.Key("http.client_ip"),
}

type httpAttributes struct {
	Method     attribute.Key // método de la petición (GET, POST, ...)
	Path       attribute.Key // ruta sin query params
	Handler    attribute.Key // nombre del handler que atendió la petición
	StatusCode attribute.Key // status code de la respuesta
	DurationMs attribute.Key // duración total en milisegundos
	UserAgent  attribute.Key // user agent reportado por la terminal
	ClientIP   attribute.Key // dirección remota de la petición
}
