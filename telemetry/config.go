package telemetry

import "go.opentelemetry.io/otel/attribute"

// Config parametriza el cliente de telemetría.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint es el collector OTLP (gRPC) al que se exportan trazas y
	// métricas.
	OTLPEndpoint string

	// CommonAttributes se adjuntan al resource, visibles en toda la señal.
	CommonAttributes []attribute.KeyValue

	EnableLogs    bool
	EnableMetrics bool
	EnableTraces  bool
}

// DefaultConfig retorna la configuración base: todo habilitado, collector
// local.
func DefaultConfig(serviceName, environment string) Config {
	return Config{
		ServiceName:      serviceName,
		ServiceVersion:   "0.0.1",
		Environment:      environment,
		OTLPEndpoint:     "127.0.0.1:4317",
		EnableLogs:       true,
		EnableMetrics:    true,
		EnableTraces:     true,
		CommonAttributes: []attribute.KeyValue{},
	}
}

// Option modifica la configuración antes de inicializar.
type Option func(*Config)

// WithVersion fija la versión del servicio reportada en el resource.
func WithVersion(version string) Option {
	return func(c *Config) { c.ServiceVersion = version }
}

// WithOTLPEndpoint fija el endpoint del collector.
func WithOTLPEndpoint(endpoint string) Option {
	return func(c *Config) { c.OTLPEndpoint = endpoint }
}

// WithCommonAttributes agrega atributos comunes al resource.
func WithCommonAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *Config) { c.CommonAttributes = append(c.CommonAttributes, attrs...) }
}

// WithLogsDisabled deshabilita la emisión de logs.
func WithLogsDisabled() Option {
	return func(c *Config) { c.EnableLogs = false }
}

// WithMetricsDisabled deshabilita la exportación de métricas.
func WithMetricsDisabled() Option {
	return func(c *Config) { c.EnableMetrics = false }
}

// WithTracesDisabled deshabilita la exportación de trazas.
func WithTracesDisabled() Option {
	return func(c *Config) { c.EnableTraces = false }
}
