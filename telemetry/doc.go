// Package telemetry unifica la observabilidad de Mirror: logs estructurados
// JSON (slog), métricas y trazas OpenTelemetry exportadas por OTLP gRPC.
//
// Uso típico:
//
//	client, err := telemetry.New(ctx, "mirror-core", "production")
//	if err != nil {
//	    return err
//	}
//	defer client.Shutdown(ctx)
//
//	ctx, span := client.StartSpan(ctx, "core.event.ingest")
//	defer span.End()
//
//	client.Info(ctx, "trade event ingested")
//	client.RecordCounter(ctx, "mirror.events.ingested", 1)
//
// Los atributos acumulados en el contexto con AppendCommonAttrs,
// AppendEventAttrs y AppendMetricAttrs se adjuntan automáticamente a cada
// log, métrica y span emitido con ese contexto; los logs además llevan
// trace_id/span_id del span activo.
package telemetry
