// Package metricbundle agrupa los instrumentos de métricas de Mirror en
// bundles por dominio, construidos una sola vez al inicio del proceso.
//
// Convención de nombres de métricas:
//
// Todas las métricas siguen el formato mirror.<entity>.<metric_type>, por ejemplo:
//   - mirror.event.ingested
//   - mirror.execution.recorded
//   - mirror.reconcile.duration
//
// Uso básico:
//
//	client, _ := telemetry.New(ctx, "mirror-core", "production")
//	bundle, err := metricbundle.NewMirrorMetrics(client.Meter())
//	if err != nil {
//	    return err
//	}
//
//	bundle.ExecutionRecorded.Add(ctx, 1,
//	    metric.WithAttributes(semconv.Mirror.Status.String("success")),
//	)
package metricbundle
