package metricbundle

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MirrorMetrics bundle de métricas del copiador de operaciones.
//
// Cubre el funnel completo de copiado:
// - Eventos ingeridos del master
// - Ejecuciones registradas/dedupeadas en receivers
// - Distribución de configuración
// - Corridas de reconciliación
//
// # Métricas de Conteo
//
//   - mirror.event.ingested: Eventos de trade aceptados
//   - mirror.event.rejected: Eventos rechazados por validación
//   - mirror.execution.recorded: Ejecuciones nuevas registradas
//   - mirror.execution.deduped: Submissions colapsadas por idempotency key
//   - mirror.config.served: Snapshots de configuración servidos
//   - mirror.token.issued: Setup tokens emitidos
//   - mirror.token.consumed: Setup tokens consumidos
//   - mirror.reconcile.runs: Corridas de reconciliación
//   - mirror.reconcile.trade_errors: Trades con error durante reconciliación
//   - mirror.sizing.calculated: Cálculos de lote completados
//   - mirror.sizing.rejected: Cálculos rechazados (datos inválidos)
//
// # Métricas de Distribución
//
//   - mirror.reconcile.duration: Duración de una corrida (segundos)
//   - mirror.config.build_duration: Construcción del snapshot (segundos)
//   - mirror.execution.slippage_pips: Slippage observado por ejecución
type MirrorMetrics struct {
	// Counters
	EventIngested        metric.Int64Counter
	EventRejected        metric.Int64Counter
	ExecutionRecorded    metric.Int64Counter
	ExecutionDeduped     metric.Int64Counter
	ConfigServed         metric.Int64Counter
	TokenIssued          metric.Int64Counter
	TokenConsumed        metric.Int64Counter
	ReconcileRuns        metric.Int64Counter
	ReconcileTradeErrors metric.Int64Counter
	SizingCalculated     metric.Int64Counter
	SizingRejected       metric.Int64Counter

	// Histograms
	ReconcileDuration   metric.Float64Histogram
	ConfigBuildDuration metric.Float64Histogram
	SlippagePips        metric.Float64Histogram
}

// NewMirrorMetrics crea el bundle de métricas de Mirror.
// Con meter nil los instrumentos se crean sobre un meter no-op, para que los
// servicios no tengan que chequear si las métricas están habilitadas.
func NewMirrorMetrics(meter metric.Meter) (*MirrorMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("mirror")
	}

	m := &MirrorMetrics{}
	var err error

	if m.EventIngested, err = meter.Int64Counter(
		"mirror.event.ingested",
		metric.WithDescription("Eventos de trade aceptados e ingeridos"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}

	if m.EventRejected, err = meter.Int64Counter(
		"mirror.event.rejected",
		metric.WithDescription("Eventos de trade rechazados por validación"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}

	if m.ExecutionRecorded, err = meter.Int64Counter(
		"mirror.execution.recorded",
		metric.WithDescription("Ejecuciones nuevas registradas en el ledger"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return nil, err
	}

	if m.ExecutionDeduped, err = meter.Int64Counter(
		"mirror.execution.deduped",
		metric.WithDescription("Submissions colapsadas por idempotency key existente"),
		metric.WithUnit("{execution}"),
	); err != nil {
		return nil, err
	}

	if m.ConfigServed, err = meter.Int64Counter(
		"mirror.config.served",
		metric.WithDescription("Snapshots de configuración servidos a terminales"),
		metric.WithUnit("{snapshot}"),
	); err != nil {
		return nil, err
	}

	if m.TokenIssued, err = meter.Int64Counter(
		"mirror.token.issued",
		metric.WithDescription("Setup tokens emitidos"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}

	if m.TokenConsumed, err = meter.Int64Counter(
		"mirror.token.consumed",
		metric.WithDescription("Setup tokens consumidos en pairing"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}

	if m.ReconcileRuns, err = meter.Int64Counter(
		"mirror.reconcile.runs",
		metric.WithDescription("Corridas del motor de reconciliación"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}

	if m.ReconcileTradeErrors, err = meter.Int64Counter(
		"mirror.reconcile.trade_errors",
		metric.WithDescription("Trades con error durante una corrida de reconciliación"),
		metric.WithUnit("{trade}"),
	); err != nil {
		return nil, err
	}

	if m.SizingCalculated, err = meter.Int64Counter(
		"mirror.sizing.calculated",
		metric.WithDescription("Cálculos de lote del receiver completados"),
		metric.WithUnit("{calculation}"),
	); err != nil {
		return nil, err
	}

	if m.SizingRejected, err = meter.Int64Counter(
		"mirror.sizing.rejected",
		metric.WithDescription("Cálculos de lote rechazados por datos inválidos"),
		metric.WithUnit("{calculation}"),
	); err != nil {
		return nil, err
	}

	if m.ReconcileDuration, err = meter.Float64Histogram(
		"mirror.reconcile.duration",
		metric.WithDescription("Duración de una corrida de reconciliación"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.ConfigBuildDuration, err = meter.Float64Histogram(
		"mirror.config.build_duration",
		metric.WithDescription("Duración de construcción del snapshot de configuración"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.SlippagePips, err = meter.Float64Histogram(
		"mirror.execution.slippage_pips",
		metric.WithDescription("Slippage observado por ejecución, en pips"),
		metric.WithUnit("{pip}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}
