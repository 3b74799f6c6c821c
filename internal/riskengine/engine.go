// Package riskengine envuelve el cálculo puro de lote con telemetría y
// registro de decisiones.
package riskengine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
)

// Decision representa la acción tomada por el motor de sizing.
type Decision string

const (
	DecisionUnknown Decision = "unknown"
	DecisionProceed Decision = "proceed"
	DecisionReject  Decision = "reject"
)

// Result encapsula el resultado de un cálculo de lote para un receiver.
type Result struct {
	Lots     float64
	Decision Decision
	Reason   string
}

// Engine calcula el lote que un receiver debe ejecutar para un evento del
// master. La aritmética vive en domain (pura); acá se agregan spans, logs y
// métricas por decisión.
type Engine struct {
	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics
}

// New crea una instancia del motor de sizing.
func New(tel *telemetry.Client, metrics *metricbundle.MirrorMetrics) *Engine {
	return &Engine{
		telemetry: tel,
		metrics:   metrics,
	}
}

// ComputeLot calcula el lote del receiver para un evento, según sus settings.
//
// Nunca retorna error por datos de intención inválidos: eso es una decisión
// de rechazo (Result con DecisionReject y la razón), no una falla del motor.
func (e *Engine) ComputeLot(ctx context.Context, settings domain.ReceiverSettings, event *domain.TradeEvent, receiverBalance float64) (Result, error) {
	result := Result{Decision: DecisionUnknown}
	if event == nil {
		result.Decision = DecisionReject
		result.Reason = "nil event"
		return result, domain.NewError(domain.ErrMissingRequiredField, "trade event is nil")
	}

	var span trace.Span
	if e.telemetry != nil {
		ctx, span = e.telemetry.StartSpan(ctx, "core.sizing.compute")
		span.SetAttributes(
			semconv.Mirror.AccountID.String(settings.AccountID),
			semconv.Mirror.Symbol.String(event.Symbol),
			semconv.Mirror.RiskMode.String(string(settings.RiskMode)),
			semconv.Mirror.RiskValue.Float64(settings.RiskValue),
		)
		defer span.End()
	}

	lots, err := domain.ComputeReceiverLots(domain.SizingInput{
		Mode:            settings.RiskMode,
		Value:           settings.RiskValue,
		MasterLots:      event.LotSize,
		EntryPrice:      event.Price,
		ReceiverBalance: receiverBalance,
		Intent:          event.Intent,
	})
	if err != nil {
		code := domain.CodeOf(err)
		result.Decision = DecisionReject
		result.Reason = string(code)

		if e.telemetry != nil {
			e.telemetry.Warn(ctx, "sizing rejected",
				semconv.Mirror.AccountID.String(settings.AccountID),
				semconv.Mirror.Symbol.String(event.Symbol),
				semconv.Mirror.RiskMode.String(string(settings.RiskMode)),
				semconv.Mirror.Decision.String(string(DecisionReject)),
				semconv.Mirror.Reason.String(string(code)),
			)
		}
		if e.metrics != nil && e.metrics.SizingRejected != nil {
			e.metrics.SizingRejected.Add(ctx, 1, metric.WithAttributes(
				semconv.Mirror.RiskMode.String(string(settings.RiskMode)),
				semconv.Mirror.ErrorCode.String(string(code)),
			))
		}

		// InvalidIntentData es una decisión, no una falla del motor.
		if domain.IsCode(err, domain.ErrInvalidIntentData) {
			return result, nil
		}
		return result, err
	}

	result.Lots = lots
	result.Decision = DecisionProceed

	if e.telemetry != nil {
		e.telemetry.Debug(ctx, "sizing computed",
			semconv.Mirror.AccountID.String(settings.AccountID),
			semconv.Mirror.Symbol.String(event.Symbol),
			semconv.Mirror.RiskMode.String(string(settings.RiskMode)),
			attribute.Float64("lots", lots),
		)
	}
	if e.metrics != nil && e.metrics.SizingCalculated != nil {
		e.metrics.SizingCalculated.Add(ctx, 1, metric.WithAttributes(
			semconv.Mirror.RiskMode.String(string(settings.RiskMode)),
		))
	}

	return result, nil
}
