package internal

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
)

// ExecutionService registra resultados de replicación en el ledger
// idempotente.
//
// La idempotency key es la única autoridad de unicidad: reintentos, replays y
// submissions concurrentes con la misma clave colapsan en un solo record, y
// todos los callers observan ese resultado. El status es write-once; un
// record nunca se muta.
type ExecutionService struct {
	executions domain.ExecutionRepository

	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics
}

// NewExecutionService crea el servicio de registro de ejecuciones.
func NewExecutionService(
	executions domain.ExecutionRepository,
	tel *telemetry.Client,
	metrics *metricbundle.MirrorMetrics,
) *ExecutionService {
	return &ExecutionService{
		executions: executions,
		telemetry:  tel,
		metrics:    metrics,
	}
}

// Record persiste el resultado de una replicación.
//
// Retorna el record almacenado (el nuevo, o el preexistente si la clave ya
// estaba registrada) y si esta submission fue la que insertó.
func (s *ExecutionService) Record(ctx context.Context, submitter *domain.Account, rec *domain.ExecutionRecord) (*domain.ExecutionRecord, bool, error) {
	if submitter == nil {
		return nil, false, domain.NewError(domain.ErrUnauthorized, "missing authenticated account")
	}

	var span trace.Span
	if s.telemetry != nil {
		ctx, span = s.telemetry.StartSpan(ctx, "core.execution.record")
		span.SetAttributes(semconv.AccountAttributes(submitter.AccountID, string(submitter.Role))...)
		defer span.End()
	}

	if err := domain.ValidateExecutionRecord(rec); err != nil {
		return nil, false, err
	}
	// Una terminal solo registra ejecuciones de su propia cuenta.
	if rec.ReceiverAccountID != submitter.AccountID {
		return nil, false, domain.NewError(domain.ErrInvalidRequest, "receiver_account_id does not match credential")
	}

	stored, inserted, err := s.executions.InsertIdempotent(ctx, rec)
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrUnknown, "failed to persist execution record", err)
	}

	if span != nil {
		span.SetAttributes(semconv.ExecutionAttributes(stored.IdempotencyKey, stored.ReceiverAccountID, string(stored.Status))...)
	}

	if inserted {
		if s.metrics != nil {
			if s.metrics.ExecutionRecorded != nil {
				s.metrics.ExecutionRecorded.Add(ctx, 1, metric.WithAttributes(
					semconv.Mirror.Status.String(string(stored.Status)),
				))
			}
			if s.metrics.SlippagePips != nil && stored.SlippagePips != nil {
				s.metrics.SlippagePips.Record(ctx, *stored.SlippagePips)
			}
		}
		if s.telemetry != nil {
			s.telemetry.Info(ctx, "execution recorded",
				semconv.Logs.Feature.String("ExecutionLedger"),
				semconv.Logs.Event.String("execution_recorded"),
				semconv.Mirror.IdempotencyKey.String(stored.IdempotencyKey),
				semconv.Mirror.AccountID.String(stored.ReceiverAccountID),
				semconv.Mirror.Status.String(string(stored.Status)),
			)
		}
		return stored, true, nil
	}

	if s.metrics != nil && s.metrics.ExecutionDeduped != nil {
		s.metrics.ExecutionDeduped.Add(ctx, 1)
	}
	if s.telemetry != nil {
		s.telemetry.Debug(ctx, "execution submission deduped",
			semconv.Logs.Feature.String("ExecutionLedger"),
			semconv.Logs.Event.String("execution_deduped"),
			semconv.Mirror.IdempotencyKey.String(stored.IdempotencyKey),
			semconv.Mirror.Status.String(string(stored.Status)),
		)
	}
	return stored, false, nil
}

// GetByKey retorna un record por su idempotency key (nil si no existe).
func (s *ExecutionService) GetByKey(ctx context.Context, key string) (*domain.ExecutionRecord, error) {
	if key == "" {
		return nil, domain.NewError(domain.ErrMissingRequiredField, "idempotency_key cannot be empty")
	}
	rec, err := s.executions.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load execution record", err)
	}
	return rec, nil
}
