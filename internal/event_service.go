package internal

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
	"github.com/xKoRx/mirror/utils"
)

// EventService ingiere eventos de trade emitidos por terminales master.
//
// Los eventos son inmutables: la ingesta valida, clasifica la sesión del
// instante del evento y la persiste junto con la fila. Reenvíos con la misma
// idempotency key son no-ops a nivel storage y responden con la identidad de
// la fila almacenada.
type EventService struct {
	events domain.EventRepository

	sessionTable domain.SessionTable

	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics
}

// NewEventService crea el servicio de ingesta de eventos.
func NewEventService(
	events domain.EventRepository,
	sessionTable domain.SessionTable,
	tel *telemetry.Client,
	metrics *metricbundle.MirrorMetrics,
) *EventService {
	return &EventService{
		events:       events,
		sessionTable: sessionTable,
		telemetry:    tel,
		metrics:      metrics,
	}
}

// Ingest valida y persiste un evento emitido por la cuenta autenticada.
//
// Solo cuentas master con copiado habilitado emiten eventos. El account_id
// del evento debe coincidir con la credencial: una terminal no puede publicar
// en nombre de otra cuenta.
func (s *EventService) Ingest(ctx context.Context, emitter *domain.Account, event *domain.TradeEvent) error {
	if emitter == nil {
		return domain.NewError(domain.ErrUnauthorized, "missing authenticated account")
	}

	var span trace.Span
	if s.telemetry != nil {
		ctx, span = s.telemetry.StartSpan(ctx, "core.event.ingest")
		span.SetAttributes(semconv.AccountAttributes(emitter.AccountID, string(emitter.Role))...)
		defer span.End()
	}

	if emitter.Role != domain.CopierRoleMaster || !emitter.CopyEnabled || !emitter.Active {
		return s.reject(ctx, event, domain.NewError(domain.ErrUnauthorized, "only active master accounts can publish trade events"))
	}
	if event != nil && event.AccountID != emitter.AccountID {
		return s.reject(ctx, event, domain.NewError(domain.ErrInvalidRequest, "event account_id does not match credential"))
	}
	if err := domain.ValidateTradeEvent(event); err != nil {
		return s.reject(ctx, event, err)
	}

	if event.EventID == "" {
		event.EventID = utils.GenerateUUIDv7()
	}

	// La sesión se clasifica en UTC, derivado del reloj naive del broker, y
	// queda fija en la fila.
	utcInstant := domain.BrokerTimeToUTC(event.ServerTime, emitter.BrokerUTCOffsetHours)
	event.Session = string(domain.SessionFor(utcInstant, s.sessionTable))

	inserted, err := s.events.Insert(ctx, event)
	if err != nil {
		return domain.WrapError(domain.ErrUnknown, "failed to persist trade event", err)
	}

	if !inserted {
		// Reenvío: la fila original manda. El emisor recibe la identidad
		// almacenada, no una nueva por entrega.
		stored, err := s.events.GetByIdempotencyKey(ctx, event.IdempotencyKey)
		if err != nil {
			return domain.WrapError(domain.ErrUnknown, "failed to load stored trade event", err)
		}
		if stored != nil {
			event.EventID = stored.EventID
			event.Session = stored.Session
		}
		if s.telemetry != nil {
			s.telemetry.Debug(ctx, "trade event replay collapsed onto stored row",
				semconv.Logs.Feature.String("EventIngestion"),
				semconv.Logs.Event.String("event_replayed"),
				semconv.Mirror.EventID.String(event.EventID),
				semconv.Mirror.IdempotencyKey.String(event.IdempotencyKey),
			)
		}
		return nil
	}

	if span != nil {
		span.SetAttributes(semconv.EventAttributes(event.EventID, event.Symbol, string(event.Side))...)
	}

	if s.metrics != nil && s.metrics.EventIngested != nil {
		s.metrics.EventIngested.Add(ctx, 1, metric.WithAttributes(
			semconv.Mirror.Symbol.String(event.Symbol),
			semconv.Mirror.Session.String(event.Session),
		))
	}
	if s.telemetry != nil {
		s.telemetry.Info(ctx, "trade event ingested",
			semconv.Logs.Feature.String("EventIngestion"),
			semconv.Logs.Event.String("event_ingested"),
			semconv.Mirror.EventID.String(event.EventID),
			semconv.Mirror.IdempotencyKey.String(event.IdempotencyKey),
			semconv.Mirror.Symbol.String(event.Symbol),
			semconv.Mirror.Side.String(string(event.Side)),
			semconv.Mirror.Session.String(event.Session),
		)
	}

	return nil
}

func (s *EventService) reject(ctx context.Context, event *domain.TradeEvent, err error) error {
	if s.metrics != nil && s.metrics.EventRejected != nil {
		s.metrics.EventRejected.Add(ctx, 1, metric.WithAttributes(
			semconv.Mirror.ErrorCode.String(string(domain.CodeOf(err))),
		))
	}
	if s.telemetry != nil {
		s.telemetry.Warn(ctx, "trade event rejected",
			semconv.Logs.Feature.String("EventIngestion"),
			semconv.Logs.Event.String("event_rejected"),
			semconv.Mirror.ErrorCode.String(string(domain.CodeOf(err))),
		)
	}
	return err
}
