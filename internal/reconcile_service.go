package internal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
)

// ReconcileService deriva el estado financiero de una cuenta desde su
// historial de trades.
//
// El balance inicial nunca se pide al usuario: se deriva del snapshot de
// equity menos la suma de PnL de los trades cerrados. Con ese baseline se
// replaya el historial en orden de entrada asignando balance-at-entry, R%
// sobre ese balance y sesión a cada trade.
//
// Propiedades:
//   - tolerante a fallas parciales: un trade que no puede actualizarse se
//     cuenta como error y el replay continúa
//   - idempotente: re-ejecutar sin cambios en el historial produce los
//     mismos derivados
//
// La aritmética usa decimal para que el orden de suma no introduzca drift de
// punto flotante en balances largos.
type ReconcileService struct {
	accounts domain.AccountRepository
	ledger   domain.LedgerRepository

	sessionTable domain.SessionTable

	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics

	now func() time.Time
}

// NewReconcileService crea el motor de reconciliación.
func NewReconcileService(
	accounts domain.AccountRepository,
	ledger domain.LedgerRepository,
	sessionTable domain.SessionTable,
	tel *telemetry.Client,
	metrics *metricbundle.MirrorMetrics,
) *ReconcileService {
	return &ReconcileService{
		accounts:     accounts,
		ledger:       ledger,
		sessionTable: sessionTable,
		telemetry:    tel,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Run reconcilia una cuenta y retorna el reporte de la corrida.
func (s *ReconcileService) Run(ctx context.Context, accountID string) (*domain.ReconcileResult, error) {
	if err := domain.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	var span trace.Span
	if s.telemetry != nil {
		ctx, span = s.telemetry.StartSpan(ctx, "core.reconcile.run")
		span.SetAttributes(semconv.Mirror.AccountID.String(accountID))
		defer span.End()
	}
	start := s.now()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load account", err)
	}
	if account == nil {
		return nil, domain.NewError(domain.ErrNotFound, "account not found")
	}
	if account.CurrentEquity == nil {
		return nil, domain.NewError(domain.ErrInvalidRequest, "account has no equity snapshot to reconcile against")
	}

	closed, err := s.ledger.ListClosedByAccount(ctx, accountID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load closed trades", err)
	}
	open, err := s.ledger.ListOpenByAccount(ctx, accountID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load open trades", err)
	}

	// startingBalance = equity − Σ net_pnl de trades cerrados.
	totalPnL := decimal.Zero
	for _, t := range closed {
		totalPnL = totalPnL.Add(decimal.NewFromFloat(*t.NetPnL))
	}
	startBalance := decimal.NewFromFloat(*account.CurrentEquity).Sub(totalPnL)

	result := &domain.ReconcileResult{
		DerivedStartBalance: startBalance.Round(2).InexactFloat64(),
	}
	totalF, _ := totalPnL.Round(2).Float64()
	result.TotalPnL = totalF

	// Replay cronológico: cada trade cerrado ve el balance acumulado hasta
	// su entrada y lo muta con su PnL al salir.
	balance := startBalance
	for _, t := range closed {
		if s.reconcileTrade(ctx, account, t, balance) {
			result.TradesUpdated++
		} else {
			result.Errors++
		}
		balance = balance.Add(decimal.NewFromFloat(*t.NetPnL))
	}

	// Trades abiertos: ven el balance tras todos los cerrados; sin R% hasta
	// conocer su resultado.
	for _, t := range open {
		if s.reconcileTrade(ctx, account, t, balance) {
			result.TradesUpdated++
		} else {
			result.Errors++
		}
	}

	startF, _ := startBalance.Round(2).Float64()
	if err := s.accounts.UpdateStartBalance(ctx, accountID, startF); err != nil {
		// El baseline es un derivado más: su falla cuenta, no aborta.
		result.Errors++
		if s.telemetry != nil {
			s.telemetry.Error(ctx, "failed to persist derived start balance", err,
				semconv.Mirror.AccountID.String(accountID),
			)
		}
	}

	if s.metrics != nil {
		if s.metrics.ReconcileRuns != nil {
			s.metrics.ReconcileRuns.Add(ctx, 1)
		}
		if s.metrics.ReconcileTradeErrors != nil && result.Errors > 0 {
			s.metrics.ReconcileTradeErrors.Add(ctx, int64(result.Errors), metric.WithAttributes(
				semconv.Mirror.AccountID.String(accountID),
			))
		}
		if s.metrics.ReconcileDuration != nil {
			s.metrics.ReconcileDuration.Record(ctx, s.now().Sub(start).Seconds())
		}
	}
	if s.telemetry != nil {
		s.telemetry.Info(ctx, "reconciliation completed",
			semconv.Logs.Feature.String("Reconciliation"),
			semconv.Logs.Event.String("reconcile_run"),
			semconv.Mirror.AccountID.String(accountID),
			attribute.Float64("derived_start_balance", result.DerivedStartBalance),
			attribute.Int("trades_updated", result.TradesUpdated),
			attribute.Int("errors", result.Errors),
		)
	}

	return result, nil
}

// reconcileTrade calcula y persiste los derivados de un trade. Retorna true
// si el update aplicó.
func (s *ReconcileService) reconcileTrade(ctx context.Context, account *domain.Account, t *domain.LedgerTrade, balanceAtEntry decimal.Decimal) bool {
	entryBalance, _ := balanceAtEntry.Round(2).Float64()
	t.BalanceAtEntry = &entryBalance

	// R% requiere balance de entrada positivo: con baseline derivado ≤ 0 el
	// cociente pierde el signo y el derivado queda null.
	t.RMultiplePercent = nil
	if t.Closed() && balanceAtEntry.IsPositive() {
		r := decimal.NewFromFloat(*t.NetPnL).
			Div(balanceAtEntry).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		rf, _ := r.Float64()
		t.RMultiplePercent = &rf
	}

	utcInstant := domain.BrokerTimeToUTC(t.EntryTime, account.BrokerUTCOffsetHours)
	t.Session = string(domain.SessionFor(utcInstant, s.sessionTable))

	if err := s.ledger.UpdateDerived(ctx, t); err != nil {
		if s.telemetry != nil {
			s.telemetry.Error(ctx, "failed to update trade derived fields", err,
				semconv.Mirror.AccountID.String(account.AccountID),
				attribute.String("trade_id", t.TradeID),
			)
		}
		return false
	}
	return true
}
