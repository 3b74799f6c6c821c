package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/xKoRx/mirror/domain"
)

// ===========================================================================
// postgresEventRepo
// ===========================================================================

type postgresEventRepo struct {
	db *sql.DB
}

func (r *postgresEventRepo) Insert(ctx context.Context, event *domain.TradeEvent) (bool, error) {
	var intentJSON any
	if event.Intent != nil {
		payload, err := json.Marshal(event.Intent)
		if err != nil {
			return false, fmt.Errorf("failed to serialize intent data: %w", err)
		}
		intentJSON = payload
	}

	query := `
		INSERT INTO mirror.trade_events (
			event_id, idempotency_key, account_id, position_id, event_type,
			symbol, side, lot_size, price, stop_loss, take_profit,
			server_time, session, intent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now()
		)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.IdempotencyKey,
		event.AccountID,
		event.PositionID,
		string(event.Type),
		event.Symbol,
		string(event.Side),
		event.LotSize,
		event.Price,
		event.StopLoss,
		event.TakeProfit,
		event.ServerTime.UTC(),
		event.Session,
		intentJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert trade event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresEventRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.TradeEvent, error) {
	query := `
		SELECT event_id, idempotency_key, account_id, position_id, event_type,
		       symbol, side, lot_size, price, stop_loss, take_profit,
		       server_time, session, intent, created_at
		FROM mirror.trade_events
		WHERE idempotency_key = $1
	`

	var ev domain.TradeEvent
	var stopLoss, takeProfit sql.NullFloat64
	var intentJSON []byte

	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&ev.EventID,
		&ev.IdempotencyKey,
		&ev.AccountID,
		&ev.PositionID,
		&ev.Type,
		&ev.Symbol,
		&ev.Side,
		&ev.LotSize,
		&ev.Price,
		&stopLoss,
		&takeProfit,
		&ev.ServerTime,
		&ev.Session,
		&intentJSON,
		&ev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade event: %w", err)
	}

	ev.StopLoss = nullableFloat(stopLoss)
	ev.TakeProfit = nullableFloat(takeProfit)
	if len(intentJSON) > 0 {
		var intent domain.IntentData
		if err := json.Unmarshal(intentJSON, &intent); err != nil {
			return nil, fmt.Errorf("failed to deserialize intent data: %w", err)
		}
		ev.Intent = &intent
	}
	return &ev, nil
}

// ===========================================================================
// postgresLedgerRepo
// ===========================================================================

type postgresLedgerRepo struct {
	db *sql.DB
}

const ledgerColumns = `
	trade_id, account_id, entry_time, net_pnl,
	balance_at_entry, r_multiple_percent, session
`

func (r *postgresLedgerRepo) listByAccount(ctx context.Context, accountID string, closed bool) ([]*domain.LedgerTrade, error) {
	pnlFilter := "net_pnl IS NOT NULL"
	if !closed {
		pnlFilter = "net_pnl IS NULL"
	}

	// trade_id como segundo criterio para un orden total estable.
	query := `
		SELECT ` + ledgerColumns + `
		FROM mirror.trades
		WHERE account_id = $1 AND ` + pnlFilter + `
		ORDER BY entry_time, trade_id
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var trades []*domain.LedgerTrade
	for rows.Next() {
		var t domain.LedgerTrade
		var netPnL, balanceAtEntry, rPercent sql.NullFloat64
		var session sql.NullString

		if err := rows.Scan(
			&t.TradeID,
			&t.AccountID,
			&t.EntryTime,
			&netPnL,
			&balanceAtEntry,
			&rPercent,
			&session,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}

		t.NetPnL = nullableFloat(netPnL)
		t.BalanceAtEntry = nullableFloat(balanceAtEntry)
		t.RMultiplePercent = nullableFloat(rPercent)
		if session.Valid {
			t.Session = session.String
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trade rows: %w", err)
	}
	return trades, nil
}

func (r *postgresLedgerRepo) ListClosedByAccount(ctx context.Context, accountID string) ([]*domain.LedgerTrade, error) {
	return r.listByAccount(ctx, accountID, true)
}

func (r *postgresLedgerRepo) ListOpenByAccount(ctx context.Context, accountID string) ([]*domain.LedgerTrade, error) {
	return r.listByAccount(ctx, accountID, false)
}

func (r *postgresLedgerRepo) UpdateDerived(ctx context.Context, trade *domain.LedgerTrade) error {
	query := `
		UPDATE mirror.trades
		SET balance_at_entry = $2,
		    r_multiple_percent = $3,
		    session = $4
		WHERE trade_id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		trade.TradeID,
		trade.BalanceAtEntry,
		trade.RMultiplePercent,
		nullIfEmpty(trade.Session),
	)
	if err != nil {
		return fmt.Errorf("failed to update derived fields for trade %s: %w", trade.TradeID, err)
	}
	return nil
}
