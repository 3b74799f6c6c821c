package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xKoRx/mirror/domain"
)

// ===========================================================================
// postgresExecutionRepo
// ===========================================================================

type postgresExecutionRepo struct {
	db *sql.DB
}

const executionColumns = `
	idempotency_key, master_position_id, receiver_position_id,
	receiver_account_id, requested_price, executed_price, slippage_pips,
	status, error_message, created_at
`

func (r *postgresExecutionRepo) scanExecution(row interface{ Scan(...any) error }) (*domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var executedPrice, slippagePips sql.NullFloat64
	var errorMessage sql.NullString

	err := row.Scan(
		&rec.IdempotencyKey,
		&rec.MasterPositionID,
		&rec.ReceiverPositionID,
		&rec.ReceiverAccountID,
		&rec.RequestedPrice,
		&executedPrice,
		&slippagePips,
		&rec.Status,
		&errorMessage,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ExecutedPrice = nullableFloat(executedPrice)
	rec.SlippagePips = nullableFloat(slippagePips)
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}
	return &rec, nil
}

// InsertIdempotent inserta el record salvo que la clave ya exista. La unicidad
// la garantiza el UNIQUE de idempotency_key: dos submissions concurrentes
// producen exactamente una fila, y ambas observan ese resultado.
func (r *postgresExecutionRepo) InsertIdempotent(ctx context.Context, rec *domain.ExecutionRecord) (*domain.ExecutionRecord, bool, error) {
	insert := `
		INSERT INTO mirror.copier_executions (
			idempotency_key, master_position_id, receiver_position_id,
			receiver_account_id, requested_price, executed_price, slippage_pips,
			status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, insert,
		rec.IdempotencyKey,
		rec.MasterPositionID,
		rec.ReceiverPositionID,
		rec.ReceiverAccountID,
		rec.RequestedPrice,
		rec.ExecutedPrice,
		rec.SlippagePips,
		string(rec.Status),
		nullIfEmpty(rec.ErrorMessage),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert execution record: %w", err)
	}

	inserted := false
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		inserted = true
	}

	stored, err := r.GetByIdempotencyKey(ctx, rec.IdempotencyKey)
	if err != nil {
		return nil, inserted, err
	}
	if stored == nil {
		// Insert no-op y fetch vacío: la fila fue borrada entre ambas
		// operaciones, algo que el esquema no permite en operación normal.
		return nil, inserted, fmt.Errorf("execution record %s not found after insert", rec.IdempotencyKey)
	}
	return stored, inserted, nil
}

func (r *postgresExecutionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM mirror.copier_executions WHERE idempotency_key = $1`

	rec, err := r.scanExecution(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}
	return rec, nil
}

func (r *postgresExecutionRepo) ListByReceiver(ctx context.Context, receiverAccountID string, limit, offset int) ([]*domain.ExecutionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + executionColumns + `
		FROM mirror.copier_executions
		WHERE receiver_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, receiverAccountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for %s: %w", receiverAccountID, err)
	}
	defer rows.Close()

	var records []*domain.ExecutionRecord
	for rows.Next() {
		rec, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution rows: %w", err)
	}
	return records, nil
}
