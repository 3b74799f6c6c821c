package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/xKoRx/mirror/domain"
)

// ===========================================================================
// postgresSettingsRepo
// ===========================================================================

type postgresSettingsRepo struct {
	db *sql.DB
}

func (r *postgresSettingsRepo) GetByAccount(ctx context.Context, accountID string) (*domain.ReceiverSettings, error) {
	query := `
		SELECT account_id, risk_mode, risk_value, max_slippage_pips,
		       max_daily_loss_r, allowed_sessions, manual_confirm,
		       prop_firm_safe, poll_interval_ms
		FROM mirror.receiver_settings
		WHERE account_id = $1
	`

	var s domain.ReceiverSettings
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&s.AccountID,
		&s.RiskMode,
		&s.RiskValue,
		&s.MaxSlippagePips,
		&s.MaxDailyLossR,
		pq.Array(&s.AllowedSessions),
		&s.ManualConfirm,
		&s.PropFirmSafe,
		&s.PollIntervalMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for %s: %w", accountID, err)
	}
	return &s, nil
}

// ===========================================================================
// postgresMappingRepo
// ===========================================================================

type postgresMappingRepo struct {
	db *sql.DB
}

func (r *postgresMappingRepo) ListEnabledByReceiver(ctx context.Context, receiverAccountID string) ([]*domain.SymbolMapping, error) {
	query := `
		SELECT receiver_account_id, master_symbol, receiver_symbol, enabled
		FROM mirror.symbol_mappings
		WHERE receiver_account_id = $1 AND enabled = true
		ORDER BY master_symbol
	`

	rows, err := r.db.QueryContext(ctx, query, receiverAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for %s: %w", receiverAccountID, err)
	}
	defer rows.Close()

	var mappings []*domain.SymbolMapping
	for rows.Next() {
		var m domain.SymbolMapping
		if err := rows.Scan(&m.ReceiverAccountID, &m.MasterSymbol, &m.ReceiverSymbol, &m.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		mappings = append(mappings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping rows: %w", err)
	}
	return mappings, nil
}

// ===========================================================================
// postgresConfigVersionRepo
// ===========================================================================

type postgresConfigVersionRepo struct {
	db *sql.DB
}

func (r *postgresConfigVersionRepo) Latest(ctx context.Context, userID string) (int64, error) {
	query := `SELECT version FROM mirror.config_versions WHERE user_id = $1`

	var version int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get config version for %s: %w", userID, err)
	}
	return version, nil
}

func (r *postgresConfigVersionRepo) Bump(ctx context.Context, userID string) (int64, error) {
	query := `
		INSERT INTO mirror.config_versions (user_id, version, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (user_id) DO UPDATE
		SET version = mirror.config_versions.version + 1,
		    updated_at = now()
		RETURNING version
	`

	var version int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to bump config version for %s: %w", userID, err)
	}
	return version, nil
}
