package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xKoRx/mirror/domain"
)

// ===========================================================================
// postgresAccountRepo
// ===========================================================================

type postgresAccountRepo struct {
	db *sql.DB
}

const accountColumns = `
	account_id, user_id, api_key, copier_role, master_account_id,
	broker_utc_offset_hours, copy_enabled, active,
	start_balance, current_equity, created_at, updated_at
`

func (r *postgresAccountRepo) scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var acc domain.Account
	var masterID sql.NullString
	var startBalance, currentEquity sql.NullFloat64

	err := row.Scan(
		&acc.AccountID,
		&acc.UserID,
		&acc.APIKey,
		&acc.Role,
		&masterID,
		&acc.BrokerUTCOffsetHours,
		&acc.CopyEnabled,
		&acc.Active,
		&startBalance,
		&currentEquity,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.MasterAccountID = nullableString(masterID)
	acc.StartBalance = nullableFloat(startBalance)
	acc.CurrentEquity = nullableFloat(currentEquity)
	return &acc, nil
}

func (r *postgresAccountRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM mirror.accounts WHERE api_key = $1`

	acc, err := r.scanAccount(r.db.QueryRowContext(ctx, query, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by api key: %w", err)
	}
	return acc, nil
}

func (r *postgresAccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM mirror.accounts WHERE account_id = $1`

	acc, err := r.scanAccount(r.db.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return acc, nil
}

func (r *postgresAccountRepo) GetActiveMasterForUser(ctx context.Context, userID string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM mirror.accounts
		WHERE user_id = $1
		  AND copier_role = 'master'
		  AND active = true
		  AND copy_enabled = true
		ORDER BY created_at
		LIMIT 1
	`

	acc, err := r.scanAccount(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active master for user %s: %w", userID, err)
	}
	return acc, nil
}

func (r *postgresAccountRepo) ListActiveReceivers(ctx context.Context, masterAccountID string) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM mirror.accounts
		WHERE master_account_id = $1
		  AND copier_role = 'receiver'
		  AND active = true
		  AND copy_enabled = true
		ORDER BY account_id
	`

	rows, err := r.db.QueryContext(ctx, query, masterAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receivers for master %s: %w", masterAccountID, err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receiver row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receiver rows: %w", err)
	}
	return accounts, nil
}

func (r *postgresAccountRepo) UpdateStartBalance(ctx context.Context, accountID string, startBalance float64) error {
	query := `
		UPDATE mirror.accounts
		SET start_balance = $2, updated_at = now()
		WHERE account_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, accountID, startBalance)
	if err != nil {
		return fmt.Errorf("failed to update start balance for %s: %w", accountID, err)
	}
	return nil
}

// ===========================================================================
// postgresTokenRepo
// ===========================================================================

type postgresTokenRepo struct {
	db *sql.DB
}

const tokenColumns = `
	token, user_id, role, master_account_id,
	sync_history_enabled, sync_history_from, used, expires_at, created_at
`

func (r *postgresTokenRepo) scanToken(row interface{ Scan(...any) error }) (*domain.SetupToken, error) {
	var tok domain.SetupToken
	var masterID sql.NullString
	var syncFrom sql.NullTime

	err := row.Scan(
		&tok.Token,
		&tok.UserID,
		&tok.Role,
		&masterID,
		&tok.SyncHistoryEnabled,
		&syncFrom,
		&tok.Used,
		&tok.ExpiresAt,
		&tok.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tok.MasterAccountID = nullableString(masterID)
	if syncFrom.Valid {
		t := syncFrom.Time
		tok.SyncHistoryFrom = &t
	}
	return &tok, nil
}

func (r *postgresTokenRepo) Create(ctx context.Context, token *domain.SetupToken) error {
	query := `
		INSERT INTO mirror.setup_tokens (
			token, user_id, role, master_account_id,
			sync_history_enabled, sync_history_from, used, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.Token,
		token.UserID,
		string(token.Role),
		token.MasterAccountID,
		token.SyncHistoryEnabled,
		token.SyncHistoryFrom,
		token.Used,
		token.ExpiresAt.UTC(),
		token.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create setup token: %w", err)
	}
	return nil
}

func (r *postgresTokenRepo) Get(ctx context.Context, token string) (*domain.SetupToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM mirror.setup_tokens WHERE token = $1`

	tok, err := r.scanToken(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setup token: %w", err)
	}
	return tok, nil
}

func (r *postgresTokenRepo) Consume(ctx context.Context, token string, now time.Time) (*domain.SetupToken, error) {
	// El WHERE hace atómica la transición: ante consumo concurrente solo un
	// caller ve la fila retornada.
	query := `
		UPDATE mirror.setup_tokens
		SET used = true
		WHERE token = $1
		  AND used = false
		  AND expires_at > $2
		RETURNING ` + tokenColumns

	tok, err := r.scanToken(r.db.QueryRowContext(ctx, query, token, now.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume setup token: %w", err)
	}
	return tok, nil
}
