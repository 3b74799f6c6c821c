package domain

import (
	"fmt"
)

// ValidateAccountID valida que un account_id es válido.
//
// Por ahora solo valida no-vacío.
func ValidateAccountID(accountID string) error {
	if accountID == "" {
		return NewError(ErrMissingRequiredField, "account_id cannot be empty")
	}
	return nil
}

// ValidateTradeEvent valida un evento recibido de una terminal.
//
// Validaciones:
//   - idempotency_key, account_id, position_id y symbol no vacíos
//   - tipo de evento conocido
//   - lot_size y price positivos
//   - eventos open deben traer intent data
func ValidateTradeEvent(ev *TradeEvent) error {
	if ev == nil {
		return NewError(ErrMissingRequiredField, "TradeEvent is nil")
	}
	if ev.IdempotencyKey == "" {
		return NewError(ErrMissingRequiredField, "idempotency_key cannot be empty")
	}
	if err := ValidateAccountID(ev.AccountID); err != nil {
		return fmt.Errorf("invalid account_id: %w", err)
	}
	if ev.PositionID == "" {
		return NewError(ErrMissingRequiredField, "position_id cannot be empty")
	}
	if ev.Symbol == "" {
		return NewError(ErrMissingRequiredField, "symbol cannot be empty")
	}

	switch ev.Type {
	case TradeEventOpen, TradeEventModify, TradeEventPartialClose, TradeEventClose:
	default:
		return NewValidationError("type", string(ev.Type), "unknown trade event type")
	}

	if ev.LotSize <= 0 {
		return NewValidationError("lot_size", ev.LotSize, "lot_size must be positive")
	}
	if ev.Price <= 0 {
		return NewValidationError("price", ev.Price, "price must be positive")
	}

	if ev.Type == TradeEventOpen && ev.Intent == nil {
		return NewError(ErrMissingRequiredField, "open events must carry intent data")
	}

	return nil
}

// ValidateExecutionRecord valida un resultado de replicación antes de
// registrarlo en el ledger de idempotencia.
func ValidateExecutionRecord(rec *ExecutionRecord) error {
	if rec == nil {
		return NewError(ErrMissingRequiredField, "ExecutionRecord is nil")
	}
	if rec.IdempotencyKey == "" {
		return NewError(ErrMissingRequiredField, "idempotency_key cannot be empty")
	}
	if err := ValidateAccountID(rec.ReceiverAccountID); err != nil {
		return fmt.Errorf("invalid receiver_account_id: %w", err)
	}
	if !rec.Status.Valid() {
		return NewValidationError("status", string(rec.Status), "unknown execution status")
	}
	if rec.Status == ExecutionStatusFailed && rec.ErrorMessage == "" {
		return NewError(ErrMissingRequiredField, "failed executions must carry error_message")
	}
	return nil
}

// ValidateTokenRequest valida los parámetros de emisión de un setup token.
//
// El chequeo de ownership del master (cuenta master, mismo usuario) requiere
// storage y vive en el servicio de tokens; acá solo la forma del request.
func ValidateTokenRequest(role CopierRole, masterAccountID *string) error {
	if !role.Valid() {
		return NewValidationError("role", string(role), "role must be master, receiver or independent")
	}
	if role == CopierRoleReceiver && masterAccountID != nil && *masterAccountID == "" {
		return NewValidationError("master_account_id", "", "master_account_id cannot be empty when present")
	}
	if masterAccountID != nil && role == CopierRoleMaster {
		return NewError(ErrInvalidRequest, "master tokens cannot reference another master account")
	}
	return nil
}
