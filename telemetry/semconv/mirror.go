package semconv

import "go.opentelemetry.io/otel/attribute"

// Mirror contiene atributos semánticos específicos del copiador de operaciones.
//
// # Identificadores
//
//   - mirror.event_id: UUID del evento de trade (UUIDv7)
//   - mirror.idempotency_key: Clave de idempotencia del evento/ejecución
//   - mirror.account_id: ID de la cuenta de trading
//   - mirror.master_account_id: ID de la cuenta master asociada
//   - mirror.position_id: ID de posición reportado por la terminal
//
// # Trading
//
//   - mirror.symbol: Símbolo del instrumento (XAUUSD, etc.)
//   - mirror.side: Lado de la orden (BUY/SELL)
//   - mirror.lot_size: Tamaño en lotes
//   - mirror.price: Precio de la orden
//   - mirror.session: Sesión clasificada (tokyo/london/...)
//   - mirror.slippage_pips: Slippage observado en pips
//
// # Riesgo y configuración
//
//   - mirror.risk_mode: Modo de sizing del receiver
//   - mirror.risk_value: Valor asociado al modo
//   - mirror.config_version: Versión del snapshot de configuración
//   - mirror.config_hash: Hash de contenido del snapshot
//
// # Estado
//
//   - mirror.status: Estado de ejecución (success/failed/skipped)
//   - mirror.error_code: Código de error si aplica
//   - mirror.role: Rol de la cuenta (master/receiver/independent)
//   - mirror.decision: Decisión del motor (proceed/reject)
//   - mirror.reason: Razón asociada a la decisión
//
// # Uso
//
//	import "github.com/xKoRx/mirror/telemetry/semconv"
//
//	client.Info(ctx, "Execution recorded",
//	    semconv.Mirror.IdempotencyKey.String(key),
//	    semconv.Mirror.Symbol.String("XAUUSD"),
//	    semconv.Mirror.Status.String("success"),
//	)
var Mirror = mirrorAttributes{
	// Identificadores
	EventID:         attribute.Key("mirror.event_id"),
	IdempotencyKey:  attribute.Key("mirror.idempotency_key"),
	AccountID:       attribute.Key("mirror.account_id"),
	MasterAccountID: attribute.Key("mirror.master_account_id"),
	PositionID:      attribute.Key("mirror.position_id"),

	// Trading
	Symbol:       attribute.Key("mirror.symbol"),
	Side:         attribute.Key("mirror.side"),
	LotSize:      attribute.Key("mirror.lot_size"),
	Price:        attribute.Key("mirror.price"),
	Session:      attribute.Key("mirror.session"),
	SlippagePips: attribute.Key("mirror.slippage_pips"),

	// Riesgo y configuración
	RiskMode:      attribute.Key("mirror.risk_mode"),
	RiskValue:     attribute.Key("mirror.risk_value"),
	ConfigVersion: attribute.Key("mirror.config_version"),
	ConfigHash:    attribute.Key("mirror.config_hash"),

	// Estado
	Status:    attribute.Key("mirror.status"),
	ErrorCode: attribute.Key("mirror.error_code"),
	Role:      attribute.Key("mirror.role"),
	Decision:  attribute.Key("mirror.decision"),
	Reason:    attribute.Key("mirror.reason"),
}

type mirrorAttributes struct {
	// Identificadores
	EventID         attribute.Key // UUID del evento (UUIDv7)
	IdempotencyKey  attribute.Key // Clave de idempotencia
	AccountID       attribute.Key // ID de cuenta de trading
	MasterAccountID attribute.Key // ID de la cuenta master
	PositionID      attribute.Key // ID de posición de la terminal

	// Trading
	Symbol       attribute.Key // Símbolo del instrumento
	Side         attribute.Key // Lado de la orden (BUY/SELL)
	LotSize      attribute.Key // Tamaño en lotes
	Price        attribute.Key // Precio de la orden
	Session      attribute.Key // Sesión clasificada
	SlippagePips attribute.Key // Slippage en pips

	// Riesgo y configuración
	RiskMode      attribute.Key // Modo de sizing
	RiskValue     attribute.Key // Valor asociado al modo
	ConfigVersion attribute.Key // Versión del snapshot
	ConfigHash    attribute.Key // Hash de contenido del snapshot

	// Estado
	Status    attribute.Key // Estado (success/failed/skipped)
	ErrorCode attribute.Key // Código de error
	Role      attribute.Key // Rol de la cuenta
	Decision  attribute.Key // Decisión (proceed/reject)
	Reason    attribute.Key // Razón asociada a la decisión
}

// StatusValues valores válidos para mirror.status
var StatusValues = struct {
	Success string
	Failed  string
	Skipped string
}{
	Success: "success",
	Failed:  "failed",
	Skipped: "skipped",
}

// EventAttributes crea un conjunto de atributos para un evento de trade.
//
// Example:
//
//	attrs := semconv.EventAttributes("0190b2c4...", "XAUUSD", "BUY")
//	client.Info(ctx, "Trade event ingested", attrs...)
func EventAttributes(eventID, symbol, side string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mirror.EventID.String(eventID),
		Mirror.Symbol.String(symbol),
		Mirror.Side.String(side),
	}
}

// ExecutionAttributes crea atributos para una ejecución registrada.
//
// Example:
//
//	attrs := semconv.ExecutionAttributes(key, "acc-r1", "success")
//	client.Info(ctx, "Execution recorded", attrs...)
func ExecutionAttributes(idempotencyKey, receiverAccountID, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mirror.IdempotencyKey.String(idempotencyKey),
		Mirror.AccountID.String(receiverAccountID),
		Mirror.Status.String(status),
	}
}

// AccountAttributes crea atributos para una cuenta.
func AccountAttributes(accountID, role string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mirror.AccountID.String(accountID),
		Mirror.Role.String(role),
	}
}

// ErrorAttributes crea atributos para un error.
//
// Example:
//
//	attrs := semconv.ErrorAttributes("INVALID_INTENT_DATA", "failed")
//	client.Error(ctx, "Sizing failed", err, attrs...)
func ErrorAttributes(errorCode, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mirror.ErrorCode.String(errorCode),
		Mirror.Status.String(status),
	}
}
