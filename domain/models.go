package domain

import (
	"time"
)

// CopierRole representa el rol de una cuenta dentro del copiado.
type CopierRole string

const (
	CopierRoleIndependent CopierRole = "independent" // No participa del copiado
	CopierRoleMaster      CopierRole = "master"      // Emite trades
	CopierRoleReceiver    CopierRole = "receiver"    // Replica trades de un master
)

// Valid indica si el rol es uno de los valores conocidos.
func (r CopierRole) Valid() bool {
	switch r {
	case CopierRoleIndependent, CopierRoleMaster, CopierRoleReceiver:
		return true
	}
	return false
}

// String implementa fmt.Stringer para CopierRole.
func (r CopierRole) String() string {
	return string(r)
}

// TradeEventType representa el tipo de evento emitido por una terminal.
type TradeEventType string

const (
	TradeEventOpen         TradeEventType = "open"
	TradeEventModify       TradeEventType = "modify"
	TradeEventPartialClose TradeEventType = "partial_close"
	TradeEventClose        TradeEventType = "close"
)

// TradeSide representa la dirección de un trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// ExecutionStatus representa el estado terminal de una replicación.
//
// Los tres estados son terminales: una vez escrito, el status de un
// ExecutionRecord nunca cambia.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// Valid indica si el status es uno de los valores conocidos.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusSkipped:
		return true
	}
	return false
}

// RiskMode identifica la estrategia de cálculo de lote del receiver.
type RiskMode string

const (
	// RiskModeBalanceMultiplier multiplica el lote del master por un factor.
	RiskModeBalanceMultiplier RiskMode = "balance_multiplier"
	// RiskModeFixedLot usa siempre el mismo lote, ignorando al master.
	RiskModeFixedLot RiskMode = "fixed_lot"
	// RiskModeRiskDollar arriesga un monto fijo en dólares por trade.
	RiskModeRiskDollar RiskMode = "risk_dollar"
	// RiskModeRiskPercent arriesga un porcentaje del balance del receiver.
	RiskModeRiskPercent RiskMode = "risk_percent"
	// RiskModeIntent recalcula el lote desde los datos de intención del
	// master (precio de invalidación + economía del instrumento). Es el
	// modo pensado para pares cross-broker con contract size distinto.
	RiskModeIntent RiskMode = "intent"
)

// Valid indica si el modo es uno de los valores conocidos.
func (m RiskMode) Valid() bool {
	switch m {
	case RiskModeBalanceMultiplier, RiskModeFixedLot, RiskModeRiskDollar,
		RiskModeRiskPercent, RiskModeIntent:
		return true
	}
	return false
}

// Account representa una cuenta de trading registrada.
// Corresponde a la tabla `mirror.accounts` en PostgreSQL.
type Account struct {
	AccountID string     `json:"account_id" db:"account_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	APIKey    string     `json:"-" db:"api_key"` // Credencial opaca por cuenta
	Role      CopierRole `json:"copier_role" db:"copier_role"`

	// MasterAccountID referencia al master cuando Role == receiver.
	// Invariante: debe apuntar a una cuenta master del mismo usuario.
	MasterAccountID *string `json:"master_account_id,omitempty" db:"master_account_id"`

	// BrokerUTCOffsetHours es el offset fijo del reloj del broker respecto
	// de UTC. Propiedad de la cuenta, sin ajuste DST.
	BrokerUTCOffsetHours float64 `json:"broker_utc_offset_hours" db:"broker_utc_offset_hours"`

	CopyEnabled bool `json:"copy_enabled" db:"copy_enabled"`
	Active      bool `json:"active" db:"active"` // Soft-delete: nunca se borra en duro

	// StartBalance es el baseline derivado por el motor de reconciliación.
	StartBalance  *float64 `json:"start_balance,omitempty" db:"start_balance"`
	CurrentEquity *float64 `json:"current_equity,omitempty" db:"current_equity"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SetupToken es una credencial de pairing de un solo uso (24h).
// Corresponde a la tabla `mirror.setup_tokens`.
type SetupToken struct {
	Token  string     `json:"token" db:"token"`
	UserID string     `json:"user_id" db:"user_id"`
	Role   CopierRole `json:"role" db:"role"`

	MasterAccountID    *string    `json:"master_account_id,omitempty" db:"master_account_id"`
	SyncHistoryEnabled bool       `json:"sync_history_enabled" db:"sync_history_enabled"`
	SyncHistoryFrom    *time.Time `json:"sync_history_from,omitempty" db:"sync_history_from"`

	Used      bool      `json:"used" db:"used"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired indica si el token ya venció respecto de now.
func (t *SetupToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IntentData contiene los hechos de riesgo de un trade abierto: lo necesario
// para recalcular (en vez de copiar) un tamaño de posición.
type IntentData struct {
	InvalidationPrice float64 `json:"invalidation_price"`
	TargetPrice       float64 `json:"target_price"`
	TickValue         float64 `json:"tick_value"`
	ContractSize      float64 `json:"contract_size"`
	PipValue          float64 `json:"pip_value"`
	RiskPips          float64 `json:"risk_pips"`

	// Snapshot de la cuenta master al momento del open.
	AccountBalance float64 `json:"account_balance"`
	AccountEquity  float64 `json:"account_equity"`
}

// TradeEvent es el hecho atómico emitido por una terminal.
// Inmutable una vez ingerido; eventos posteriores sobre la misma posición lo
// superseden lógicamente, nunca se muta in place.
// Corresponde a la tabla `mirror.trade_events`.
type TradeEvent struct {
	EventID        string         `json:"event_id" db:"event_id"`
	IdempotencyKey string         `json:"idempotency_key" db:"idempotency_key"`
	AccountID      string         `json:"account_id" db:"account_id"`
	PositionID     string         `json:"position_id" db:"position_id"`
	Type           TradeEventType `json:"type" db:"event_type"`

	Symbol  string    `json:"symbol" db:"symbol"`
	Side    TradeSide `json:"side" db:"side"`
	LotSize float64   `json:"lot_size" db:"lot_size"`
	Price   float64   `json:"price" db:"price"`

	StopLoss   *float64 `json:"stop_loss,omitempty" db:"stop_loss"`
	TakeProfit *float64 `json:"take_profit,omitempty" db:"take_profit"`

	// ServerTime es hora local naive del broker. Convertir a UTC con
	// BrokerTimeToUTC y el offset de la cuenta antes de clasificar sesión.
	ServerTime time.Time `json:"server_time" db:"server_time"`

	// Session se clasifica al ingerir y queda fija en la fila.
	Session string `json:"session,omitempty" db:"session"`

	// Intent solo viene en eventos open.
	Intent *IntentData `json:"intent,omitempty" db:"intent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExecutionRecord es una fila por intento de replicación de un evento master
// sobre un receiver, con unicidad global por idempotency key.
// Corresponde a la tabla `mirror.copier_executions`.
type ExecutionRecord struct {
	IdempotencyKey     string `json:"idempotency_key" db:"idempotency_key"`
	MasterPositionID   string `json:"master_position_id" db:"master_position_id"`
	ReceiverPositionID string `json:"receiver_position_id" db:"receiver_position_id"`
	ReceiverAccountID  string `json:"receiver_account_id" db:"receiver_account_id"`

	RequestedPrice float64  `json:"requested_price" db:"requested_price"`
	ExecutedPrice  *float64 `json:"executed_price,omitempty" db:"executed_price"`
	SlippagePips   *float64 `json:"slippage_pips,omitempty" db:"slippage_pips"`

	Status       ExecutionStatus `json:"status" db:"status"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReceiverSettings es la configuración por receiver. La muta el usuario
// dueño; el mecanismo de copiado solo la lee.
// Corresponde a la tabla `mirror.receiver_settings`.
type ReceiverSettings struct {
	AccountID string `json:"account_id" db:"account_id"`

	RiskMode  RiskMode `json:"risk_mode" db:"risk_mode"`
	RiskValue float64  `json:"risk_value" db:"risk_value"`

	MaxSlippagePips float64 `json:"max_slippage_pips" db:"max_slippage_pips"`
	MaxDailyLossR   float64 `json:"max_daily_loss_r" db:"max_daily_loss_r"`

	AllowedSessions []string `json:"allowed_sessions" db:"allowed_sessions"`

	ManualConfirm  bool `json:"manual_confirm" db:"manual_confirm"`
	PropFirmSafe   bool `json:"prop_firm_safe" db:"prop_firm_safe"`
	PollIntervalMs int  `json:"poll_interval_ms" db:"poll_interval_ms"`
}

// DefaultReceiverSettings retorna los defaults documentados para un receiver
// sin settings persistidos.
func DefaultReceiverSettings(accountID string) ReceiverSettings {
	return ReceiverSettings{
		AccountID:       accountID,
		RiskMode:        RiskModeBalanceMultiplier,
		RiskValue:       1.0,
		MaxSlippagePips: 3.0,
		MaxDailyLossR:   3.0,
		AllowedSessions: []string{"london", "new_york", "tokyo"},
		ManualConfirm:   false,
		PropFirmSafe:    false,
		PollIntervalMs:  100,
	}
}

// SymbolMapping es un par master_symbol → receiver_symbol, acotado a un par
// master/receiver. Se puede deshabilitar sin borrarlo.
// Corresponde a la tabla `mirror.symbol_mappings`.
type SymbolMapping struct {
	ReceiverAccountID string `json:"receiver_account_id" db:"receiver_account_id"`
	MasterSymbol      string `json:"master_symbol" db:"master_symbol"`
	ReceiverSymbol    string `json:"receiver_symbol" db:"receiver_symbol"`
	Enabled           bool   `json:"enabled" db:"enabled"`
}

// ReceiverConfig es la entrada por receiver dentro de un ConfigSnapshot:
// settings efectivos más los mapeos de símbolos habilitados.
type ReceiverConfig struct {
	AccountID      string            `json:"account_id"`
	Settings       ReceiverSettings  `json:"settings"`
	SymbolMappings map[string]string `json:"symbol_mappings"`
}

// ConfigSnapshot es el documento materializado y hasheado que se distribuye
// a las terminales. Se regenera en cada request de distribución.
//
// ConfigHash es función pura de (master, receivers); GeneratedAt y Version
// quedan fuera del hash para que re-fetch de configuración idéntica produzca
// un hash idéntico.
type ConfigSnapshot struct {
	MasterAccountID string           `json:"master_account_id"`
	Receivers       []ReceiverConfig `json:"receivers"`
	Version         int64            `json:"version"`
	ConfigHash      string           `json:"config_hash"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// LedgerTrade es el insumo del motor de reconciliación: un trade cerrado
// (NetPnL conocido) o aún abierto (NetPnL nil).
// Vive en la tabla `mirror.trades`.
type LedgerTrade struct {
	TradeID   string    `json:"trade_id" db:"trade_id"`
	AccountID string    `json:"account_id" db:"account_id"`
	EntryTime time.Time `json:"entry_time" db:"entry_time"`
	NetPnL    *float64  `json:"net_pnl,omitempty" db:"net_pnl"`

	// Campos derivados por el motor de reconciliación.
	BalanceAtEntry   *float64 `json:"balance_at_entry,omitempty" db:"balance_at_entry"`
	RMultiplePercent *float64 `json:"r_multiple_percent,omitempty" db:"r_multiple_percent"`
	Session          string   `json:"session,omitempty" db:"session"`
}

// Closed indica si el trade tiene resultado conocido.
func (t *LedgerTrade) Closed() bool {
	return t.NetPnL != nil
}

// ReconcileResult es el reporte de una corrida del motor de reconciliación.
type ReconcileResult struct {
	DerivedStartBalance float64 `json:"derived_start_balance"`
	TradesUpdated       int     `json:"trades_updated"`
	Errors              int     `json:"errors"`
	TotalPnL            float64 `json:"total_pnl"`
}
