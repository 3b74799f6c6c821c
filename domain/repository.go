// Package domain provee interfaces de repositorio para persistencia.
package domain

import (
	"context"
	"time"
)

// AccountRepository define operaciones de persistencia para Account.
//
// Implementaciones:
//   - PostgreSQL: en internal/repository/postgres.go
type AccountRepository interface {
	// GetByAPIKey resuelve una credencial opaca a su cuenta.
	// Retorna nil si no existe (el caller decide el error de autorización).
	GetByAPIKey(ctx context.Context, apiKey string) (*Account, error)

	// GetByID obtiene una cuenta por account_id.
	// Retorna nil si no existe.
	GetByID(ctx context.Context, accountID string) (*Account, error)

	// GetActiveMasterForUser obtiene la cuenta master activa y con copiado
	// habilitado de un usuario. Retorna nil si no hay.
	GetActiveMasterForUser(ctx context.Context, userID string) (*Account, error)

	// ListActiveReceivers lista los receivers activos y copy-enabled
	// vinculados a un master, ordenados por account_id.
	ListActiveReceivers(ctx context.Context, masterAccountID string) ([]*Account, error)

	// UpdateStartBalance persiste el baseline derivado por reconciliación.
	UpdateStartBalance(ctx context.Context, accountID string, startBalance float64) error
}

// TokenRepository define operaciones de persistencia para SetupToken.
type TokenRepository interface {
	// Create inserta un token nuevo.
	Create(ctx context.Context, token *SetupToken) error

	// Get obtiene un token por su valor. Retorna nil si no existe.
	Get(ctx context.Context, token string) (*SetupToken, error)

	// Consume marca el token como usado si y solo si sigue sin usar y no
	// venció respecto de now. Retorna el token consumido, o nil si la
	// transición no aplicó (inexistente, ya usado o vencido).
	Consume(ctx context.Context, token string, now time.Time) (*SetupToken, error)
}

// EventRepository define la ingesta de eventos de trade.
type EventRepository interface {
	// Insert persiste un evento. Los eventos son inmutables: si la
	// idempotency key ya existe el insert no tiene efecto, la fila original
	// queda intacta y retorna inserted=false.
	Insert(ctx context.Context, event *TradeEvent) (inserted bool, err error)

	// GetByIdempotencyKey obtiene un evento por su clave. Nil si no existe.
	GetByIdempotencyKey(ctx context.Context, key string) (*TradeEvent, error)
}

// LedgerRepository define el acceso al historial de trades que consume el
// motor de reconciliación.
type LedgerRepository interface {
	// ListClosedByAccount lista trades cerrados de la cuenta en orden
	// no-decreciente de entry_time.
	ListClosedByAccount(ctx context.Context, accountID string) ([]*LedgerTrade, error)

	// ListOpenByAccount lista trades aún abiertos de la cuenta, mismo orden.
	ListOpenByAccount(ctx context.Context, accountID string) ([]*LedgerTrade, error)

	// UpdateDerived persiste los campos derivados de un trade
	// (balance_at_entry, r_multiple_percent, session).
	UpdateDerived(ctx context.Context, trade *LedgerTrade) error
}

// ExecutionRepository define el ledger de ejecuciones idempotente.
type ExecutionRepository interface {
	// InsertIdempotent intenta insertar el record. Si la idempotency key ya
	// existe, no tiene efecto y retorna el record previamente almacenado
	// con inserted=false. La unicidad la garantiza el storage (constraint),
	// no locking de aplicación: ante duplicados concurrentes hay exactamente
	// un ganador y el perdedor observa el resultado del ganador.
	InsertIdempotent(ctx context.Context, rec *ExecutionRecord) (stored *ExecutionRecord, inserted bool, err error)

	// GetByIdempotencyKey obtiene un record por su clave. Nil si no existe.
	GetByIdempotencyKey(ctx context.Context, key string) (*ExecutionRecord, error)

	// ListByReceiver lista ejecuciones de un receiver, más recientes primero.
	ListByReceiver(ctx context.Context, receiverAccountID string, limit, offset int) ([]*ExecutionRecord, error)
}

// SettingsRepository define el acceso read-only del copiador a los settings
// de receiver (los muta el usuario por otra superficie).
type SettingsRepository interface {
	// GetByAccount obtiene los settings persistidos de un receiver.
	// Retorna nil si nunca se configuró (el caller aplica defaults).
	GetByAccount(ctx context.Context, accountID string) (*ReceiverSettings, error)
}

// MappingRepository define el acceso a los mapeos de símbolos.
type MappingRepository interface {
	// ListEnabledByReceiver lista solo los mapeos habilitados de un
	// receiver: los deshabilitados son invisibles para la distribución.
	ListEnabledByReceiver(ctx context.Context, receiverAccountID string) ([]*SymbolMapping, error)
}

// ConfigVersionRepository define el contador de versión de configuración por
// usuario. El contador es advisory: el hash, no la versión, es la autoridad
// sobre si un receiver debe re-aplicar configuración.
type ConfigVersionRepository interface {
	// Latest retorna la última versión registrada para el usuario (0 si
	// nunca hubo).
	Latest(ctx context.Context, userID string) (int64, error)

	// Bump incrementa y retorna la versión (se invoca ante cambios
	// estructurales de configuración).
	Bump(ctx context.Context, userID string) (int64, error)
}

// RepositoryFactory crea instancias de repositorios.
//
// Uso:
//
//	factory := repository.NewPostgresFactory(db)
//	accounts := factory.AccountRepository()
type RepositoryFactory interface {
	AccountRepository() AccountRepository
	TokenRepository() TokenRepository
	EventRepository() EventRepository
	LedgerRepository() LedgerRepository
	ExecutionRepository() ExecutionRepository
	SettingsRepository() SettingsRepository
	MappingRepository() MappingRepository
	ConfigVersionRepository() ConfigVersionRepository
}
