// Package repository provee implementaciones de persistencia para Mirror Core.
package repository

import (
	"database/sql"

	_ "github.com/lib/pq" // Driver PostgreSQL

	"github.com/xKoRx/mirror/domain"
)

// PostgresFactory implementa domain.RepositoryFactory para PostgreSQL.
type PostgresFactory struct {
	db *sql.DB

	// Repositorios inicializados lazy
	accountRepo       domain.AccountRepository
	tokenRepo         domain.TokenRepository
	eventRepo         domain.EventRepository
	ledgerRepo        domain.LedgerRepository
	executionRepo     domain.ExecutionRepository
	settingsRepo      domain.SettingsRepository
	mappingRepo       domain.MappingRepository
	configVersionRepo domain.ConfigVersionRepository
}

// NewPostgresFactory crea un factory de repositorios PostgreSQL.
//
// Uso:
//
//	db, err := sql.Open("postgres", connStr)
//	factory := repository.NewPostgresFactory(db)
//	accounts := factory.AccountRepository()
func NewPostgresFactory(db *sql.DB) *PostgresFactory {
	return &PostgresFactory{
		db: db,
	}
}

// AccountRepository retorna el repositorio de cuentas.
func (f *PostgresFactory) AccountRepository() domain.AccountRepository {
	if f.accountRepo == nil {
		f.accountRepo = &postgresAccountRepo{db: f.db}
	}
	return f.accountRepo
}

// TokenRepository retorna el repositorio de setup tokens.
func (f *PostgresFactory) TokenRepository() domain.TokenRepository {
	if f.tokenRepo == nil {
		f.tokenRepo = &postgresTokenRepo{db: f.db}
	}
	return f.tokenRepo
}

// EventRepository retorna el repositorio de eventos de trade.
func (f *PostgresFactory) EventRepository() domain.EventRepository {
	if f.eventRepo == nil {
		f.eventRepo = &postgresEventRepo{db: f.db}
	}
	return f.eventRepo
}

// LedgerRepository retorna el repositorio del historial de trades.
func (f *PostgresFactory) LedgerRepository() domain.LedgerRepository {
	if f.ledgerRepo == nil {
		f.ledgerRepo = &postgresLedgerRepo{db: f.db}
	}
	return f.ledgerRepo
}

// ExecutionRepository retorna el ledger de ejecuciones.
func (f *PostgresFactory) ExecutionRepository() domain.ExecutionRepository {
	if f.executionRepo == nil {
		f.executionRepo = &postgresExecutionRepo{db: f.db}
	}
	return f.executionRepo
}

// SettingsRepository retorna el repositorio de settings de receiver.
func (f *PostgresFactory) SettingsRepository() domain.SettingsRepository {
	if f.settingsRepo == nil {
		f.settingsRepo = &postgresSettingsRepo{db: f.db}
	}
	return f.settingsRepo
}

// MappingRepository retorna el repositorio de mapeos de símbolos.
func (f *PostgresFactory) MappingRepository() domain.MappingRepository {
	if f.mappingRepo == nil {
		f.mappingRepo = &postgresMappingRepo{db: f.db}
	}
	return f.mappingRepo
}

// ConfigVersionRepository retorna el contador de versiones de configuración.
func (f *PostgresFactory) ConfigVersionRepository() domain.ConfigVersionRepository {
	if f.configVersionRepo == nil {
		f.configVersionRepo = &postgresConfigVersionRepo{db: f.db}
	}
	return f.configVersionRepo
}

// nullIfEmpty convierte string vacío a NULL para columnas opcionales.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableString convierte sql.NullString a *string.
func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullableFloat convierte sql.NullFloat64 a *float64.
func nullableFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
