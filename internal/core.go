package internal

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/internal/repository"
	"github.com/xKoRx/mirror/internal/riskengine"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
)

// Core orquesta el servicio Mirror Core: telemetría, storage, servicios de
// dominio y la superficie HTTP.
type Core struct {
	config *Config

	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics

	db    *sql.DB
	repos domain.RepositoryFactory

	configSvc    *ConfigService
	tokenSvc     *TokenService
	eventSvc     *EventService
	executionSvc *ExecutionService
	reconcileSvc *ReconcileService
	sizingSvc    *SizingService

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewCore crea e inicializa el Core completo.
//
// Orden de inicialización: telemetría → Postgres (con retry) → repositorios →
// tabla de sesiones → servicios → HTTP server. Cualquier falla revierte lo ya
// inicializado.
func NewCore(ctx context.Context, cfg *Config) (*Core, error) {
	coreCtx, cancel := context.WithCancel(ctx)

	core := &Core{
		config: cfg,
		ctx:    coreCtx,
		cancel: cancel,
	}

	telOpts := []telemetry.Option{
		telemetry.WithVersion(cfg.ServiceVersion),
	}
	if cfg.OTLPEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithOTLPEndpoint(cfg.OTLPEndpoint))
	}
	if !cfg.TracesEnabled {
		telOpts = append(telOpts, telemetry.WithTracesDisabled())
	}
	if !cfg.MetricsEnabled {
		telOpts = append(telOpts, telemetry.WithMetricsDisabled())
	}
	if !cfg.LogsEnabled {
		telOpts = append(telOpts, telemetry.WithLogsDisabled())
	}
	if hostname, err := os.Hostname(); err == nil {
		telOpts = append(telOpts, telemetry.WithCommonAttributes(
			semconv.Metrics.Instance.String(hostname),
		))
	}
	tel, err := telemetry.New(coreCtx, cfg.ServiceName, cfg.Environment, telOpts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	core.telemetry = tel

	metrics, err := metricbundle.NewMirrorMetrics(tel.Meter())
	if err != nil {
		core.shutdownPartial()
		return nil, fmt.Errorf("failed to create metric bundle: %w", err)
	}
	core.metrics = metrics

	db, err := openPostgres(coreCtx, cfg, tel)
	if err != nil {
		core.shutdownPartial()
		return nil, err
	}
	core.db = db
	core.repos = repository.NewPostgresFactory(db)

	sessionTable, err := LoadSessionTable(cfg.SessionTablePath)
	if err != nil {
		core.shutdownPartial()
		return nil, fmt.Errorf("failed to load session table: %w", err)
	}

	core.configSvc = NewConfigService(
		core.repos.AccountRepository(),
		core.repos.SettingsRepository(),
		core.repos.MappingRepository(),
		core.repos.ConfigVersionRepository(),
		tel,
		metrics,
	)
	core.tokenSvc = NewTokenService(
		core.repos.TokenRepository(),
		core.repos.AccountRepository(),
		core.repos.ConfigVersionRepository(),
		cfg.TokenTTL,
		tel,
		metrics,
	)
	core.eventSvc = NewEventService(
		core.repos.EventRepository(),
		sessionTable,
		tel,
		metrics,
	)
	core.executionSvc = NewExecutionService(
		core.repos.ExecutionRepository(),
		tel,
		metrics,
	)
	core.reconcileSvc = NewReconcileService(
		core.repos.AccountRepository(),
		core.repos.LedgerRepository(),
		sessionTable,
		tel,
		metrics,
	)
	core.sizingSvc = NewSizingService(
		core.repos.SettingsRepository(),
		riskengine.New(tel, metrics),
	)

	server := NewServer(
		core.repos.AccountRepository(),
		core.configSvc,
		core.tokenSvc,
		core.eventSvc,
		core.executionSvc,
		core.reconcileSvc,
		core.sizingSvc,
		cfg.RateLimitRPS,
		cfg.RateLimitBurst,
		tel,
	)
	core.httpServer = &http.Server{
		Addr:         Addr(cfg.HTTPPort),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	tel.Info(coreCtx, "core initialized",
		semconv.Logs.Feature.String("Core"),
		semconv.Logs.Event.String("core_initialized"),
	)

	return core, nil
}

// openPostgres abre el pool y espera a que la base acepte pings, con backoff
// exponencial acotado. Un Postgres que arranca junto al core tarda unos
// segundos en aceptar conexiones.
func openPostgres(ctx context.Context, cfg *Config, tel *telemetry.Client) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresConnStr())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.PostgresPoolMaxConn)
	db.SetMaxIdleConns(cfg.PostgresPoolMaxConn / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 500 * time.Millisecond
	backoffCfg.MaxInterval = 5 * time.Second

	deadline := time.Now().Add(30 * time.Second)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			db.Close()
			return nil, fmt.Errorf("postgres did not become ready: %w", err)
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = 5 * time.Second
		}
		if tel != nil {
			tel.Warn(ctx, "postgres not ready, retrying",
				semconv.Logs.Feature.String("Core"),
				semconv.Logs.Event.String("postgres_retry"),
			)
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Start levanta el HTTP server y bloquea hasta que el contexto del core se
// cancele o el listener falle.
func (c *Core) Start() error {
	errCh := make(chan error, 1)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.telemetry.Info(c.ctx, "http server listening",
			semconv.Logs.Feature.String("Core"),
			semconv.Logs.Event.String("http_listening"),
		)
		if err := c.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-c.ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Reconcile ejecuta una corrida de reconciliación puntual (CLI).
func (c *Core) Reconcile(ctx context.Context, accountID string) (*domain.ReconcileResult, error) {
	return c.reconcileSvc.Run(ctx, accountID)
}

// Stop apaga el core en orden inverso: HTTP con gracia, luego pool, luego
// telemetría. Idempotente.
func (c *Core) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.telemetry.Info(c.ctx, "core stopping",
		semconv.Logs.Feature.String("Core"),
		semconv.Logs.Event.String("core_stopping"),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.config.HTTPShutdownGrace)
	defer cancel()
	if err := c.httpServer.Shutdown(shutdownCtx); err != nil {
		c.telemetry.Error(c.ctx, "http shutdown did not complete cleanly", err)
	}

	c.cancel()
	c.wg.Wait()

	if err := c.db.Close(); err != nil {
		c.telemetry.Error(c.ctx, "failed to close postgres pool", err)
	}

	if err := c.telemetry.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("telemetry shutdown failed: %w", err)
	}
	return nil
}

// shutdownPartial libera lo inicializado cuando NewCore falla a medio camino.
func (c *Core) shutdownPartial() {
	if c.db != nil {
		c.db.Close()
	}
	if c.telemetry != nil {
		_ = c.telemetry.Shutdown(context.Background())
	}
	c.cancel()
}
