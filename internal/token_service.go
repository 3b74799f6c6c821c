package internal

import (
	"context"
	"time"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
	"github.com/xKoRx/mirror/utils"
)

// TokenRequest son los parámetros de emisión de un setup token.
type TokenRequest struct {
	Role               domain.CopierRole `json:"role"`
	MasterAccountID    *string           `json:"master_account_id,omitempty"`
	SyncHistoryEnabled bool              `json:"sync_history_enabled"`
	SyncHistoryFrom    *time.Time        `json:"sync_history_from,omitempty"`
}

// TokenService emite y consume tokens de pairing de un solo uso.
type TokenService struct {
	tokens   domain.TokenRepository
	accounts domain.AccountRepository
	versions domain.ConfigVersionRepository

	ttl time.Duration

	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics

	now func() time.Time
}

// NewTokenService crea el servicio de tokens de pairing.
func NewTokenService(
	tokens domain.TokenRepository,
	accounts domain.AccountRepository,
	versions domain.ConfigVersionRepository,
	ttl time.Duration,
	tel *telemetry.Client,
	metrics *metricbundle.MirrorMetrics,
) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		tokens:    tokens,
		accounts:  accounts,
		versions:  versions,
		ttl:       ttl,
		telemetry: tel,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Issue emite un token nuevo para el usuario autenticado.
//
// Un token de receiver que referencia un master exige que esa cuenta exista,
// sea master y pertenezca al mismo usuario.
func (s *TokenService) Issue(ctx context.Context, userID string, req TokenRequest) (*domain.SetupToken, error) {
	if userID == "" {
		return nil, domain.NewError(domain.ErrUnauthorized, "missing authenticated user")
	}
	if err := domain.ValidateTokenRequest(req.Role, req.MasterAccountID); err != nil {
		return nil, err
	}

	if req.Role == domain.CopierRoleReceiver && req.MasterAccountID != nil {
		master, err := s.accounts.GetByID(ctx, *req.MasterAccountID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrUnknown, "failed to load master account", err)
		}
		if master == nil || master.Role != domain.CopierRoleMaster || master.UserID != userID {
			return nil, domain.NewError(domain.ErrNotFound, "master account not found for user")
		}
	}

	now := s.now().UTC()
	token := &domain.SetupToken{
		Token:              utils.GenerateUUIDv7(),
		UserID:             userID,
		Role:               req.Role,
		MasterAccountID:    req.MasterAccountID,
		SyncHistoryEnabled: req.SyncHistoryEnabled,
		SyncHistoryFrom:    req.SyncHistoryFrom,
		Used:               false,
		ExpiresAt:          now.Add(s.ttl),
		CreatedAt:          now,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to persist setup token", err)
	}

	if s.metrics != nil && s.metrics.TokenIssued != nil {
		s.metrics.TokenIssued.Add(ctx, 1)
	}
	if s.telemetry != nil {
		s.telemetry.SetSpanAttributes(ctx, semconv.Mirror.Role.String(string(req.Role)))
		s.telemetry.Info(ctx, "setup token issued",
			semconv.Logs.Feature.String("Pairing"),
			semconv.Logs.Event.String("token_issued"),
			semconv.Mirror.Role.String(string(req.Role)),
		)
	}

	return token, nil
}

// Consume marca un token como usado y lo retorna.
//
// El consumo es atómico a nivel storage: un token ya usado o vencido nunca se
// entrega dos veces, aun ante consumos concurrentes.
func (s *TokenService) Consume(ctx context.Context, token string) (*domain.SetupToken, error) {
	if token == "" {
		return nil, domain.NewError(domain.ErrMissingRequiredField, "token cannot be empty")
	}

	consumed, err := s.tokens.Consume(ctx, token, s.now().UTC())
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to consume setup token", err)
	}
	if consumed == nil {
		// Distinguir el motivo para el caller sin revelar tokens ajenos.
		existing, err := s.tokens.Get(ctx, token)
		if err != nil {
			return nil, domain.WrapError(domain.ErrUnknown, "failed to load setup token", err)
		}
		if existing == nil {
			return nil, domain.NewError(domain.ErrNotFound, "setup token not found")
		}
		if existing.Used {
			return nil, domain.NewError(domain.ErrInvalidRequest, "setup token already used")
		}
		return nil, domain.NewError(domain.ErrInvalidRequest, "setup token expired")
	}

	// Un pairing consumado cambia la topología de copiado del usuario; las
	// terminales detectan el cambio por el salto de versión.
	if s.versions != nil {
		if _, err := s.versions.Bump(ctx, consumed.UserID); err != nil {
			if s.telemetry != nil {
				s.telemetry.Warn(ctx, "failed to bump config version after pairing",
					semconv.Logs.Feature.String("Pairing"),
					semconv.Logs.Event.String("version_bump_failed"),
				)
			}
		}
	}

	if s.metrics != nil && s.metrics.TokenConsumed != nil {
		s.metrics.TokenConsumed.Add(ctx, 1)
	}
	if s.telemetry != nil {
		s.telemetry.SetSpanAttributes(ctx, semconv.Mirror.Role.String(string(consumed.Role)))
		s.telemetry.Info(ctx, "setup token consumed",
			semconv.Logs.Feature.String("Pairing"),
			semconv.Logs.Event.String("token_consumed"),
			semconv.Mirror.Role.String(string(consumed.Role)),
		)
	}

	return consumed, nil
}
