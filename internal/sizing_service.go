package internal

import (
	"context"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/internal/riskengine"
)

// SizingService expone el motor de sizing como operación de preview: una
// terminal receiver pregunta qué lote calcularía el motor para un evento dado
// su balance actual, antes de ejecutar.
//
// El cálculo autoritativo sigue ocurriendo en la terminal con los mismos
// settings distribuidos; el preview sirve para diagnóstico y validación de
// configuración.
type SizingService struct {
	settings domain.SettingsRepository
	engine   *riskengine.Engine
}

// NewSizingService crea el servicio de preview de sizing.
func NewSizingService(settings domain.SettingsRepository, engine *riskengine.Engine) *SizingService {
	return &SizingService{
		settings: settings,
		engine:   engine,
	}
}

// SizingPreview es el resultado del preview para la cuenta autenticada.
type SizingPreview struct {
	AccountID string  `json:"account_id"`
	LotSize   float64 `json:"lot_size"`
	Decision  string  `json:"decision"`
	Reason    string  `json:"reason,omitempty"`
}

// Preview calcula el lote que el motor asignaría al requester para el evento.
//
// Usa los settings persistidos del requester (o los defaults si no tiene) y
// el balance reportado en el request; el balance vive en la terminal, no acá.
func (s *SizingService) Preview(ctx context.Context, requester *domain.Account, event *domain.TradeEvent, balance float64) (*SizingPreview, error) {
	if requester == nil {
		return nil, domain.NewError(domain.ErrUnauthorized, "missing authenticated account")
	}
	if event == nil {
		return nil, domain.NewError(domain.ErrMissingRequiredField, "event cannot be nil")
	}
	if balance <= 0 {
		return nil, domain.NewValidationError("balance", balance, "must be positive")
	}

	settings, err := s.settings.GetByAccount(ctx, requester.AccountID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load receiver settings", err)
	}
	if settings == nil {
		def := domain.DefaultReceiverSettings(requester.AccountID)
		settings = &def
	}

	result, err := s.engine.ComputeLot(ctx, *settings, event, balance)
	if err != nil {
		return nil, err
	}

	return &SizingPreview{
		AccountID: requester.AccountID,
		LotSize:   result.Lots,
		Decision:  string(result.Decision),
		Reason:    result.Reason,
	}, nil
}
