package internal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
	"github.com/xKoRx/mirror/telemetry/semconv"
)

// ConfigService materializa snapshots de configuración de copiado por
// credencial.
//
// Reglas de visibilidad:
//   - credencial de receiver: ve solo su propia entrada
//   - credencial de master o de cuenta independiente: ve todos los receivers
//     activos del master del usuario
//   - sin master activo y copy-enabled: NotFound
//
// El snapshot se regenera en cada request; el hash de contenido permite a las
// terminales saltear re-aplicaciones.
type ConfigService struct {
	accounts domain.AccountRepository
	settings domain.SettingsRepository
	mappings domain.MappingRepository
	versions domain.ConfigVersionRepository

	telemetry *telemetry.Client
	metrics   *metricbundle.MirrorMetrics

	now func() time.Time
}

// NewConfigService crea el servicio de distribución de configuración.
func NewConfigService(
	accounts domain.AccountRepository,
	settings domain.SettingsRepository,
	mappings domain.MappingRepository,
	versions domain.ConfigVersionRepository,
	tel *telemetry.Client,
	metrics *metricbundle.MirrorMetrics,
) *ConfigService {
	return &ConfigService{
		accounts:  accounts,
		settings:  settings,
		mappings:  mappings,
		versions:  versions,
		telemetry: tel,
		metrics:   metrics,
		now:       time.Now,
	}
}

// BuildSnapshot construye el snapshot de configuración visible para la
// cuenta autenticada.
func (s *ConfigService) BuildSnapshot(ctx context.Context, requester *domain.Account) (*domain.ConfigSnapshot, error) {
	if requester == nil {
		return nil, domain.NewError(domain.ErrUnauthorized, "missing authenticated account")
	}

	var span trace.Span
	if s.telemetry != nil {
		ctx, span = s.telemetry.StartSpan(ctx, "core.config.build_snapshot")
		span.SetAttributes(
			semconv.Mirror.AccountID.String(requester.AccountID),
			semconv.Mirror.Role.String(string(requester.Role)),
		)
		defer span.End()
	}
	start := s.now()

	master, err := s.resolveMaster(ctx, requester)
	if err != nil {
		return nil, err
	}

	receiverAccounts, err := s.resolveReceivers(ctx, requester, master)
	if err != nil {
		return nil, err
	}

	receivers := make([]domain.ReceiverConfig, 0, len(receiverAccounts))
	for _, acc := range receiverAccounts {
		cfg, err := s.buildReceiverConfig(ctx, acc)
		if err != nil {
			return nil, err
		}
		receivers = append(receivers, cfg)
	}

	version, err := s.versions.Latest(ctx, master.UserID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load config version", err)
	}

	hash, err := domain.ComputeConfigHash(master.AccountID, receivers)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.ConfigSnapshot{
		MasterAccountID: master.AccountID,
		Receivers:       receivers,
		Version:         version,
		ConfigHash:      hash,
		GeneratedAt:     s.now().UTC(),
	}

	if s.metrics != nil {
		if s.metrics.ConfigServed != nil {
			s.metrics.ConfigServed.Add(ctx, 1)
		}
		if s.metrics.ConfigBuildDuration != nil {
			s.metrics.ConfigBuildDuration.Record(ctx, s.now().Sub(start).Seconds())
		}
	}
	if s.telemetry != nil {
		s.telemetry.Debug(ctx, "config snapshot served",
			semconv.Logs.Feature.String("ConfigDistribution"),
			semconv.Logs.Event.String("config_served"),
			semconv.Mirror.MasterAccountID.String(master.AccountID),
			semconv.Mirror.ConfigVersion.Int64(version),
			semconv.Mirror.ConfigHash.String(hash),
		)
	}

	return snapshot, nil
}

// SuggestMapping resuelve el símbolo local que mejor corresponde a un símbolo
// del master, para precargar mapeos durante el setup de una terminal.
//
// Un mapeo persistido y habilitado siempre gana; sin mapeo se busca el mejor
// candidato entre los símbolos disponibles que reporta la terminal. Retorna
// cadena vacía si ningún candidato supera el umbral de similitud.
func (s *ConfigService) SuggestMapping(ctx context.Context, requester *domain.Account, masterSymbol string, available []string) (string, error) {
	if requester == nil {
		return "", domain.NewError(domain.ErrUnauthorized, "missing authenticated account")
	}
	if masterSymbol == "" {
		return "", domain.NewError(domain.ErrMissingRequiredField, "master_symbol cannot be empty")
	}

	mappings, err := s.mappings.ListEnabledByReceiver(ctx, requester.AccountID)
	if err != nil {
		return "", domain.WrapError(domain.ErrUnknown, "failed to load symbol mappings", err)
	}
	normalized := domain.NormalizeSymbol(masterSymbol)
	for _, m := range mappings {
		if domain.NormalizeSymbol(m.MasterSymbol) == normalized {
			return m.ReceiverSymbol, nil
		}
	}

	return domain.SuggestBestMatch(masterSymbol, available), nil
}

// resolveMaster encuentra la cuenta master activa y copy-enabled que gobierna
// la configuración del requester.
func (s *ConfigService) resolveMaster(ctx context.Context, requester *domain.Account) (*domain.Account, error) {
	if requester.Role == domain.CopierRoleMaster {
		if !requester.Active || !requester.CopyEnabled {
			return nil, domain.NewError(domain.ErrNotFound, "no active copy-enabled master account")
		}
		return requester, nil
	}

	if requester.Role == domain.CopierRoleReceiver && requester.MasterAccountID != nil {
		master, err := s.accounts.GetByID(ctx, *requester.MasterAccountID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrUnknown, "failed to load master account", err)
		}
		if master == nil || master.Role != domain.CopierRoleMaster || !master.Active || !master.CopyEnabled {
			return nil, domain.NewError(domain.ErrNotFound, "no active copy-enabled master account")
		}
		return master, nil
	}

	master, err := s.accounts.GetActiveMasterForUser(ctx, requester.UserID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to load master account", err)
	}
	if master == nil {
		return nil, domain.NewError(domain.ErrNotFound, "no active copy-enabled master account")
	}
	return master, nil
}

// resolveReceivers determina las cuentas receiver visibles para el requester.
func (s *ConfigService) resolveReceivers(ctx context.Context, requester, master *domain.Account) ([]*domain.Account, error) {
	if requester.Role == domain.CopierRoleReceiver {
		if !requester.Active || !requester.CopyEnabled {
			return []*domain.Account{}, nil
		}
		return []*domain.Account{requester}, nil
	}

	receivers, err := s.accounts.ListActiveReceivers(ctx, master.AccountID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to list receivers", err)
	}
	return receivers, nil
}

// buildReceiverConfig arma la entrada de un receiver: settings efectivos
// (persistidos o defaults) más los mapeos habilitados.
func (s *ConfigService) buildReceiverConfig(ctx context.Context, acc *domain.Account) (domain.ReceiverConfig, error) {
	settings, err := s.settings.GetByAccount(ctx, acc.AccountID)
	if err != nil {
		return domain.ReceiverConfig{}, domain.WrapError(domain.ErrUnknown, "failed to load receiver settings", err)
	}
	if settings == nil {
		def := domain.DefaultReceiverSettings(acc.AccountID)
		settings = &def
	}

	mappings, err := s.mappings.ListEnabledByReceiver(ctx, acc.AccountID)
	if err != nil {
		return domain.ReceiverConfig{}, domain.WrapError(domain.ErrUnknown, "failed to load symbol mappings", err)
	}

	symbolMap := make(map[string]string, len(mappings))
	for _, m := range mappings {
		symbolMap[m.MasterSymbol] = m.ReceiverSymbol
	}

	return domain.ReceiverConfig{
		AccountID:      acc.AccountID,
		Settings:       *settings,
		SymbolMappings: symbolMap,
	}, nil
}
