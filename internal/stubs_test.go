package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry/metricbundle"
)

var errStubStorage = errors.New("stub storage failure")

func newTestMetrics(t *testing.T) *metricbundle.MirrorMetrics {
	t.Helper()
	metrics, err := metricbundle.NewMirrorMetrics(nil)
	require.NoError(t, err)
	return metrics
}

// ===========================================================================
// stubAccountRepo
// ===========================================================================

type stubAccountRepo struct {
	accounts []*domain.Account

	failUpdate      bool
	updatedBalances map[string]float64
}

func (r *stubAccountRepo) GetByAPIKey(_ context.Context, apiKey string) (*domain.Account, error) {
	for _, acc := range r.accounts {
		if acc.APIKey == apiKey {
			return acc, nil
		}
	}
	return nil, nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, accountID string) (*domain.Account, error) {
	for _, acc := range r.accounts {
		if acc.AccountID == accountID {
			return acc, nil
		}
	}
	return nil, nil
}

func (r *stubAccountRepo) GetActiveMasterForUser(_ context.Context, userID string) (*domain.Account, error) {
	for _, acc := range r.accounts {
		if acc.UserID == userID && acc.Role == domain.CopierRoleMaster && acc.Active && acc.CopyEnabled {
			return acc, nil
		}
	}
	return nil, nil
}

func (r *stubAccountRepo) ListActiveReceivers(_ context.Context, masterAccountID string) ([]*domain.Account, error) {
	var receivers []*domain.Account
	for _, acc := range r.accounts {
		if acc.Role == domain.CopierRoleReceiver && acc.Active && acc.CopyEnabled &&
			acc.MasterAccountID != nil && *acc.MasterAccountID == masterAccountID {
			receivers = append(receivers, acc)
		}
	}
	return receivers, nil
}

func (r *stubAccountRepo) UpdateStartBalance(_ context.Context, accountID string, startBalance float64) error {
	if r.failUpdate {
		return errStubStorage
	}
	if r.updatedBalances == nil {
		r.updatedBalances = make(map[string]float64)
	}
	r.updatedBalances[accountID] = startBalance
	return nil
}

// ===========================================================================
// stubTokenRepo
// ===========================================================================

type stubTokenRepo struct {
	tokens map[string]*domain.SetupToken
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{tokens: make(map[string]*domain.SetupToken)}
}

func (r *stubTokenRepo) Create(_ context.Context, token *domain.SetupToken) error {
	copied := *token
	r.tokens[token.Token] = &copied
	return nil
}

func (r *stubTokenRepo) Get(_ context.Context, token string) (*domain.SetupToken, error) {
	tok, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	copied := *tok
	return &copied, nil
}

func (r *stubTokenRepo) Consume(_ context.Context, token string, now time.Time) (*domain.SetupToken, error) {
	tok, ok := r.tokens[token]
	if !ok || tok.Used || !tok.ExpiresAt.After(now) {
		return nil, nil
	}
	tok.Used = true
	copied := *tok
	return &copied, nil
}

// ===========================================================================
// stubEventRepo
// ===========================================================================

type stubEventRepo struct {
	events map[string]*domain.TradeEvent
}

func newStubEventRepo() *stubEventRepo {
	return &stubEventRepo{events: make(map[string]*domain.TradeEvent)}
}

func (r *stubEventRepo) Insert(_ context.Context, event *domain.TradeEvent) (bool, error) {
	if _, exists := r.events[event.IdempotencyKey]; exists {
		// Mismo contrato que ON CONFLICT DO NOTHING.
		return false, nil
	}
	copied := *event
	r.events[event.IdempotencyKey] = &copied
	return true, nil
}

func (r *stubEventRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.TradeEvent, error) {
	ev, ok := r.events[key]
	if !ok {
		return nil, nil
	}
	copied := *ev
	return &copied, nil
}

// ===========================================================================
// stubLedgerRepo
// ===========================================================================

type stubLedgerRepo struct {
	closed []*domain.LedgerTrade
	open   []*domain.LedgerTrade

	failTradeIDs map[string]bool
	updated      map[string]*domain.LedgerTrade
}

func (r *stubLedgerRepo) ListClosedByAccount(_ context.Context, _ string) ([]*domain.LedgerTrade, error) {
	return r.closed, nil
}

func (r *stubLedgerRepo) ListOpenByAccount(_ context.Context, _ string) ([]*domain.LedgerTrade, error) {
	return r.open, nil
}

func (r *stubLedgerRepo) UpdateDerived(_ context.Context, trade *domain.LedgerTrade) error {
	if r.failTradeIDs[trade.TradeID] {
		return errStubStorage
	}
	if r.updated == nil {
		r.updated = make(map[string]*domain.LedgerTrade)
	}
	copied := *trade
	r.updated[trade.TradeID] = &copied
	return nil
}

// ===========================================================================
// stubExecutionRepo
// ===========================================================================

type stubExecutionRepo struct {
	records map[string]*domain.ExecutionRecord
}

func newStubExecutionRepo() *stubExecutionRepo {
	return &stubExecutionRepo{records: make(map[string]*domain.ExecutionRecord)}
}

func (r *stubExecutionRepo) InsertIdempotent(_ context.Context, rec *domain.ExecutionRecord) (*domain.ExecutionRecord, bool, error) {
	if stored, exists := r.records[rec.IdempotencyKey]; exists {
		copied := *stored
		return &copied, false, nil
	}
	copied := *rec
	copied.CreatedAt = time.Now().UTC()
	r.records[rec.IdempotencyKey] = &copied
	result := copied
	return &result, true, nil
}

func (r *stubExecutionRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.ExecutionRecord, error) {
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (r *stubExecutionRepo) ListByReceiver(_ context.Context, receiverAccountID string, _, _ int) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord
	for _, rec := range r.records {
		if rec.ReceiverAccountID == receiverAccountID {
			copied := *rec
			records = append(records, &copied)
		}
	}
	return records, nil
}

// ===========================================================================
// stubSettingsRepo / stubMappingRepo / stubVersionRepo
// ===========================================================================

type stubSettingsRepo struct {
	settings map[string]*domain.ReceiverSettings
}

func (r *stubSettingsRepo) GetByAccount(_ context.Context, accountID string) (*domain.ReceiverSettings, error) {
	s, ok := r.settings[accountID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

type stubMappingRepo struct {
	mappings map[string][]*domain.SymbolMapping
}

func (r *stubMappingRepo) ListEnabledByReceiver(_ context.Context, receiverAccountID string) ([]*domain.SymbolMapping, error) {
	var enabled []*domain.SymbolMapping
	for _, m := range r.mappings[receiverAccountID] {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}
	return enabled, nil
}

type stubVersionRepo struct {
	versions map[string]int64
}

func (r *stubVersionRepo) Latest(_ context.Context, userID string) (int64, error) {
	return r.versions[userID], nil
}

func (r *stubVersionRepo) Bump(_ context.Context, userID string) (int64, error) {
	if r.versions == nil {
		r.versions = make(map[string]int64)
	}
	r.versions[userID]++
	return r.versions[userID], nil
}

// ===========================================================================
// Fixtures
// ===========================================================================

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func masterAccount() *domain.Account {
	return &domain.Account{
		AccountID:            "acc-master",
		UserID:               "user-1",
		APIKey:               "key-master",
		Role:                 domain.CopierRoleMaster,
		BrokerUTCOffsetHours: 2,
		CopyEnabled:          true,
		Active:               true,
		CreatedAt:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func receiverAccount(id string) *domain.Account {
	return &domain.Account{
		AccountID:       id,
		UserID:          "user-1",
		APIKey:          "key-" + id,
		Role:            domain.CopierRoleReceiver,
		MasterAccountID: strPtr("acc-master"),
		CopyEnabled:     true,
		Active:          true,
		CreatedAt:       time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func openEvent(key string) *domain.TradeEvent {
	return &domain.TradeEvent{
		IdempotencyKey: key,
		AccountID:      "acc-master",
		PositionID:     "pos-1",
		Type:           domain.TradeEventOpen,
		Symbol:         "XAUUSD",
		Side:           domain.TradeSideBuy,
		LotSize:        1.0,
		Price:          2400.0,
		ServerTime:     time.Date(2025, 1, 15, 16, 30, 0, 0, time.UTC),
		Intent: &domain.IntentData{
			InvalidationPrice: 2390.0,
			TargetPrice:       2420.0,
			TickValue:         1.0,
			ContractSize:      100.0,
			PipValue:          10.0,
			RiskPips:          100.0,
			AccountBalance:    50000.0,
			AccountEquity:     50000.0,
		},
	}
}
