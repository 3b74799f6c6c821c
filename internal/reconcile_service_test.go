package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mirror/domain"
)

func reconcileFixture(t *testing.T) (*ReconcileService, *stubAccountRepo, *stubLedgerRepo) {
	t.Helper()

	account := masterAccount()
	account.CurrentEquity = floatPtr(1075.0)

	accounts := &stubAccountRepo{accounts: []*domain.Account{account}}
	ledger := &stubLedgerRepo{
		closed: []*domain.LedgerTrade{
			{TradeID: "t1", AccountID: account.AccountID, EntryTime: time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC), NetPnL: floatPtr(100.0)},
			{TradeID: "t2", AccountID: account.AccountID, EntryTime: time.Date(2025, 1, 11, 14, 0, 0, 0, time.UTC), NetPnL: floatPtr(-50.0)},
			{TradeID: "t3", AccountID: account.AccountID, EntryTime: time.Date(2025, 1, 12, 14, 0, 0, 0, time.UTC), NetPnL: floatPtr(25.0)},
		},
	}

	svc := NewReconcileService(accounts, ledger, nil, nil, newTestMetrics(t))
	return svc, accounts, ledger
}

func TestReconcileDerivesStartBalanceAndReplaysHistory(t *testing.T) {
	svc, accounts, ledger := reconcileFixture(t)

	result, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)

	// equity 1075 − (100 − 50 + 25) = 1000
	assert.Equal(t, 1000.0, result.DerivedStartBalance)
	assert.Equal(t, 75.0, result.TotalPnL)
	assert.Equal(t, 3, result.TradesUpdated)
	assert.Equal(t, 0, result.Errors)

	// Cada trade ve el balance acumulado hasta su entrada.
	require.Len(t, ledger.updated, 3)
	assert.Equal(t, 1000.0, *ledger.updated["t1"].BalanceAtEntry)
	assert.Equal(t, 1100.0, *ledger.updated["t2"].BalanceAtEntry)
	assert.Equal(t, 1050.0, *ledger.updated["t3"].BalanceAtEntry)

	// R% = pnl / balance_at_entry × 100, redondeado a 2 decimales.
	assert.Equal(t, 10.00, *ledger.updated["t1"].RMultiplePercent)
	assert.Equal(t, -4.55, *ledger.updated["t2"].RMultiplePercent)
	assert.Equal(t, 2.38, *ledger.updated["t3"].RMultiplePercent)

	// El baseline derivado se persiste en la cuenta.
	assert.Equal(t, 1000.0, accounts.updatedBalances["acc-master"])
}

func TestReconcileAssignsSessionFromBrokerClock(t *testing.T) {
	svc, _, ledger := reconcileFixture(t)

	_, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)

	// entry_time 14:00 con offset +2 → 12:00 UTC = 7:00 ET en enero → london.
	assert.Equal(t, string(domain.SessionLondon), ledger.updated["t1"].Session)
}

func TestReconcileOpenTradesGetBalanceWithoutR(t *testing.T) {
	svc, _, ledger := reconcileFixture(t)
	ledger.open = []*domain.LedgerTrade{
		{TradeID: "t-open", AccountID: "acc-master", EntryTime: time.Date(2025, 1, 13, 14, 0, 0, 0, time.UTC)},
	}

	result, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)
	assert.Equal(t, 4, result.TradesUpdated)

	// El trade abierto ve el balance tras todos los cerrados y no tiene R%.
	openTrade := ledger.updated["t-open"]
	require.NotNil(t, openTrade)
	assert.Equal(t, 1075.0, *openTrade.BalanceAtEntry)
	assert.Nil(t, openTrade.RMultiplePercent)
}

func TestReconcileNonPositiveEntryBalanceLeavesRNull(t *testing.T) {
	account := masterAccount()
	account.CurrentEquity = floatPtr(150.0)

	accounts := &stubAccountRepo{accounts: []*domain.Account{account}}
	ledger := &stubLedgerRepo{
		closed: []*domain.LedgerTrade{
			{TradeID: "t1", AccountID: account.AccountID, EntryTime: time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC), NetPnL: floatPtr(200.0)},
			{TradeID: "t2", AccountID: account.AccountID, EntryTime: time.Date(2025, 1, 11, 14, 0, 0, 0, time.UTC), NetPnL: floatPtr(50.0)},
		},
	}
	svc := NewReconcileService(accounts, ledger, nil, nil, newTestMetrics(t))

	result, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)

	// equity 150 − (200 + 50) → baseline −100: el balance de entrada se
	// registra igual, pero sobre un balance no positivo no hay R%.
	assert.Equal(t, -100.0, result.DerivedStartBalance)
	assert.Equal(t, 0, result.Errors)

	first := ledger.updated["t1"]
	require.NotNil(t, first)
	assert.Equal(t, -100.0, *first.BalanceAtEntry)
	assert.Nil(t, first.RMultiplePercent)

	// t2 entra con balance 100 (−100 + 200): vuelve a haber R%.
	second := ledger.updated["t2"]
	require.NotNil(t, second)
	assert.Equal(t, 100.0, *second.BalanceAtEntry)
	require.NotNil(t, second.RMultiplePercent)
	assert.Equal(t, 50.00, *second.RMultiplePercent)
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, accounts, ledger := reconcileFixture(t)

	first, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)
	firstT2 := *ledger.updated["t2"]

	second, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)

	assert.Equal(t, first.DerivedStartBalance, second.DerivedStartBalance)
	assert.Equal(t, first.TradesUpdated, second.TradesUpdated)
	assert.Equal(t, firstT2.BalanceAtEntry, ledger.updated["t2"].BalanceAtEntry)
	assert.Equal(t, firstT2.RMultiplePercent, ledger.updated["t2"].RMultiplePercent)
	assert.Equal(t, 1000.0, accounts.updatedBalances["acc-master"])
}

func TestReconcileToleratesPerTradeFailures(t *testing.T) {
	svc, accounts, ledger := reconcileFixture(t)
	ledger.failTradeIDs = map[string]bool{"t2": true}

	result, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)

	// La falla de t2 se cuenta pero no aborta el replay ni el baseline.
	assert.Equal(t, 2, result.TradesUpdated)
	assert.Equal(t, 1, result.Errors)
	assert.NotNil(t, ledger.updated["t3"])
	assert.Equal(t, 1050.0, *ledger.updated["t3"].BalanceAtEntry)
	assert.Equal(t, 1000.0, accounts.updatedBalances["acc-master"])
}

func TestReconcileBaselinePersistFailureCountsAsError(t *testing.T) {
	svc, accounts, _ := reconcileFixture(t)
	accounts.failUpdate = true

	result, err := svc.Run(context.Background(), "acc-master")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TradesUpdated)
	assert.Equal(t, 1, result.Errors)
}

func TestReconcileRequiresEquitySnapshot(t *testing.T) {
	svc, accounts, _ := reconcileFixture(t)
	accounts.accounts[0].CurrentEquity = nil

	_, err := svc.Run(context.Background(), "acc-master")
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidRequest, domain.CodeOf(err))
}

func TestReconcileUnknownAccount(t *testing.T) {
	svc, _, _ := reconcileFixture(t)

	_, err := svc.Run(context.Background(), "acc-missing")
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
}

func TestReconcileEmptyAccountID(t *testing.T) {
	svc, _, _ := reconcileFixture(t)

	_, err := svc.Run(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrMissingRequiredField, domain.CodeOf(err))
}
