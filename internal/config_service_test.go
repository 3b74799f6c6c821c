package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mirror/domain"
)

func configFixture(t *testing.T) (*ConfigService, *stubAccountRepo, *stubSettingsRepo, *stubMappingRepo, *stubVersionRepo) {
	t.Helper()

	accounts := &stubAccountRepo{accounts: []*domain.Account{
		masterAccount(),
		receiverAccount("acc-r1"),
		receiverAccount("acc-r2"),
	}}
	settings := &stubSettingsRepo{settings: make(map[string]*domain.ReceiverSettings)}
	mappings := &stubMappingRepo{mappings: make(map[string][]*domain.SymbolMapping)}
	versions := &stubVersionRepo{versions: map[string]int64{"user-1": 7}}

	svc := NewConfigService(accounts, settings, mappings, versions, nil, newTestMetrics(t))
	return svc, accounts, settings, mappings, versions
}

func TestSnapshotMasterSeesAllReceivers(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	snapshot, err := svc.BuildSnapshot(context.Background(), accounts.accounts[0])
	require.NoError(t, err)

	assert.Equal(t, "acc-master", snapshot.MasterAccountID)
	require.Len(t, snapshot.Receivers, 2)
	assert.Equal(t, "acc-r1", snapshot.Receivers[0].AccountID)
	assert.Equal(t, "acc-r2", snapshot.Receivers[1].AccountID)
	assert.Equal(t, int64(7), snapshot.Version)
	assert.Len(t, snapshot.ConfigHash, 64)
}

func TestSnapshotReceiverSeesOnlyItself(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	snapshot, err := svc.BuildSnapshot(context.Background(), accounts.accounts[1])
	require.NoError(t, err)

	require.Len(t, snapshot.Receivers, 1)
	assert.Equal(t, "acc-r1", snapshot.Receivers[0].AccountID)
}

func TestSnapshotIndependentSeesUserMaster(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)
	independent := &domain.Account{
		AccountID: "acc-ind",
		UserID:    "user-1",
		Role:      domain.CopierRoleIndependent,
		Active:    true,
	}
	accounts.accounts = append(accounts.accounts, independent)

	snapshot, err := svc.BuildSnapshot(context.Background(), independent)
	require.NoError(t, err)
	assert.Equal(t, "acc-master", snapshot.MasterAccountID)
	assert.Len(t, snapshot.Receivers, 2)
}

func TestSnapshotNotFoundWithoutActiveMaster(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)
	accounts.accounts[0].CopyEnabled = false

	for _, requester := range []*domain.Account{accounts.accounts[0], accounts.accounts[1]} {
		_, err := svc.BuildSnapshot(context.Background(), requester)
		require.Error(t, err)
		assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
	}
}

func TestSnapshotMergesDefaultsWhenNoSettings(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	snapshot, err := svc.BuildSnapshot(context.Background(), accounts.accounts[1])
	require.NoError(t, err)

	require.Len(t, snapshot.Receivers, 1)
	assert.Equal(t, domain.DefaultReceiverSettings("acc-r1"), snapshot.Receivers[0].Settings)
}

func TestSnapshotUsesPersistedSettingsAndEnabledMappings(t *testing.T) {
	svc, accounts, settings, mappings, _ := configFixture(t)

	custom := domain.DefaultReceiverSettings("acc-r1")
	custom.RiskMode = domain.RiskModeFixedLot
	custom.RiskValue = 0.25
	settings.settings["acc-r1"] = &custom

	mappings.mappings["acc-r1"] = []*domain.SymbolMapping{
		{ReceiverAccountID: "acc-r1", MasterSymbol: "XAUUSD", ReceiverSymbol: "GOLD", Enabled: true},
		{ReceiverAccountID: "acc-r1", MasterSymbol: "US30", ReceiverSymbol: "DJ30", Enabled: false},
	}

	snapshot, err := svc.BuildSnapshot(context.Background(), accounts.accounts[1])
	require.NoError(t, err)

	receiver := snapshot.Receivers[0]
	assert.Equal(t, domain.RiskModeFixedLot, receiver.Settings.RiskMode)
	assert.Equal(t, 0.25, receiver.Settings.RiskValue)

	// Los mapeos deshabilitados no se distribuyen.
	assert.Equal(t, map[string]string{"XAUUSD": "GOLD"}, receiver.SymbolMappings)
}

func TestSnapshotHashStableAcrossRegeneration(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	svc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	first, err := svc.BuildSnapshot(context.Background(), accounts.accounts[0])
	require.NoError(t, err)
	second, err := svc.BuildSnapshot(context.Background(), accounts.accounts[0])
	require.NoError(t, err)

	// GeneratedAt cambia por request; el hash solo depende del contenido.
	assert.NotEqual(t, first.GeneratedAt, second.GeneratedAt)
	assert.Equal(t, first.ConfigHash, second.ConfigHash)
}

func TestSnapshotHashChangesWithSettings(t *testing.T) {
	svc, accounts, settings, _, _ := configFixture(t)

	before, err := svc.BuildSnapshot(context.Background(), accounts.accounts[0])
	require.NoError(t, err)

	custom := domain.DefaultReceiverSettings("acc-r1")
	custom.RiskValue = 2.0
	settings.settings["acc-r1"] = &custom

	after, err := svc.BuildSnapshot(context.Background(), accounts.accounts[0])
	require.NoError(t, err)
	assert.NotEqual(t, before.ConfigHash, after.ConfigHash)
}

func TestSnapshotRequiresAuthenticatedAccount(t *testing.T) {
	svc, _, _, _, _ := configFixture(t)

	_, err := svc.BuildSnapshot(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrUnauthorized, domain.CodeOf(err))
}

func TestSuggestMappingPrefersPersistedMapping(t *testing.T) {
	svc, accounts, _, mappings, _ := configFixture(t)
	mappings.mappings["acc-r1"] = []*domain.SymbolMapping{
		{ReceiverAccountID: "acc-r1", MasterSymbol: "XAUUSD", ReceiverSymbol: "GOLD.cash", Enabled: true},
	}

	got, err := svc.SuggestMapping(context.Background(), accounts.accounts[1], "xauusd", []string{"XAUUSD.m"})
	require.NoError(t, err)
	assert.Equal(t, "GOLD.cash", got)
}

func TestSuggestMappingFallsBackToAliasGroup(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	got, err := svc.SuggestMapping(context.Background(), accounts.accounts[1], "XAUUSD", []string{"EURUSD", "GOLD"})
	require.NoError(t, err)
	assert.Equal(t, "GOLD", got)
}

func TestSuggestMappingReturnsEmptyWithoutCandidate(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	got, err := svc.SuggestMapping(context.Background(), accounts.accounts[1], "XAUUSD", []string{"ZZZ"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestMappingValidatesInput(t *testing.T) {
	svc, accounts, _, _, _ := configFixture(t)

	_, err := svc.SuggestMapping(context.Background(), nil, "XAUUSD", nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrUnauthorized, domain.CodeOf(err))

	_, err = svc.SuggestMapping(context.Background(), accounts.accounts[1], "", nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrMissingRequiredField, domain.CodeOf(err))
}
