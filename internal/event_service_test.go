package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mirror/domain"
)

func eventFixture(t *testing.T) (*EventService, *stubEventRepo) {
	t.Helper()
	repo := newStubEventRepo()
	svc := NewEventService(repo, nil, nil, newTestMetrics(t))
	return svc, repo
}

func TestIngestPersistsEventAndAssignsID(t *testing.T) {
	svc, repo := eventFixture(t)

	event := openEvent("evt-key-1")
	err := svc.Ingest(context.Background(), masterAccount(), event)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	stored, err := repo.GetByIdempotencyKey(context.Background(), "evt-key-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "XAUUSD", stored.Symbol)
	require.NotNil(t, stored.Intent)
	assert.Equal(t, 2390.0, stored.Intent.InvalidationPrice)

	// 16:30 broker +2 → 14:30 UTC → 9:30 ET en enero.
	assert.Equal(t, string(domain.SessionOverlapLondonNY), stored.Session)
}

func TestIngestDuplicateKeyIsNoop(t *testing.T) {
	svc, repo := eventFixture(t)
	emitter := masterAccount()

	first := openEvent("evt-key-1")
	require.NoError(t, svc.Ingest(context.Background(), emitter, first))

	replay := openEvent("evt-key-1")
	replay.Price = 9999.0
	require.NoError(t, svc.Ingest(context.Background(), emitter, replay))

	// La primera versión queda; el reenvío no muta la fila.
	stored, err := repo.GetByIdempotencyKey(context.Background(), "evt-key-1")
	require.NoError(t, err)
	assert.Equal(t, 2400.0, stored.Price)
	assert.Len(t, repo.events, 1)

	// El reenvío adopta la identidad almacenada, no genera una nueva.
	assert.Equal(t, first.EventID, replay.EventID)
	assert.Equal(t, first.Session, replay.Session)
}

func TestIngestOnlyMastersCanPublish(t *testing.T) {
	svc, _ := eventFixture(t)

	cases := map[string]*domain.Account{
		"receiver role": receiverAccount("acc-r1"),
		"copy disabled": func() *domain.Account {
			a := masterAccount()
			a.CopyEnabled = false
			return a
		}(),
		"inactive": func() *domain.Account {
			a := masterAccount()
			a.Active = false
			return a
		}(),
	}

	for name, emitter := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.Ingest(context.Background(), emitter, openEvent("evt-key-1"))
			require.Error(t, err)
			assert.Equal(t, domain.ErrUnauthorized, domain.CodeOf(err))
		})
	}
}

func TestIngestAccountMustMatchCredential(t *testing.T) {
	svc, _ := eventFixture(t)

	event := openEvent("evt-key-1")
	event.AccountID = "acc-other"

	err := svc.Ingest(context.Background(), masterAccount(), event)
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidRequest, domain.CodeOf(err))
}

func TestIngestOpenRequiresIntent(t *testing.T) {
	svc, _ := eventFixture(t)

	event := openEvent("evt-key-1")
	event.Intent = nil

	err := svc.Ingest(context.Background(), masterAccount(), event)
	require.Error(t, err)
	assert.Equal(t, domain.ErrMissingRequiredField, domain.CodeOf(err))
}

func TestIngestCloseWithoutIntent(t *testing.T) {
	svc, _ := eventFixture(t)

	event := openEvent("evt-key-1")
	event.Type = domain.TradeEventClose
	event.Intent = nil

	require.NoError(t, svc.Ingest(context.Background(), masterAccount(), event))
}

func TestIngestRequiresAuthenticatedAccount(t *testing.T) {
	svc, _ := eventFixture(t)

	err := svc.Ingest(context.Background(), nil, openEvent("evt-key-1"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrUnauthorized, domain.CodeOf(err))
}
