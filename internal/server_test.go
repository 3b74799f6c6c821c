package internal

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/internal/riskengine"
)

func serverFixture(t *testing.T, rps float64, burst int) (*Server, *stubAccountRepo, *stubExecutionRepo) {
	t.Helper()

	accounts := &stubAccountRepo{accounts: []*domain.Account{
		masterAccount(),
		receiverAccount("acc-r1"),
	}}
	settings := &stubSettingsRepo{settings: make(map[string]*domain.ReceiverSettings)}
	mappings := &stubMappingRepo{mappings: make(map[string][]*domain.SymbolMapping)}
	versions := &stubVersionRepo{versions: map[string]int64{"user-1": 1}}
	executions := newStubExecutionRepo()
	metrics := newTestMetrics(t)

	server := NewServer(
		accounts,
		NewConfigService(accounts, settings, mappings, versions, nil, metrics),
		NewTokenService(newStubTokenRepo(), accounts, versions, 24*time.Hour, nil, metrics),
		NewEventService(newStubEventRepo(), nil, nil, metrics),
		NewExecutionService(executions, nil, metrics),
		NewReconcileService(accounts, &stubLedgerRepo{}, nil, nil, metrics),
		NewSizingService(settings, riskengine.New(nil, metrics)),
		rps,
		burst,
		nil,
	)
	return server, accounts, executions
}

func decodeError(t *testing.T, body *bytes.Buffer) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp
}

func TestConfigEndpointRequiresCredential(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/copier/config", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeError(t, rec.Body)
	assert.Equal(t, string(domain.ErrUnauthorized), resp.Error.Code)
}

func TestConfigEndpointServesSnapshotWithHeaders(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/copier/config", nil)
	req.Header.Set(headerAPIKey, "key-acc-r1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(headerConfigVersion))
	assert.Len(t, rec.Header().Get(headerConfigHash), 64)

	var snapshot domain.ConfigSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "acc-master", snapshot.MasterAccountID)
	require.Len(t, snapshot.Receivers, 1)
	assert.Equal(t, "acc-r1", snapshot.Receivers[0].AccountID)
	assert.Equal(t, rec.Header().Get(headerConfigHash), snapshot.ConfigHash)
}

func TestConfigEndpointAcceptsQueryParamCredential(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/copier/config?api_key=key-acc-r1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigEndpointRateLimitsPerCredential(t *testing.T) {
	server, _, _ := serverFixture(t, 1, 1)
	handler := server.Handler()

	get := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/copier/config", nil)
		req.Header.Set(headerAPIKey, key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("key-acc-r1"))
	assert.Equal(t, http.StatusTooManyRequests, get("key-acc-r1"))

	// Otra credencial tiene su propio limiter.
	assert.Equal(t, http.StatusOK, get("key-master"))
}

func TestStorageErrorsNeverLeak(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	server.accounts = failingAccountRepo{}
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/copier/config", nil)
	req.Header.Set(headerAPIKey, "key-acc-r1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec.Body)
	assert.Equal(t, string(domain.ErrUnknown), resp.Error.Code)
	assert.Equal(t, "internal error", resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), errStubStorage.Error())
}

func TestTokenEndpointRequiresIdentityHeader(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	body, _ := json.Marshal(TokenRequest{Role: domain.CopierRoleMaster})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/copier/tokens", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenIssueAndConsumeRoundTrip(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	body, _ := json.Marshal(TokenRequest{Role: domain.CopierRoleMaster})
	req := httptest.NewRequest(http.MethodPost, "/v1/copier/tokens", bytes.NewReader(body))
	req.Header.Set(headerUserID, "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued domain.SetupToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	consume := func() *httptest.ResponseRecorder {
		payload, _ := json.Marshal(map[string]string{"token": issued.Token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/copier/tokens/consume", bytes.NewReader(payload)))
		return rec
	}

	assert.Equal(t, http.StatusOK, consume().Code)

	second := consume()
	assert.Equal(t, http.StatusBadRequest, second.Code)
	resp := decodeError(t, second.Body)
	assert.Equal(t, string(domain.ErrInvalidRequest), resp.Error.Code)
}

func TestEventEndpointRejectsReceiverCredential(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	body, _ := json.Marshal(openEvent("evt-1"))
	req := httptest.NewRequest(http.MethodPost, "/v1/copier/events", bytes.NewReader(body))
	req.Header.Set(headerAPIKey, "key-acc-r1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventEndpointAcceptsMasterEvent(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	body, _ := json.Marshal(openEvent("evt-1"))
	req := httptest.NewRequest(http.MethodPost, "/v1/copier/events", bytes.NewReader(body))
	req.Header.Set(headerAPIKey, "key-master")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["event_id"])
	assert.Equal(t, "evt-1", resp["idempotency_key"])
	assert.Equal(t, string(domain.SessionOverlapLondonNY), resp["session"])
}

func TestEventEndpointReplayEchoesStoredID(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	post := func() map[string]string {
		body, _ := json.Marshal(openEvent("evt-1"))
		req := httptest.NewRequest(http.MethodPost, "/v1/copier/events", bytes.NewReader(body))
		req.Header.Set(headerAPIKey, "key-master")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := post()
	replay := post()

	// La entrega repetida responde con la identidad de la fila almacenada.
	assert.Equal(t, first["event_id"], replay["event_id"])
	assert.Equal(t, first["session"], replay["session"])
}

func TestExecutionEndpointReportsDedupeStatus(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	post := func() *httptest.ResponseRecorder {
		body, _ := json.Marshal(successRecord("exec-1"))
		req := httptest.NewRequest(http.MethodPost, "/v1/copier/executions", bytes.NewReader(body))
		req.Header.Set(headerAPIKey, "key-acc-r1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, post().Code)
	assert.Equal(t, http.StatusOK, post().Code)
}

func TestReconcileEndpointEnforcesOwnership(t *testing.T) {
	server, accounts, _ := serverFixture(t, 100, 100)
	foreign := masterAccount()
	foreign.AccountID = "acc-foreign"
	foreign.UserID = "user-2"
	foreign.APIKey = "key-foreign"
	accounts.accounts = append(accounts.accounts, foreign)
	handler := server.Handler()

	body, _ := json.Marshal(map[string]string{"account_id": "acc-foreign"})
	req := httptest.NewRequest(http.MethodPost, "/v1/copier/reconcile", bytes.NewReader(body))
	req.Header.Set(headerAPIKey, "key-master")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// failingAccountRepo simula storage caído.
type failingAccountRepo struct{}

func (failingAccountRepo) GetByAPIKey(context.Context, string) (*domain.Account, error) {
	return nil, errStubStorage
}

func (failingAccountRepo) GetByID(context.Context, string) (*domain.Account, error) {
	return nil, errStubStorage
}

func (failingAccountRepo) GetActiveMasterForUser(context.Context, string) (*domain.Account, error) {
	return nil, errStubStorage
}

func (failingAccountRepo) ListActiveReceivers(context.Context, string) ([]*domain.Account, error) {
	return nil, errStubStorage
}

func (failingAccountRepo) UpdateStartBalance(context.Context, string, float64) error {
	return errStubStorage
}

func TestSymbolSuggestEndpoint(t *testing.T) {
	server, _, _ := serverFixture(t, 100, 100)
	handler := server.Handler()

	body, err := json.Marshal(map[string]any{
		"master_symbol":     "XAUUSD",
		"available_symbols": []string{"EURUSD", "GOLD"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/copier/symbols/suggest", bytes.NewReader(body))
	req.Header.Set(headerAPIKey, "key-acc-r1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "XAUUSD", resp["master_symbol"])
	assert.Equal(t, "GOLD", resp["receiver_symbol"])
}
