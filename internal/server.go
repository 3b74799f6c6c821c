package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/xKoRx/mirror/domain"
	"github.com/xKoRx/mirror/telemetry"
	"github.com/xKoRx/mirror/telemetry/semconv"
	"github.com/xKoRx/mirror/utils"
)

// Headers expuestos por la distribución de configuración.
const (
	headerAPIKey        = "X-Api-Key"
	headerUserID        = "X-User-Id"
	headerConfigVersion = "X-Mirror-Config-Version"
	headerConfigHash    = "X-Mirror-Config-Hash"
)

// Server expone la superficie HTTP/JSON de Mirror Core.
//
// Rutas:
//   - GET  /healthz
//   - GET  /v1/copier/config
//   - POST /v1/copier/tokens
//   - POST /v1/copier/tokens/consume
//   - POST /v1/copier/events
//   - POST /v1/copier/executions
//   - POST /v1/copier/reconcile
//   - POST /v1/copier/sizing
//   - POST /v1/copier/symbols/suggest
type Server struct {
	accounts domain.AccountRepository

	configSvc    *ConfigService
	tokenSvc     *TokenService
	eventSvc     *EventService
	executionSvc *ExecutionService
	reconcileSvc *ReconcileService
	sizingSvc    *SizingService

	telemetry *telemetry.Client

	// Limiter por credencial: las terminales pollean config cada ~100ms y
	// una terminal ruidosa no debe degradar a las demás.
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	rps       rate.Limit
	burst     int
}

// NewServer crea el servidor HTTP de Mirror Core.
func NewServer(
	accounts domain.AccountRepository,
	configSvc *ConfigService,
	tokenSvc *TokenService,
	eventSvc *EventService,
	executionSvc *ExecutionService,
	reconcileSvc *ReconcileService,
	sizingSvc *SizingService,
	rps float64,
	burst int,
	tel *telemetry.Client,
) *Server {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &Server{
		accounts:     accounts,
		configSvc:    configSvc,
		tokenSvc:     tokenSvc,
		eventSvc:     eventSvc,
		executionSvc: executionSvc,
		reconcileSvc: reconcileSvc,
		sizingSvc:    sizingSvc,
		telemetry:    tel,
		limiters:     make(map[string]*rate.Limiter),
		rps:          rate.Limit(rps),
		burst:        burst,
	}
}

// Handler arma el mux con todas las rutas instrumentadas.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/copier/config", s.instrument("config", s.handleGetConfig))
	mux.HandleFunc("POST /v1/copier/tokens", s.instrument("tokens_issue", s.handleIssueToken))
	mux.HandleFunc("POST /v1/copier/tokens/consume", s.instrument("tokens_consume", s.handleConsumeToken))
	mux.HandleFunc("POST /v1/copier/events", s.instrument("events", s.handlePostEvent))
	mux.HandleFunc("POST /v1/copier/executions", s.instrument("executions", s.handlePostExecution))
	mux.HandleFunc("POST /v1/copier/reconcile", s.instrument("reconcile", s.handleReconcile))
	mux.HandleFunc("POST /v1/copier/sizing", s.instrument("sizing", s.handleSizingPreview))
	mux.HandleFunc("POST /v1/copier/symbols/suggest", s.instrument("symbols_suggest", s.handleSuggestSymbol))

	return mux
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// statusRecorder captura el status code para logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument agrega span, log y latencia por request.
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		if s.telemetry != nil {
			newCtx, span := s.telemetry.StartSpan(ctx, "http."+name)
			ctx = newCtx
			defer span.End()
		}

		ctx = telemetry.AppendCommonAttrs(ctx, semconv.Metrics.Component.String(name))
		ctx = telemetry.AppendMetricAttrs(ctx, semconv.Metrics.Action.String(r.Method))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))

		if s.telemetry != nil {
			elapsed := float64(utils.ElapsedMsSince(start))
			status := "ok"
			if rec.status >= http.StatusBadRequest {
				status = "error"
			}
			s.telemetry.RecordLatency(ctx, "mirror.http."+name, elapsed,
				semconv.HTTP.StatusCode.Int(rec.status),
				semconv.Metrics.Status.String(status),
			)
			s.telemetry.Debug(ctx, "http request handled",
				semconv.HTTP.Method.String(r.Method),
				semconv.HTTP.Path.String(r.URL.Path),
				semconv.HTTP.Handler.String(name),
				semconv.HTTP.StatusCode.Int(rec.status),
				semconv.HTTP.DurationMs.Float64(elapsed),
				semconv.HTTP.UserAgent.String(r.UserAgent()),
				semconv.HTTP.ClientIP.String(r.RemoteAddr),
			)
		}
	}
}

// authenticate resuelve la credencial de terminal (header o query param).
func (s *Server) authenticate(r *http.Request) (*domain.Account, error) {
	apiKey := r.Header.Get(headerAPIKey)
	if apiKey == "" {
		apiKey = r.URL.Query().Get("api_key")
	}
	if apiKey == "" {
		return nil, domain.NewError(domain.ErrUnauthorized, "missing api key")
	}

	account, err := s.accounts.GetByAPIKey(r.Context(), apiKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnknown, "failed to resolve credential", err)
	}
	if account == nil || !account.Active {
		return nil, domain.NewError(domain.ErrUnauthorized, "invalid api key")
	}
	return account, nil
}

// allow aplica el rate limit de la credencial.
func (s *Server) allow(apiKeyOwner string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	limiter, ok := s.limiters[apiKeyOwner]
	if !ok {
		limiter = rate.NewLimiter(s.rps, s.burst)
		s.limiters[apiKeyOwner] = limiter
	}
	return limiter.Allow()
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !s.allow(account.AccountID) {
		writeJSON(w, http.StatusTooManyRequests, errorBody(domain.ErrInvalidRequest, "rate limit exceeded"))
		return
	}

	snapshot, err := s.configSvc.BuildSnapshot(r.Context(), account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set(headerConfigVersion, strconv.FormatInt(snapshot.Version, 10))
	w.Header().Set(headerConfigHash, snapshot.ConfigHash)
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	// La identidad de usuario la provee el gateway/identity externo.
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		s.writeError(w, r, domain.NewError(domain.ErrUnauthorized, "missing user identity"))
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	token, err := s.tokenSvc.Issue(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (s *Server) handleConsumeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	token, err := s.tokenSvc.Consume(r.Context(), req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var event domain.TradeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	if err := s.eventSvc.Ingest(r.Context(), account, &event); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"event_id":        event.EventID,
		"idempotency_key": event.IdempotencyKey,
		"session":         event.Session,
	})
}

func (s *Server) handlePostExecution(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var rec domain.ExecutionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	stored, inserted, err := s.executionSvc.Record(r.Context(), account, &rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !inserted {
		// Replay: mismo resultado observable que la primera submission.
		status = http.StatusOK
	}
	writeJSON(w, status, stored)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}
	if req.AccountID == "" {
		req.AccountID = account.AccountID
	}

	// Solo cuentas del mismo usuario.
	if req.AccountID != account.AccountID {
		target, err := s.accounts.GetByID(r.Context(), req.AccountID)
		if err != nil {
			s.writeError(w, r, domain.WrapError(domain.ErrUnknown, "failed to load account", err))
			return
		}
		if target == nil || target.UserID != account.UserID {
			s.writeError(w, r, domain.NewError(domain.ErrNotFound, "account not found"))
			return
		}
	}

	result, err := s.reconcileSvc.Run(r.Context(), req.AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSizingPreview(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Event   *domain.TradeEvent `json:"event"`
		Balance float64            `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	preview, err := s.sizingSvc.Preview(r.Context(), account, req.Event, req.Balance)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleSuggestSymbol(w http.ResponseWriter, r *http.Request) {
	account, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		MasterSymbol     string   `json:"master_symbol"`
		AvailableSymbols []string `json:"available_symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewError(domain.ErrInvalidRequest, "malformed request body"))
		return
	}

	suggestion, err := s.configSvc.SuggestMapping(r.Context(), account, req.MasterSymbol, req.AvailableSymbols)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"master_symbol":   req.MasterSymbol,
		"receiver_symbol": suggestion,
	})
}

// ---------------------------------------------------------------------------
// Respuestas
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(code domain.ErrorCode, message string) errorResponse {
	return errorResponse{Error: errorDetail{Code: string(code), Message: message}}
}

// writeError traduce errores de dominio a status codes y cuerpos estables.
// El texto de errores de storage nunca llega al cliente.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)

	status := http.StatusInternalServerError
	message := "internal error"

	switch code {
	case domain.ErrUnauthorized:
		status = http.StatusUnauthorized
		message = errMessage(err)
	case domain.ErrNotFound:
		status = http.StatusNotFound
		message = errMessage(err)
	case domain.ErrInvalidRequest, domain.ErrMissingRequiredField, domain.ErrInvalidIntentData:
		status = http.StatusBadRequest
		message = errMessage(err)
	case domain.ErrDedupeConflict:
		status = http.StatusConflict
		message = errMessage(err)
	}

	if status == http.StatusInternalServerError && s.telemetry != nil {
		attrs := append(
			semconv.ErrorAttributes(string(code), semconv.StatusValues.Failed),
			semconv.HTTP.Path.String(r.URL.Path),
		)
		s.telemetry.RecordError(r.Context(), err, attrs...)
		s.telemetry.Error(r.Context(), "request failed", err, attrs...)
	}

	writeJSON(w, status, errorBody(code, message))
}

// errMessage extrae el mensaje de dominio sin el texto de causas envueltas.
func errMessage(err error) string {
	var copyErr *domain.CopyError
	if errors.As(err, &copyErr) {
		return copyErr.Message
	}
	return "request failed"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		// Headers ya enviados; un encode fallido no tiene recuperación.
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Addr formatea la dirección de escucha para un puerto.
func Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}
