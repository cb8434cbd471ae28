package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/billing"
	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/handler"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/cache"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/pending"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/sheets"
	"github.com/boddenberg/card-advisor-bfa-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// testEnv wires the real services behind the router, with the spreadsheet
// API replaced by an httptest server.
type testEnv struct {
	router  http.Handler
	metrics *observability.Metrics
	appends atomic.Int32
	status  atomic.Int32 // status returned by the fake spreadsheet API
	token   string
	logs    *observer.ObservedLogs
}

func newTestEnv(t *testing.T, tokens *service.TokenService) *testEnv {
	t.Helper()
	env := &testEnv{metrics: observability.NewMetrics()}
	env.status.Store(http.StatusOK)

	sheetsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(env.status.Load())
		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		env.appends.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Compras!A2:G2","updatedRows":1}}`))
	}))
	t.Cleanup(sheetsServer.Close)

	catalog, err := billing.NewCatalog([]domain.CycleConfig{
		{CardID: "NU", CutDay: 6, DueDay: 26},
		{CardID: "BBVA", CutDay: 15, DueDay: 5, DueOffset: 1},
		{CardID: "DEBITO", CutDay: 1, DueDay: 2},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	advisor := billing.NewAdvisor(catalog, billing.NewExemptSet("DEBITO"), 5, 3)

	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	recorder := sheets.NewClient(
		sheetsServer.Client(),
		sheetsServer.URL,
		"sheet-123",
		"Compras!A:G",
		"tok",
		resilience.NewCircuitBreaker("sheets-handler-test", zap.NewNop()),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxConcurrency: 2},
		zap.NewNop(),
	)

	confirmSvc := service.NewConfirmationService(
		advisor,
		pending.NewStore(),
		recorder,
		service.ConfirmationConfig{TTL: 5 * time.Minute, Location: time.UTC, Clock: clock},
		env.metrics,
		zap.NewNop(),
	)

	rankings := cache.New[domain.RankingResponse](time.Minute)
	t.Cleanup(rankings.Close)
	cardSvc := service.NewCardService(advisor, rankings, time.UTC, clock, env.metrics, zap.NewNop())

	if tokens != nil {
		env.token, err = tokens.IssueServiceToken("telegram-bot", time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
	}

	core, logs := observer.New(zap.InfoLevel)
	env.logs = logs
	env.router = handler.NewRouter(confirmSvc, cardSvc, tokens, env.metrics, zap.New(core))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

const pendingPath = "/v1/chats/chat-1/users/user-1/pending"

func purchaseBody(bank string) map[string]any {
	return map[string]any{
		"amount":      "1299.90",
		"months":      3,
		"bank":        bank,
		"description": "Audífonos",
		"user":        "ana",
	}
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) domain.Outcome {
	t.Helper()
	var out domain.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	return out
}

func TestFlow_WarnThenConfirmAnyway(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPut, pendingPath, purchaseBody("bbva"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("begin: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var preview domain.Preview
	if err := json.NewDecoder(rec.Body).Decode(&preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Stage != domain.StagePreview || preview.Window == nil || preview.Window.DaysToPay != 26 {
		t.Fatalf("unexpected preview %+v", preview)
	}

	// BBVA pays in 26 days, NU in 47: the first confirm only warns.
	rec = env.do(t, http.MethodPost, pendingPath+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeOutcome(t, rec)
	if out.Status != domain.OutcomeWarned {
		t.Fatalf("expected warned, got %s", out.Status)
	}
	if len(out.Alternatives) == 0 || out.Alternatives[0].CardID != "NU" {
		t.Errorf("expected NU as best alternative, got %+v", out.Alternatives)
	}
	if env.appends.Load() != 0 {
		t.Fatal("nothing must be written before the user decides")
	}

	rec = env.do(t, http.MethodGet, pendingPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get pending: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, pendingPath+"/confirm-anyway", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm-anyway: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if out := decodeOutcome(t, rec); out.Status != domain.OutcomeCommitted {
		t.Fatalf("expected committed, got %s", out.Status)
	}
	if env.appends.Load() != 1 {
		t.Errorf("expected 1 append, got %d", env.appends.Load())
	}

	// The entry is gone once committed.
	rec = env.do(t, http.MethodPost, pendingPath+"/confirm", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after commit, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/metrics/advisor", nil)
	var snap domain.AdvisorMetrics
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap.Committed != 1 || snap.Warned != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestFlow_BestCardCommitsDirectly(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPut, pendingPath, purchaseBody("NU"))
	rec := env.do(t, http.MethodPost, pendingPath+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeOutcome(t, rec)
	if out.Status != domain.OutcomeCommitted || out.Window == nil || out.Window.DaysToPay != 47 {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestFlow_Cancel(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPut, pendingPath, purchaseBody("BBVA"))
	rec := env.do(t, http.MethodPost, pendingPath+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out := decodeOutcome(t, rec); out.Status != domain.OutcomeCancelled {
		t.Errorf("expected cancelled, got %s", out.Status)
	}
	if env.appends.Load() != 0 {
		t.Error("a cancelled purchase must not be written")
	}

	rec = env.do(t, http.MethodGet, pendingPath, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestFlow_InvalidPurchase(t *testing.T) {
	env := newTestEnv(t, nil)

	body := purchaseBody("NU")
	body["amount"] = "0"
	rec := env.do(t, http.MethodPut, pendingPath, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, pendingPath, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("invalid purchase must not be held, got %d", rec.Code)
	}
}

func TestFlow_PersistenceFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.status.Store(http.StatusBadRequest)

	env.do(t, http.MethodPut, pendingPath, purchaseBody("NU"))
	rec := env.do(t, http.MethodPost, pendingPath+"/confirm", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	var errResp struct {
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !errResp.Retryable {
		t.Error("expected retryable error")
	}

	env.status.Store(http.StatusOK)
	rec = env.do(t, http.MethodPost, pendingPath+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.appends.Load() != 1 {
		t.Errorf("expected exactly 1 append, got %d", env.appends.Load())
	}
}

func TestCards_WindowAndRanking(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/cards/nu/window?date=2024-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var w domain.WindowResponse
	if err := json.NewDecoder(rec.Body).Decode(&w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.CutDate != "2024-04-06" || w.DueDate != "2024-04-26" || w.DaysToPay != 47 {
		t.Errorf("unexpected window %+v", w)
	}

	rec = env.do(t, http.MethodGet, "/v1/cards/AMEX/window", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unconfigured card, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/cards/NU/window?date=10-03-2024", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/cards/ranking?date=2024-03-10&exclude=bbva", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ranking domain.RankingResponse
	if err := json.NewDecoder(rec.Body).Decode(&ranking); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ranking.Cards) != 1 || ranking.Cards[0].CardID != "NU" {
		t.Errorf("unexpected ranking %+v", ranking.Cards)
	}
}

func TestAuth_RequiresServiceToken(t *testing.T) {
	tokens := service.NewTokenService("test-secret")
	env := newTestEnv(t, tokens)

	rec := env.do(t, http.MethodGet, "/v1/cards/ranking", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", rec.Code)
	}

	env.token = ""
	rec = env.do(t, http.MethodGet, "/v1/cards/ranking", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}

	env.token = "not-a-jwt"
	rec = env.do(t, http.MethodGet, "/v1/cards/ranking", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}

	// Operational endpoints stay open.
	rec = env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}
}

func TestAuth_CallerReachesActionLog(t *testing.T) {
	env := newTestEnv(t, service.NewTokenService("handler-test-secret"))

	env.do(t, http.MethodPut, pendingPath, purchaseBody("BBVA"))
	rec := env.do(t, http.MethodPost, pendingPath+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	entries := env.logs.FilterMessage("purchase action handled").All()
	if len(entries) != 1 {
		t.Fatalf("expected one action log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["caller"] != "telegram-bot" {
		t.Errorf("expected caller telegram-bot, got %v", fields["caller"])
	}
	if fields["outcome"] != domain.OutcomeCancelled {
		t.Errorf("expected outcome cancelled, got %v", fields["outcome"])
	}

	begun := env.logs.FilterMessage("purchase awaiting confirmation").All()
	if len(begun) != 1 || begun[0].ContextMap()["caller"] != "telegram-bot" {
		t.Errorf("expected begin log with caller, got %+v", begun)
	}
}

func TestAuth_RejectsWrongTokenType(t *testing.T) {
	const secret = "handler-test-secret"
	env := newTestEnv(t, service.NewTokenService(secret))

	// Correctly signed, but not a service token.
	claims := service.ServiceClaims{
		Sub:  "telegram-bot",
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	env.token = signed

	rec := env.do(t, http.MethodGet, "/v1/cards/ranking", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Tipo de token inválido" {
		t.Errorf("unexpected error %q", body.Error)
	}

	rejected := env.logs.FilterMessage("service token rejected").All()
	if len(rejected) != 1 || rejected[0].ContextMap()["reason"] != "wrong_type" {
		t.Errorf("expected a wrong_type rejection log, got %+v", rejected)
	}
}

func TestAuth_RejectsMalformedHeader(t *testing.T) {
	env := newTestEnv(t, service.NewTokenService("handler-test-secret"))

	tests := []struct {
		name   string
		header string
		reason string
	}{
		{"missing", "", "missing_token"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "bad_format"},
		{"bearer without token", "Bearer ", "bad_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/cards/ranking", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			last := env.logs.FilterMessage("service token rejected").All()
			if len(last) == 0 || last[len(last)-1].ContextMap()["reason"] != tt.reason {
				t.Errorf("expected reason %s, got %+v", tt.reason, last)
			}
		})
	}
}

func TestCards_ExemptCardHasNoWindow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/cards/debito/window", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
