package sheets_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/sheets"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func testRow() domain.PurchaseRow {
	return domain.PurchaseRow{
		Description: "Televisor",
		User:        "ana",
		Date:        "10/03/2024",
		Status:      "Activo",
		Amount:      decimal.RequireFromString("1299.9"),
		Months:      12,
		Bank:        "NU",
	}
}

func newClient(srv *httptest.Server) *sheets.Client {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return sheets.NewClient(
		srv.Client(),
		srv.URL,
		"sheet-123",
		"Compras!A:G",
		"tok",
		resilience.NewCircuitBreaker("sheets-test", zap.NewNop()),
		cfg,
		zap.NewNop(),
	)
}

func TestAppendPurchase_SendsRow(t *testing.T) {
	var gotBody struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v4/spreadsheets/sheet-123/values/Compras!A:G:append" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" || r.URL.Query().Get("insertDataOption") != "INSERT_ROWS" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Compras!A10:G10","updatedRows":1}}`))
	}))
	defer srv.Close()

	if err := newClient(srv).AppendPurchase(context.Background(), testRow()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 7 {
		t.Fatalf("expected one row of 7 cells, got %v", gotBody.Values)
	}
	row := gotBody.Values[0]
	if row[0] != "Televisor" || row[3] != "Activo" || row[4] != "1299.90" || row[6] != "NU" {
		t.Errorf("unexpected row cells %v", row)
	}
	if months, ok := row[5].(float64); !ok || months != 12 {
		t.Errorf("expected months 12, got %v", row[5])
	}
}

func TestAppendPurchase_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newClient(srv).AppendPurchase(context.Background(), testRow()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestAppendPurchase_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Unable to parse range"}}`))
	}))
	defer srv.Close()

	err := newClient(srv).AppendPurchase(context.Background(), testRow())
	var extErr *domain.ErrExternalService
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if extErr.Service != "sheets" {
		t.Errorf("expected service sheets, got %s", extErr.Service)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestLogRecorder_AlwaysSucceeds(t *testing.T) {
	r := sheets.NewLogRecorder(zap.NewNop())
	if err := r.AppendPurchase(context.Background(), testRow()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
