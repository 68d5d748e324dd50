package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"timebank/internal/services"
	"timebank/internal/storage"
)

type testServer struct {
	srv      *Server
	walletID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "timebank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	clientID, err := repo.Queries().CreateClient(ctx, "Acme")
	require.NoError(t, err)
	walletID, err := repo.Queries().CreateWallet(ctx, storage.CreateWalletParams{
		ClientID:     clientID,
		Name:         "Retainer",
		CurrencyCode: "EUR",
	})
	require.NoError(t, err)

	ledger := services.NewLedgerService(repo, nil)
	srv := NewServer(":0",
		ledger,
		services.NewTimerService(repo, ledger),
		services.NewImportService(repo, ledger),
		services.NewReportService(repo),
		services.NewTagService(repo),
	)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testServer{srv: srv, walletID: walletID}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-ID", "1")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecordCreditAndBalance(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/credits", ts.walletID), map[string]any{
		"hours": "10",
		"title": "Retainer top-up",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	entry := decode[entryView](t, rec)
	require.Equal(t, "10.00", entry.Hours)
	require.NotZero(t, entry.ID)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/debits", ts.walletID), map[string]any{
		"hours": "2.5",
		"title": "Support work",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	entry = decode[entryView](t, rec)
	require.Equal(t, "-2.50", entry.Hours)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/wallets/%d/balance", ts.walletID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[map[string]any](t, rec)
	require.Equal(t, "7.50", balance["balance"])

	// A write invalidates the cached balance.
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/credits", ts.walletID), map[string]any{
		"hours": "0.5",
		"title": "Extra",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/wallets/%d/balance", ts.walletID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance = decode[map[string]any](t, rec)
	require.Equal(t, "8.00", balance["balance"])
}

func TestRecordEntryRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/credits", ts.walletID), map[string]any{
		"hours": "abc",
		"title": "Broken",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/credits", ts.walletID), map[string]any{
		"hours": "0",
		"title": "Zero",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/wallets/999/credits", map[string]any{
		"hours": "1",
		"title": "Missing wallet",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletEntriesPagination(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/credits", ts.walletID), map[string]any{
			"hours": "1",
			"title": fmt.Sprintf("Entry %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/wallets/%d/entries?page=1&per_page=2", ts.walletID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Entries    []entryView `json:"entries"`
		TotalCount int         `json:"total_count"`
		Page       int         `json:"page"`
		PerPage    int         `json:"per_page"`
	}](t, rec)
	require.Len(t, page.Entries, 2)
	require.Equal(t, 3, page.TotalCount)
	require.Equal(t, 2, page.PerPage)
}

func TestTimerLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/timers", map[string]any{
		"wallet_id": ts.walletID,
		"title":     "Sprint work",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	timer := decode[timerView](t, rec)
	require.Equal(t, "running", timer.Status)
	require.Len(t, timer.Cycles, 1)

	// Second start for the same user conflicts.
	rec = ts.do(t, http.MethodPost, "/timers", map[string]any{
		"wallet_id": ts.walletID,
		"title":     "Another",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/timers/%d/pause", timer.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "paused", decode[timerView](t, rec).Status)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/timers/%d/resume", timer.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/timers/%d/stop", timer.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stopped", decode[timerView](t, rec).Status)

	// Stopping again is an invalid transition.
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/timers/%d/stop", timer.ID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestActiveTimerEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/timers/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Nil(t, body["timer"])

	rec = ts.do(t, http.MethodPost, "/timers", map[string]any{
		"wallet_id": ts.walletID,
		"title":     "Active",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/timers/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[map[string]any](t, rec)
	require.NotNil(t, body["timer"])
}

func TestUserIDHeaderRequired(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/timers", nil)
	rec := httptest.NewRecorder()
	ts.srv.Server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/timers", nil)
	req.Header.Set("X-User-ID", "zero")
	rec = httptest.NewRecorder()
	ts.srv.Server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestImportPlanFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/imports", map[string]any{
		"wallet_id":         ts.walletID,
		"original_filename": "hours.csv",
		"rows": []map[string]any{
			{"reference_date": "2026-01-15", "hours": "3", "title": "Consulting", "tags": "billable"},
			{"reference_date": "", "hours": "x", "title": ""},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	plan := decode[planView](t, rec)
	require.Equal(t, "pending", plan.Status)
	require.Equal(t, 2, plan.TotalRows)
	require.Equal(t, 1, plan.InvalidRows)

	// Confirming with an invalid row is rejected.
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/imports/%d/confirm", plan.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Fix the bad row, then confirm.
	badRow := plan.Rows[1]
	rec = ts.do(t, http.MethodPatch, fmt.Sprintf("/imports/%d/rows/%d", plan.ID, badRow.ID), map[string]any{
		"reference_date": "2026-01-16",
		"hours":          "-1.5",
		"title":          "Correction",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[planRowView](t, rec).IsValid)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/imports/%d/confirm", plan.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan = decode[planView](t, rec)
	require.Equal(t, "confirmed", plan.Status)
	for _, row := range plan.Rows {
		require.NotZero(t, row.LedgerEntryID)
	}

	// Mutations after confirm conflict.
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/imports/%d/rows", plan.ID), map[string]any{
		"reference_date": "2026-01-17", "hours": "1", "title": "Late",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestTagEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/tags", map[string]any{"name": "billable"})
	require.Equal(t, http.StatusCreated, rec.Code)
	tag := decode[tagView](t, rec)
	require.Equal(t, "billable", tag.Name)

	rec = ts.do(t, http.MethodPost, "/tags", map[string]any{"name": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/tags/%d", tag.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReportSummaryOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	for _, payload := range []map[string]any{
		{"hours": "8", "title": "Top-up", "reference_date": "2026-02-01"},
	} {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/credits", ts.walletID), payload)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/wallets/%d/debits", ts.walletID), map[string]any{
		"hours": "3", "title": "Work", "reference_date": "2026-02-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[summaryView](t, rec)
	require.Equal(t, 2, summary.EntryCount)
	require.Equal(t, "8.00", summary.TotalCredits)
	require.Equal(t, "-3.00", summary.TotalDebits)
	require.Equal(t, "5.00", summary.Net)
}
