package loanhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/trancheflow/trancheflow/internal/loan"
)

func newTestHandler(t *testing.T) (*Handler, *loan.SnapshotStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := loan.NewSnapshotStore(client, time.Hour)
	service := loan.NewService(nil, nil)
	return NewHandler(nil, service, store, nil, 100_000), store
}

func newTestRouter(t *testing.T) (chi.Router, *loan.SnapshotStore) {
	t.Helper()
	handler, store := newTestHandler(t)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, store
}

const scheduleBody = `{
	"disbursements": [{"date": "2025-01-01", "amount": 1000000}],
	"default_annual_rate": 0.084,
	"base_payment": 25000,
	"start_date": "2025-01-01",
	"max_periods": 216,
	"simple_phase_years": 3
}`

func postJSON(t *testing.T, r chi.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBuildScheduleEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := postJSON(t, r, "/loan/schedule", scheduleBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var result loan.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Schedule)
	require.True(t, result.Summary.Retired)
	require.InDelta(t, 7_000, result.Schedule[0].InterestAccrued, 1e-6)
}

func TestBuildScheduleEndpointRejectsMissingDisbursements(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{"start_date": "2025-01-01", "max_periods": 216, "simple_phase_years": 3}`
	rec := postJSON(t, r, "/loan/schedule", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Disbursements")
}

func TestBuildScheduleEndpointRejectsBadDate(t *testing.T) {
	r, _ := newTestRouter(t)
	body := strings.Replace(scheduleBody, "2025-01-01", "01/15/2025", 1)
	rec := postJSON(t, r, "/loan/schedule", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}

func TestBuildScheduleEndpointRejectsMalformedJSON(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := postJSON(t, r, "/loan/schedule", "{")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportScheduleEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := postJSON(t, r, "/loan/schedule/export", scheduleBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Greater(t, len(lines), 2)
	require.True(t, strings.HasPrefix(lines[0], "Period,Date"))
}

func TestTargetPaymentEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{"schedule": ` + scheduleBody + `, "target_periods": 120}`
	rec := postJSON(t, r, "/loan/target-payment", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result loan.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Found)
	require.Greater(t, result.Payment, 0)
}

func TestTargetPaymentEndpointEnforcesSearchCap(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{"schedule": ` + scheduleBody + `, "target_periods": 120, "upper_bound": 5000000}`
	rec := postJSON(t, r, "/loan/target-payment", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "upper_bound")
}

func TestSensitivityEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{"schedule": ` + scheduleBody + `, "payments": [20000, 30000]}`
	rec := postJSON(t, r, "/loan/sensitivity", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Outcomes []loan.PaymentOutcome `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Outcomes, 2)
	require.Equal(t, 20_000.0, payload.Outcomes[0].Payment)
}

func TestGetSnapshotNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/loan/snapshots/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSnapshotReturnsStoredState(t *testing.T) {
	r, store := newTestRouter(t)
	snap, err := store.Create(context.Background(), loan.KindSchedule, loan.ScheduleRequest{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/loan/snapshots/"+snap.ID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var loaded loan.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	require.Equal(t, snap.ID, loaded.ID)
	require.Equal(t, loan.SnapshotPending, loaded.Status)
}

func TestExportSnapshotRequiresReadySchedule(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	snap, err := store.Create(ctx, loan.KindSchedule, loan.ScheduleRequest{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/loan/snapshots/"+snap.ID+"/export", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportSnapshotWritesCSV(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	snap, err := store.Create(ctx, loan.KindSchedule, loan.ScheduleRequest{})
	require.NoError(t, err)
	result := loan.RunResult{Schedule: []loan.PeriodRecord{{Period: 1, Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}}}
	require.NoError(t, store.SaveResult(ctx, snap.ID, result))

	req := httptest.NewRequest(http.MethodGet, "/loan/snapshots/"+snap.ID+"/export", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "2025-01-01")
}

func TestSubmitScheduleRejectsInvalidRunBeforeQueueing(t *testing.T) {
	r, _ := newTestRouter(t)
	// Validation fails before any snapshot or task is created, so no queue
	// client is needed.
	invalid := `{
		"disbursements": [{"date": "2025-01-01", "amount": 1000000}],
		"default_annual_rate": 0.084,
		"base_payment": 25000,
		"start_date": "2025-01-01",
		"max_periods": 1500,
		"simple_phase_years": 3
	}`
	rec := postJSON(t, r, "/loan/snapshots/schedule", invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
