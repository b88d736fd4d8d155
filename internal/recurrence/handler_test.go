package recurrence

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	svc := newTestService(newMemoryRepo(), fixedClock(2024, time.January, 1))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	NewHandler(logger, svc).MountRoutes(router)
	return router, svc
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerUpdateRuleValidatesBody(t *testing.T) {
	router, svc := newTestRouter(t)
	rule, err := svc.CreateRule(context.Background(), validCreateInput())
	require.NoError(t, err)

	// An unknown frequency must be rejected, not silently dropped.
	rec := doJSON(t, router, http.MethodPut, "/rules/"+rule.ID.String(),
		`{"name":"Streaming","frequency":"WEEKLY","due_day":31,"expected_amount":"15.99","start_date":"2024-01-15"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/rules/"+rule.ID.String(),
		`{"name":"","frequency":"MONTHLY","due_day":31,"expected_amount":"15.99","start_date":"2024-01-15"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUpdateRuleRejectsFrequencyChange(t *testing.T) {
	router, svc := newTestRouter(t)
	rule, err := svc.CreateRule(context.Background(), validCreateInput())
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPut, "/rules/"+rule.ID.String(),
		`{"name":"Streaming","frequency":"YEARLY","due_day":31,"expected_amount":"15.99","start_date":"2024-01-15"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	unchanged, err := svc.GetRule(context.Background(), rule.ID)
	require.NoError(t, err)
	require.Equal(t, FrequencyMonthly, unchanged.Frequency)
}

func TestHandlerUpdateRuleHappyPath(t *testing.T) {
	router, svc := newTestRouter(t)
	rule, err := svc.CreateRule(context.Background(), validCreateInput())
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPut, "/rules/"+rule.ID.String(),
		`{"name":"Streaming Plus","frequency":"MONTHLY","due_day":20,"expected_amount":"19.99","start_date":"2024-01-15"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := svc.GetRule(context.Background(), rule.ID)
	require.NoError(t, err)
	require.Equal(t, "Streaming Plus", updated.Name)
	require.Equal(t, 20, updated.DueDay)
}
