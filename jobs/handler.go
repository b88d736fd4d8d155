package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/recurrence"
)

// Enqueuer is the slice of Client the HTTP handler needs.
type Enqueuer interface {
	EnqueueForecastRefresh(ctx context.Context, payload ForecastRefreshPayload) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*Client)(nil)

// Handler exposes ad-hoc job triggers over HTTP, so the forecast window
// can be refreshed right after bulk rule edits instead of waiting for
// the next cron tick.
type Handler struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHandler constructs the jobs handler.
func NewHandler(enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{enqueuer: enqueuer, logger: logger}
}

// MountRoutes registers the job trigger routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/forecast/refresh", h.enqueueForecastRefresh)
}

type enqueueForecastRefreshRequest struct {
	MonthsAhead int `json:"months_ahead"`
}

type enqueueForecastRefreshResponse struct {
	TaskID      string `json:"task_id"`
	Queue       string `json:"queue"`
	MonthsAhead int    `json:"months_ahead"`
}

func (h *Handler) enqueueForecastRefresh(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an empty POST refreshes with the default
	// horizon.
	var req enqueueForecastRefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.MonthsAhead < 0 || req.MonthsAhead > recurrence.MaxMonthsAhead {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", "months_ahead out of range")
		return
	}
	payload := ForecastRefreshPayload{MonthsAhead: req.MonthsAhead}
	if payload.MonthsAhead == 0 {
		payload.MonthsAhead = recurrence.DefaultMonthsAhead
	}

	info, err := h.enqueuer.EnqueueForecastRefresh(r.Context(), payload)
	if err != nil {
		h.logger.Error("forecast refresh enqueue failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "enqueue failed", "")
		return
	}
	h.logger.Info("forecast refresh enqueued",
		slog.String("task_id", info.ID),
		slog.Int("months_ahead", payload.MonthsAhead))
	httpx.JSON(w, http.StatusAccepted, enqueueForecastRefreshResponse{
		TaskID:      info.ID,
		Queue:       info.Queue,
		MonthsAhead: payload.MonthsAhead,
	})
}
