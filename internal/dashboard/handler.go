package dashboard

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/recurrence"
)

// Handler exposes dashboard aggregates.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods/{period}", h.periodSummary)
	r.Get("/upcoming", h.upcoming)
}

func (h *Handler) periodSummary(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	summary, err := h.service.PeriodSummary(r.Context(), period)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalid) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("period summary failed", slog.String("period", period), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) upcoming(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, _ = strconv.Atoi(raw)
	}
	items, err := h.service.Upcoming(r.Context(), time.Now(), days)
	if err != nil {
		h.logger.Error("upcoming listing failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}
