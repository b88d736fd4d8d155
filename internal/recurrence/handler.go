package recurrence

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Handler exposes the rule and instance lifecycle over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers recurrence routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.listRules)
		r.Post("/", h.createRule)
		r.Get("/{id}", h.getRule)
		r.Put("/{id}", h.updateRule)
		r.Delete("/{id}", h.deleteRule)
		r.Get("/{id}/instances", h.listRuleInstances)
		r.Post("/{id}/regenerate", h.regenerate)
	})
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", h.listInstancesByPeriod)
		r.Get("/due", h.listDueInstances)
		r.Post("/{id}/pay", h.markPaid)
		r.Post("/{id}/unpay", h.markDue)
	})
}

type ruleRequest struct {
	Name              string  `json:"name" validate:"required"`
	Frequency         string  `json:"frequency" validate:"required,oneof=MONTHLY YEARLY"`
	DueDay            int     `json:"due_day" validate:"required,gte=1,lte=31"`
	ExpectedAmount    string  `json:"expected_amount" validate:"required"`
	StartDate         string  `json:"start_date" validate:"required"`
	EndDate           *string `json:"end_date,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	GenerateInstances *bool   `json:"generate_instances,omitempty"`
	MonthsAhead       int     `json:"months_ahead,omitempty" validate:"omitempty,gte=1,lte=120"`
}

type ruleResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Frequency      string  `json:"frequency"`
	DueDay         int     `json:"due_day"`
	ExpectedAmount string  `json:"expected_amount"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

type instanceResponse struct {
	ID             string  `json:"id"`
	RuleID         string  `json:"rule_id"`
	Period         string  `json:"period"`
	DueDate        string  `json:"due_date"`
	ExpectedAmount string  `json:"expected_amount"`
	ActualAmount   *string `json:"actual_amount,omitempty"`
	Status         string  `json:"status"`
	PaidDate       *string `json:"paid_date,omitempty"`
	TransactionID  *string `json:"transaction_id,omitempty"`
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toCreateInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule, err := h.service.CreateRule(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRuleResponse(rule))
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.service.GetRule(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toCreateInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule, err := h.service.UpdateRule(r.Context(), UpdateRuleInput{
		RuleID:         id,
		Name:           input.Name,
		Frequency:      input.Frequency,
		DueDay:         input.DueDay,
		ExpectedAmount: input.ExpectedAmount,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		Notes:          input.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listRuleInstances(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	instances, err := h.service.GetInstancesByRule(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInstanceResponses(instances))
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	monthsAhead := 0
	if raw := r.URL.Query().Get("months_ahead"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "months_ahead must be an integer")
			return
		}
		monthsAhead = n
	}
	if err := h.service.RegenerateInstances(r.Context(), id, monthsAhead); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listInstancesByPeriod(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period query parameter required")
		return
	}
	instances, err := h.service.GetInstancesByPeriod(r.Context(), period)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInstanceResponses(instances))
}

func (h *Handler) listDueInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.service.ListDueInstances(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInstanceResponses(instances))
}

type markPaidRequest struct {
	PaidDate          string  `json:"paid_date" validate:"required"`
	ActualAmount      *string `json:"actual_amount,omitempty"`
	RecordTransaction bool    `json:"record_transaction,omitempty"`
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req markPaidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	paidDate, err := time.Parse(dateLayout, req.PaidDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paid_date must be YYYY-MM-DD")
		return
	}
	input := MarkPaidInput{InstanceID: id, PaidDate: paidDate, RecordTransaction: req.RecordTransaction}
	if req.ActualAmount != nil {
		amount, err := decimal.NewFromString(*req.ActualAmount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "actual_amount must be a decimal string")
			return
		}
		input.ActualAmount = &amount
	}
	inst, err := h.service.MarkInstancePaid(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInstanceResponse(inst))
}

func (h *Handler) markDue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	inst, err := h.service.MarkInstanceDue(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInstanceResponse(inst))
}

func (h *Handler) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRuleNotFound), errors.Is(err, ErrInstanceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("recurrence request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (req ruleRequest) toCreateInput() (CreateRuleInput, error) {
	amount, err := decimal.NewFromString(req.ExpectedAmount)
	if err != nil {
		return CreateRuleInput{}, errors.New("expected_amount must be a decimal string")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return CreateRuleInput{}, errors.New("start_date must be YYYY-MM-DD")
	}
	var end *time.Time
	if req.EndDate != nil {
		d, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			return CreateRuleInput{}, errors.New("end_date must be YYYY-MM-DD")
		}
		end = &d
	}
	generate := true
	if req.GenerateInstances != nil {
		generate = *req.GenerateInstances
	}
	return CreateRuleInput{
		Name:              req.Name,
		Frequency:         Frequency(req.Frequency),
		DueDay:            req.DueDay,
		ExpectedAmount:    amount,
		StartDate:         start,
		EndDate:           end,
		Notes:             req.Notes,
		GenerateInstances: generate,
		MonthsAhead:       req.MonthsAhead,
	}, nil
}

func toRuleResponse(rule Rule) ruleResponse {
	resp := ruleResponse{
		ID:             rule.ID.String(),
		Name:           rule.Name,
		Frequency:      string(rule.Frequency),
		DueDay:         rule.DueDay,
		ExpectedAmount: rule.ExpectedAmount.StringFixed(2),
		StartDate:      rule.StartDate.Format(dateLayout),
		Notes:          rule.Notes,
	}
	if rule.EndDate != nil {
		s := rule.EndDate.Format(dateLayout)
		resp.EndDate = &s
	}
	return resp
}

func toInstanceResponse(inst Instance) instanceResponse {
	resp := instanceResponse{
		ID:             inst.ID.String(),
		RuleID:         inst.RuleID.String(),
		Period:         inst.Period,
		DueDate:        inst.DueDate.Format(dateLayout),
		ExpectedAmount: inst.ExpectedAmount.StringFixed(2),
		Status:         string(inst.Status),
	}
	if inst.ActualAmount != nil {
		s := inst.ActualAmount.StringFixed(2)
		resp.ActualAmount = &s
	}
	if inst.PaidDate != nil {
		s := inst.PaidDate.Format(dateLayout)
		resp.PaidDate = &s
	}
	if inst.TransactionID != nil {
		s := inst.TransactionID.String()
		resp.TransactionID = &s
	}
	return resp
}

func toInstanceResponses(instances []Instance) []instanceResponse {
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, toInstanceResponse(inst))
	}
	return out
}
