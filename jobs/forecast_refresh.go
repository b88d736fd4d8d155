package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/recurrence"
)

// TaskForecastRefresh identifies the scheduled forecast refresh task.
const TaskForecastRefresh = "forecast:refresh"

// ForecastRefreshPayload configures one refresh run.
type ForecastRefreshPayload struct {
	MonthsAhead int `json:"months_ahead"`
}

// NewForecastRefreshTask builds the asynq task for a refresh run.
func NewForecastRefreshTask(payload ForecastRefreshPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastRefresh, raw), nil
}

// ForecastRefreshJob walks every rule and extends its forecast window.
// This is the periodic driver the core deliberately does not contain:
// generation stays pull-based, and this job is the caller that pulls.
type ForecastRefreshJob struct {
	engine  RuleRefresher
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// RuleRefresher is the slice of the recurrence service the job drives.
type RuleRefresher interface {
	ListRules(ctx context.Context) ([]recurrence.Rule, error)
	RegenerateInstances(ctx context.Context, ruleID uuid.UUID, monthsAhead int) error
}

// NewForecastRefreshJob wires dependencies for the refresh handler.
func NewForecastRefreshJob(engine RuleRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ForecastRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastRefreshJob{engine: engine, logger: logger, metrics: metrics}
}

// Handle processes forecast refresh tasks. Individual rule failures are
// logged and skipped so one broken rule cannot starve the rest.
func (j *ForecastRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.engine == nil {
		return errors.New("forecast refresh: handler not configured")
	}
	var payload ForecastRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MonthsAhead <= 0 {
		payload.MonthsAhead = recurrence.DefaultMonthsAhead
	}

	tracker := j.metrics.Track(TaskForecastRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	rules, err := j.engine.ListRules(ctx)
	if err != nil {
		resultErr = err
		return err
	}

	var failed int
	for _, rule := range rules {
		if err := j.engine.RegenerateInstances(ctx, rule.ID, payload.MonthsAhead); err != nil {
			failed++
			j.logger.Error("forecast refresh rule failed",
				slog.String("rule_id", rule.ID.String()),
				slog.Any("error", err))
		}
	}
	j.logger.Info("forecast refresh complete",
		slog.Int("rules", len(rules)),
		slog.Int("failed", failed),
		slog.Int("months_ahead", payload.MonthsAhead))
	if failed == len(rules) && failed > 0 {
		resultErr = errors.New("forecast refresh: all rules failed")
		return resultErr
	}
	return nil
}
