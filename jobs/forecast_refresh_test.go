package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/recurrence"
)

type fakeRefresher struct {
	rules    []recurrence.Rule
	listErr  error
	failFor  map[uuid.UUID]error
	regenFor []uuid.UUID
	horizons []int
}

func (f *fakeRefresher) ListRules(ctx context.Context) ([]recurrence.Rule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rules, nil
}

func (f *fakeRefresher) RegenerateInstances(ctx context.Context, ruleID uuid.UUID, monthsAhead int) error {
	f.regenFor = append(f.regenFor, ruleID)
	f.horizons = append(f.horizons, monthsAhead)
	if err, ok := f.failFor[ruleID]; ok {
		return err
	}
	return nil
}

func refreshTask(t *testing.T, payload ForecastRefreshPayload) *asynq.Task {
	t.Helper()
	task, err := NewForecastRefreshTask(payload)
	require.NoError(t, err)
	return task
}

func TestForecastRefreshRegeneratesEveryRule(t *testing.T) {
	refresher := &fakeRefresher{
		rules: []recurrence.Rule{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}},
	}
	job := NewForecastRefreshJob(refresher, nil, nil)

	err := job.Handle(context.Background(), refreshTask(t, ForecastRefreshPayload{MonthsAhead: 6}))
	require.NoError(t, err)
	require.Len(t, refresher.regenFor, 3)
	for _, horizon := range refresher.horizons {
		require.Equal(t, 6, horizon)
	}
}

func TestForecastRefreshDefaultsHorizon(t *testing.T) {
	refresher := &fakeRefresher{rules: []recurrence.Rule{{ID: uuid.New()}}}
	job := NewForecastRefreshJob(refresher, nil, nil)

	err := job.Handle(context.Background(), refreshTask(t, ForecastRefreshPayload{}))
	require.NoError(t, err)
	require.Equal(t, []int{recurrence.DefaultMonthsAhead}, refresher.horizons)
}

func TestForecastRefreshToleratesPartialFailure(t *testing.T) {
	broken := uuid.New()
	refresher := &fakeRefresher{
		rules:   []recurrence.Rule{{ID: broken}, {ID: uuid.New()}},
		failFor: map[uuid.UUID]error{broken: errors.New("boom")},
	}
	job := NewForecastRefreshJob(refresher, nil, nil)

	err := job.Handle(context.Background(), refreshTask(t, ForecastRefreshPayload{MonthsAhead: 3}))
	require.NoError(t, err, "one broken rule must not fail the run")
	require.Len(t, refresher.regenFor, 2)
}

func TestForecastRefreshFailsWhenAllRulesFail(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	refresher := &fakeRefresher{
		rules: []recurrence.Rule{{ID: a}, {ID: b}},
		failFor: map[uuid.UUID]error{
			a: errors.New("boom"),
			b: errors.New("boom"),
		},
	}
	job := NewForecastRefreshJob(refresher, nil, nil)

	err := job.Handle(context.Background(), refreshTask(t, ForecastRefreshPayload{MonthsAhead: 3}))
	require.Error(t, err)
}

func TestForecastRefreshListFailure(t *testing.T) {
	refresher := &fakeRefresher{listErr: errors.New("db down")}
	job := NewForecastRefreshJob(refresher, nil, nil)

	err := job.Handle(context.Background(), refreshTask(t, ForecastRefreshPayload{}))
	require.Error(t, err)
}

func TestForecastRefreshBadPayloadSkipsRetry(t *testing.T) {
	refresher := &fakeRefresher{rules: []recurrence.Rule{{ID: uuid.New()}}}
	job := NewForecastRefreshJob(refresher, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskForecastRefresh, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, refresher.regenFor)
}
