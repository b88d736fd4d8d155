// Package dashboard aggregates recurring instances by period for
// reporting. It consumes the recurrence core through its repository
// boundary and owns no instance state itself.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/recurrence"
)

// InstanceSource is the slice of the recurrence boundary the dashboard
// reads from.
type InstanceSource interface {
	GetInstancesByPeriod(ctx context.Context, period string) ([]recurrence.Instance, error)
	ListDueInstances(ctx context.Context) ([]recurrence.Instance, error)
}

// Summary holds per-period aggregates.
type Summary struct {
	Period        string          `json:"period"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`
	ActualTotal   decimal.Decimal `json:"actual_total"`
	DueCount      int             `json:"due_count"`
	PaidCount     int             `json:"paid_count"`
}

// UpcomingItem is one entry in the due-soon listing.
type UpcomingItem struct {
	InstanceID string          `json:"instance_id"`
	RuleID     string          `json:"rule_id"`
	Period     string          `json:"period"`
	DueDate    string          `json:"due_date"`
	Amount     decimal.Decimal `json:"amount"`
}

// Service computes period summaries with a short-lived redis cache and
// singleflight to collapse concurrent recomputes of the same period.
type Service struct {
	source InstanceSource
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewService constructs the dashboard service. redis may be nil; the
// service then computes on every call.
func NewService(source InstanceSource, redisClient *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{source: source, redis: redisClient, ttl: ttl}
}

// PeriodSummary aggregates the instances bucketed under one period.
func (s *Service) PeriodSummary(ctx context.Context, period string) (Summary, error) {
	key := "dashboard:summary:" + period

	if s.redis != nil {
		var cached Summary
		err := cache.GetJSON(ctx, s.redis, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			return Summary{}, err
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		summary, err := s.computeSummary(ctx, period)
		if err != nil {
			return Summary{}, err
		}
		if s.redis != nil {
			if err := cache.SetJSON(ctx, s.redis, key, summary, s.ttl); err != nil {
				return Summary{}, fmt.Errorf("dashboard: cache summary: %w", err)
			}
		}
		return summary, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

func (s *Service) computeSummary(ctx context.Context, period string) (Summary, error) {
	instances, err := s.source.GetInstancesByPeriod(ctx, period)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Period:        period,
		ExpectedTotal: decimal.Zero,
		ActualTotal:   decimal.Zero,
	}
	for _, inst := range instances {
		summary.ExpectedTotal = summary.ExpectedTotal.Add(inst.ExpectedAmount)
		if inst.Status == recurrence.StatusPaid {
			summary.PaidCount++
			summary.ActualTotal = summary.ActualTotal.Add(inst.Amount())
		} else {
			summary.DueCount++
		}
	}
	return summary, nil
}

// Upcoming lists unsettled instances due within the given number of
// days from now.
func (s *Service) Upcoming(ctx context.Context, now time.Time, days int) ([]UpcomingItem, error) {
	if days <= 0 {
		days = 30
	}
	due, err := s.source.ListDueInstances(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.AddDate(0, 0, days)
	var out []UpcomingItem
	for _, inst := range due {
		if inst.DueDate.After(cutoff) {
			continue
		}
		out = append(out, UpcomingItem{
			InstanceID: inst.ID.String(),
			RuleID:     inst.RuleID.String(),
			Period:     inst.Period,
			DueDate:    inst.DueDate.Format("2006-01-02"),
			Amount:     inst.Amount(),
		})
	}
	return out, nil
}
