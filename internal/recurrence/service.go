package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clock supplies "today" so forecasts are deterministic under test.
type Clock func() time.Time

// SettlementLedger records a realized transaction when an instance is
// settled. Implemented by the ledger service; optional.
type SettlementLedger interface {
	RecordSettlement(ctx context.Context, description string, amount decimal.Decimal, paidAt time.Time) (uuid.UUID, error)
}

// MetricsRecorder receives domain counters. Implemented by
// observability.Metrics; optional.
type MetricsRecorder interface {
	AddInstancesGenerated(n int)
	IncInstancesSettled()
}

// Service orchestrates rule lifecycle: creation with initial forecast,
// regeneration, settlement, and deletion. All shared state lives in the
// injected repository.
type Service struct {
	repo    Repository
	clock   Clock
	logger  *slog.Logger
	ledger  SettlementLedger
	metrics MetricsRecorder
}

// NewService constructs the lifecycle service.
func NewService(repo Repository, clock Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, logger: logger}
}

// SetSettlementLedger injects the ledger hook used to realize settled
// instances as transactions.
func (s *Service) SetSettlementLedger(ledger SettlementLedger) {
	s.ledger = ledger
}

// SetMetricsRecorder injects the domain metrics hook.
func (s *Service) SetMetricsRecorder(metrics MetricsRecorder) {
	s.metrics = metrics
}

// CreateRule persists a new rule and, unless disabled, its initial
// forecast batch in the same transaction.
func (s *Service) CreateRule(ctx context.Context, input CreateRuleInput) (Rule, error) {
	if err := input.Validate(); err != nil {
		return Rule{}, err
	}
	monthsAhead := input.MonthsAhead
	if monthsAhead == 0 {
		monthsAhead = DefaultMonthsAhead
	}

	rule := Rule{
		ID:             uuid.New(),
		Name:           input.Name,
		Frequency:      input.Frequency,
		DueDay:         input.DueDay,
		ExpectedAmount: input.ExpectedAmount,
		StartDate:      truncateDate(input.StartDate),
		EndDate:        input.EndDate,
		Notes:          input.Notes,
	}

	var instances []Instance
	if input.GenerateInstances {
		var err error
		instances, err = Generate(rule, monthsAhead, s.clock())
		if err != nil {
			return Rule{}, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreateRule(ctx, rule); err != nil {
			return err
		}
		return tx.CreateInstances(ctx, instances)
	})
	if err != nil {
		return Rule{}, err
	}

	if s.metrics != nil {
		s.metrics.AddInstancesGenerated(len(instances))
	}
	s.logger.Info("rule created",
		slog.String("rule_id", rule.ID.String()),
		slog.String("frequency", string(rule.Frequency)),
		slog.Int("instances", len(instances)))
	return s.repo.GetRule(ctx, rule.ID)
}

// UpdateRule mutates the rule template. Already generated instances are
// untouched; the next regeneration picks the changes up.
func (s *Service) UpdateRule(ctx context.Context, input UpdateRuleInput) (Rule, error) {
	if err := input.Validate(); err != nil {
		return Rule{}, err
	}
	rule, err := s.repo.GetRule(ctx, input.RuleID)
	if err != nil {
		return Rule{}, err
	}
	if input.Frequency != rule.Frequency {
		return Rule{}, fmt.Errorf("%w: frequency is immutable", ErrInvalid)
	}
	rule.Name = input.Name
	rule.DueDay = input.DueDay
	rule.ExpectedAmount = input.ExpectedAmount
	rule.StartDate = truncateDate(input.StartDate)
	rule.EndDate = input.EndDate
	rule.Notes = input.Notes

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRule(ctx, rule)
	})
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// GetRule loads one rule.
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (Rule, error) {
	return s.repo.GetRule(ctx, id)
}

// ListRules returns all rules.
func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	return s.repo.ListRules(ctx)
}

// DeleteRule removes the rule and every instance it owns, children
// first, in one transaction.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetRule(ctx, id); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteInstancesByRule(ctx, id); err != nil {
			return err
		}
		return tx.DeleteRule(ctx, id)
	})
}

// RegenerateInstances re-forecasts a rule's window as an upsert keyed
// by period: missing periods are inserted as DUE, DUE instances that
// fell out of the window are pruned, and settled instances are never
// deleted. The whole diff applies in one transaction so readers never
// observe a rule stripped of its instances mid-flight.
func (s *Service) RegenerateInstances(ctx context.Context, ruleID uuid.UUID, monthsAhead int) error {
	if monthsAhead == 0 {
		monthsAhead = DefaultMonthsAhead
	}
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	desired, err := Generate(rule, monthsAhead, s.clock())
	if err != nil {
		return err
	}

	var inserted int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.ListInstancesByRule(ctx, ruleID)
		if err != nil {
			return err
		}
		byPeriod := make(map[string]Instance, len(existing))
		for _, inst := range existing {
			byPeriod[inst.Period] = inst
		}
		wanted := make(map[string]struct{}, len(desired))
		var missing []Instance
		for _, inst := range desired {
			wanted[inst.Period] = struct{}{}
			if _, ok := byPeriod[inst.Period]; !ok {
				missing = append(missing, inst)
			}
		}
		for _, inst := range existing {
			if _, ok := wanted[inst.Period]; ok {
				continue
			}
			if inst.Status == StatusPaid {
				continue
			}
			if err := tx.DeleteInstance(ctx, inst.ID); err != nil {
				return err
			}
		}
		inserted = len(missing)
		return tx.CreateInstances(ctx, missing)
	})
	if err != nil {
		return fmt.Errorf("regenerate instances: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AddInstancesGenerated(inserted)
	}
	s.logger.Info("instances regenerated",
		slog.String("rule_id", ruleID.String()),
		slog.Int("months_ahead", monthsAhead),
		slog.Int("inserted", inserted))
	return nil
}

// MarkInstancePaid settles an instance. Re-confirming an already PAID
// instance is allowed and refreshes the paid date and actual amount.
// The ledger settlement and the instance update run in one transaction:
// the ledger repository picks the open transaction off the context, so a
// failed update rolls the settlement row back with it.
func (s *Service) MarkInstancePaid(ctx context.Context, input MarkPaidInput) (Instance, error) {
	if err := input.Validate(); err != nil {
		return Instance{}, err
	}
	inst, err := s.repo.GetInstance(ctx, input.InstanceID)
	if err != nil {
		return Instance{}, err
	}

	paidDate := truncateDate(input.PaidDate)
	inst.Status = StatusPaid
	inst.PaidDate = &paidDate
	inst.ActualAmount = input.ActualAmount

	var ruleName string
	recordTransaction := input.RecordTransaction && s.ledger != nil
	if recordTransaction {
		rule, err := s.repo.GetRule(ctx, inst.RuleID)
		if err != nil {
			return Instance{}, err
		}
		ruleName = rule.Name
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if recordTransaction {
			txID, err := s.ledger.RecordSettlement(ctx, ruleName, inst.Amount(), paidDate)
			if err != nil {
				return fmt.Errorf("record settlement: %w", err)
			}
			inst.TransactionID = &txID
		}
		return tx.UpdateInstance(ctx, inst)
	})
	if err != nil {
		return Instance{}, err
	}
	if s.metrics != nil {
		s.metrics.IncInstancesSettled()
	}
	return inst, nil
}

// MarkInstanceDue reverts a settled instance to DUE, clearing the paid
// date and the settled amount so the forecast figure shows again. The
// transaction link, if any, is dropped; the transaction itself is not
// touched.
func (s *Service) MarkInstanceDue(ctx context.Context, id uuid.UUID) (Instance, error) {
	inst, err := s.repo.GetInstance(ctx, id)
	if err != nil {
		return Instance{}, err
	}
	inst.Status = StatusDue
	inst.PaidDate = nil
	inst.ActualAmount = nil
	inst.TransactionID = nil
	if err := s.repo.UpdateInstance(ctx, inst); err != nil {
		return Instance{}, err
	}
	return inst, nil
}

// ListDueInstances returns every unsettled instance ordered by due date.
func (s *Service) ListDueInstances(ctx context.Context) ([]Instance, error) {
	return s.repo.ListDueInstances(ctx)
}

// GetInstancesByPeriod returns the instances bucketed under a period
// string, validating its shape first.
func (s *Service) GetInstancesByPeriod(ctx context.Context, period string) ([]Instance, error) {
	p, err := ParsePeriod(normalizePeriodInput(period))
	if err != nil {
		return nil, err
	}
	return s.repo.ListInstancesByPeriod(ctx, p.String())
}

// GetInstancesByRule returns all instances owned by a rule.
func (s *Service) GetInstancesByRule(ctx context.Context, ruleID uuid.UUID) ([]Instance, error) {
	if _, err := s.repo.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.repo.ListInstancesByRule(ctx, ruleID)
}
