package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalid wraps all validation failures raised before persistence.
	ErrInvalid = errors.New("recurrence: invalid input")
	// ErrRuleNotFound indicates the referenced rule does not exist.
	ErrRuleNotFound = errors.New("recurrence: rule not found")
	// ErrInstanceNotFound indicates the referenced instance does not exist.
	ErrInstanceNotFound = errors.New("recurrence: instance not found")
)

// Frequency enumerates supported recurrence cadences.
type Frequency string

const (
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// Valid reports whether the frequency is a known cadence.
func (f Frequency) Valid() bool {
	return f == FrequencyMonthly || f == FrequencyYearly
}

// InstanceStatus enumerates instance payment states.
type InstanceStatus string

const (
	StatusDue  InstanceStatus = "DUE"
	StatusPaid InstanceStatus = "PAID"
)

// Rule is the template for a periodic financial obligation: a
// subscription or a planned investment contribution.
type Rule struct {
	ID             uuid.UUID
	Name           string
	Frequency      Frequency
	DueDay         int
	ExpectedAmount decimal.Decimal
	StartDate      time.Time
	EndDate        *time.Time
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Instance is one dated occurrence generated from a Rule.
//
// ExpectedAmount is copied from the rule at generation time and never
// changes afterwards. ActualAmount is set only at settlement, so
// expected-vs-actual variance stays reportable.
type Instance struct {
	ID             uuid.UUID
	RuleID         uuid.UUID
	Period         string
	DueDate        time.Time
	ExpectedAmount decimal.Decimal
	ActualAmount   *decimal.Decimal
	Status         InstanceStatus
	PaidDate       *time.Time
	TransactionID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Amount returns the settled amount when present, the forecast amount
// otherwise.
func (i Instance) Amount() decimal.Decimal {
	if i.ActualAmount != nil {
		return *i.ActualAmount
	}
	return i.ExpectedAmount
}

// --- Input DTOs ---

// CreateRuleInput captures rule creation parameters.
type CreateRuleInput struct {
	Name              string
	Frequency         Frequency
	DueDay            int
	ExpectedAmount    decimal.Decimal
	StartDate         time.Time
	EndDate           *time.Time
	Notes             string
	GenerateInstances bool
	MonthsAhead       int
}

// Validate ensures rule parameters meet the invariants before any
// persistence happens.
func (in CreateRuleInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	if !in.Frequency.Valid() {
		return fmt.Errorf("%w: frequency must be MONTHLY or YEARLY", ErrInvalid)
	}
	if in.DueDay < 1 || in.DueDay > 31 {
		return fmt.Errorf("%w: due day %d out of range 1-31", ErrInvalid, in.DueDay)
	}
	if !in.ExpectedAmount.IsPositive() {
		return fmt.Errorf("%w: expected amount must be positive", ErrInvalid)
	}
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start date required", ErrInvalid)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalid)
	}
	return nil
}

// UpdateRuleInput captures mutable rule fields. Amount and schedule
// changes affect future generations only; existing instances keep the
// forecast they were created with. Frequency must match the stored
// rule; changing it is rejected rather than silently ignored.
type UpdateRuleInput struct {
	RuleID         uuid.UUID
	Name           string
	Frequency      Frequency
	DueDay         int
	ExpectedAmount decimal.Decimal
	StartDate      time.Time
	EndDate        *time.Time
	Notes          string
}

// Validate checks update parameters against the same rule invariants.
func (in UpdateRuleInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	if !in.Frequency.Valid() {
		return fmt.Errorf("%w: frequency must be MONTHLY or YEARLY", ErrInvalid)
	}
	if in.DueDay < 1 || in.DueDay > 31 {
		return fmt.Errorf("%w: due day %d out of range 1-31", ErrInvalid, in.DueDay)
	}
	if !in.ExpectedAmount.IsPositive() {
		return fmt.Errorf("%w: expected amount must be positive", ErrInvalid)
	}
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start date required", ErrInvalid)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalid)
	}
	return nil
}

// MarkPaidInput captures settlement parameters for one instance.
type MarkPaidInput struct {
	InstanceID        uuid.UUID
	PaidDate          time.Time
	ActualAmount      *decimal.Decimal
	RecordTransaction bool
}

// Validate checks settlement parameters.
func (in MarkPaidInput) Validate() error {
	if in.PaidDate.IsZero() {
		return fmt.Errorf("%w: paid date required", ErrInvalid)
	}
	if in.ActualAmount != nil && !in.ActualAmount.IsPositive() {
		return fmt.Errorf("%w: actual amount must be positive", ErrInvalid)
	}
	return nil
}
