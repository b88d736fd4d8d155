package recurrence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func monthlyRule(dueDay int, start time.Time, end *time.Time) Rule {
	return Rule{
		ID:             uuid.New(),
		Name:           "Internet",
		Frequency:      FrequencyMonthly,
		DueDay:         dueDay,
		ExpectedAmount: decimal.RequireFromString("49.90"),
		StartDate:      start,
		EndDate:        end,
	}
}

func yearlyRule(dueDay int, start time.Time, end *time.Time) Rule {
	r := monthlyRule(dueDay, start, end)
	r.Name = "Insurance"
	r.Frequency = FrequencyYearly
	return r
}

func dueDates(instances []Instance) []time.Time {
	out := make([]time.Time, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.DueDate)
	}
	return out
}

func TestGenerateMonthlyClampsShortMonths(t *testing.T) {
	rule := monthlyRule(31, date(2024, time.January, 15), nil)

	instances, err := Generate(rule, 2, date(2024, time.January, 1))
	require.NoError(t, err)

	require.Equal(t, []time.Time{
		date(2024, time.January, 31),
		date(2024, time.February, 29), // leap year
		date(2024, time.March, 31),
	}, dueDates(instances))
}

func TestGenerateMonthlyClampsFebruaryNonLeap(t *testing.T) {
	rule := monthlyRule(31, date(2023, time.January, 1), nil)

	instances, err := Generate(rule, 1, date(2023, time.February, 1))
	require.NoError(t, err)

	require.Equal(t, []time.Time{
		date(2023, time.February, 28),
		date(2023, time.March, 31),
	}, dueDates(instances))
}

func TestGenerateYearlyKeepsStartMonth(t *testing.T) {
	rule := yearlyRule(31, date(2024, time.June, 15), nil)

	instances, err := Generate(rule, 36, date(2024, time.January, 1))
	require.NoError(t, err)

	require.Equal(t, []time.Time{
		date(2024, time.June, 30),
		date(2025, time.June, 30),
		date(2026, time.June, 30),
	}, dueDates(instances))
	for _, inst := range instances {
		require.Equal(t, time.June, inst.DueDate.Month())
	}
}

func TestGenerateStopsAtEndDate(t *testing.T) {
	rule := monthlyRule(31, date(2024, time.January, 1), datePtr(2024, time.February, 1))

	instances, err := Generate(rule, 12, date(2024, time.January, 1))
	require.NoError(t, err)

	require.Len(t, instances, 1)
	require.Equal(t, date(2024, time.January, 31), instances[0].DueDate)
}

func TestGenerateRespectsFutureStartDate(t *testing.T) {
	rule := monthlyRule(5, date(2024, time.June, 1), nil)

	instances, err := Generate(rule, 12, date(2024, time.January, 1))
	require.NoError(t, err)

	require.NotEmpty(t, instances)
	require.Equal(t, date(2024, time.June, 5), instances[0].DueDate)
	for _, inst := range instances {
		require.False(t, inst.DueDate.Before(rule.StartDate))
	}
}

func TestGenerateSkipsMonthBeforeMidMonthStart(t *testing.T) {
	// Start on the 15th with a due day of 5: the start month's due
	// date already passed, so generation begins the following month.
	rule := monthlyRule(5, date(2024, time.March, 15), nil)

	instances, err := Generate(rule, 6, date(2024, time.January, 1))
	require.NoError(t, err)

	require.Equal(t, date(2024, time.April, 5), instances[0].DueDate)
}

func TestGenerateMonotonicDueDates(t *testing.T) {
	rule := monthlyRule(28, date(2023, time.November, 1), nil)

	instances, err := Generate(rule, 24, date(2024, time.January, 10))
	require.NoError(t, err)
	require.NotEmpty(t, instances)

	for i := 1; i < len(instances); i++ {
		require.True(t, instances[i-1].DueDate.Before(instances[i].DueDate))
	}
}

func TestGenerateDoesNotBackfillPastMonths(t *testing.T) {
	rule := monthlyRule(10, date(2023, time.January, 1), nil)

	instances, err := Generate(rule, 3, date(2024, time.June, 20))
	require.NoError(t, err)
	require.NotEmpty(t, instances)

	// Nothing earlier than the reference month, despite the old start.
	require.Equal(t, date(2024, time.June, 10), instances[0].DueDate)
}

func TestGenerateZeroInstancesIsNotAnError(t *testing.T) {
	rule := monthlyRule(10, date(2020, time.January, 1), datePtr(2020, time.June, 30))

	instances, err := Generate(rule, 12, date(2024, time.January, 1))
	require.NoError(t, err)
	require.Empty(t, instances)
}

func TestGenerateYearlySkipsBoundaryYearsWithoutStopping(t *testing.T) {
	// Start late in 2024 with a due month of December; the first
	// candidate year emits only when its due date clears the start.
	rule := yearlyRule(15, date(2024, time.December, 20), nil)

	instances, err := Generate(rule, 30, date(2024, time.November, 1))
	require.NoError(t, err)

	// 2024-12-15 precedes the start date, so 2025 is first.
	require.Equal(t, []time.Time{
		date(2025, time.December, 15),
		date(2026, time.December, 15),
	}, dueDates(instances))
}

func TestGenerateSetsPeriodAndDefaults(t *testing.T) {
	monthly := monthlyRule(31, date(2024, time.January, 1), nil)
	instances, err := Generate(monthly, 1, date(2024, time.February, 1))
	require.NoError(t, err)
	require.NotEmpty(t, instances)
	first := instances[0]
	require.Equal(t, "2024-02", first.Period)
	require.Equal(t, StatusDue, first.Status)
	require.True(t, first.ExpectedAmount.Equal(monthly.ExpectedAmount))
	require.Nil(t, first.ActualAmount)
	require.Nil(t, first.PaidDate)
	require.NotEqual(t, uuid.Nil, first.ID)
	require.Equal(t, monthly.ID, first.RuleID)

	yearly := yearlyRule(1, date(2024, time.June, 1), nil)
	instances, err = Generate(yearly, 12, date(2024, time.January, 1))
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, "2024", instances[0].Period)
}

func TestGenerateRejectsUnreasonableHorizon(t *testing.T) {
	rule := monthlyRule(1, date(2024, time.January, 1), nil)

	_, err := Generate(rule, 0, date(2024, time.January, 1))
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Generate(rule, MaxMonthsAhead+1, date(2024, time.January, 1))
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Generate(rule, MaxMonthsAhead, date(2024, time.January, 1))
	require.NoError(t, err)
}

func TestGenerateYearlyStopsMidYearAtEndDate(t *testing.T) {
	// An end date after June keeps that year's June occurrence; only
	// the due date itself decides, not Dec-31 of the candidate year.
	rule := yearlyRule(31, date(2024, time.June, 15), datePtr(2026, time.July, 1))

	instances, err := Generate(rule, 48, date(2024, time.January, 1))
	require.NoError(t, err)
	require.Equal(t, []time.Time{
		date(2024, time.June, 30),
		date(2025, time.June, 30),
		date(2026, time.June, 30),
	}, dueDates(instances))
}

func TestGenerateYearlyEndDateBeforeDueMonth(t *testing.T) {
	rule := yearlyRule(31, date(2024, time.June, 15), datePtr(2026, time.May, 1))

	instances, err := Generate(rule, 48, date(2024, time.January, 1))
	require.NoError(t, err)
	require.Equal(t, []time.Time{
		date(2024, time.June, 30),
		date(2025, time.June, 30),
	}, dueDates(instances))
}

func TestGenerateWindowLengthIgnoresReferenceDay(t *testing.T) {
	rule := monthlyRule(15, date(2024, time.January, 1), nil)

	// Jan-31 + 1 month must land in February, not normalize into March.
	instances, err := Generate(rule, 1, date(2024, time.January, 31))
	require.NoError(t, err)
	require.Equal(t, []time.Time{
		date(2024, time.January, 15),
		date(2024, time.February, 15),
	}, dueDates(instances))
}

func TestGenerateEndDateNeverExceeded(t *testing.T) {
	end := datePtr(2025, time.March, 10)
	rule := monthlyRule(15, date(2024, time.January, 1), end)

	instances, err := Generate(rule, 36, date(2024, time.January, 1))
	require.NoError(t, err)
	require.NotEmpty(t, instances)
	for _, inst := range instances {
		require.False(t, inst.DueDate.After(*end))
	}
	require.Equal(t, date(2025, time.February, 15), instances[len(instances)-1].DueDate)
}
