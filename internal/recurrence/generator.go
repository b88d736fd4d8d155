package recurrence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMonthsAhead is the forecast horizon used when callers do not
// supply one.
const DefaultMonthsAhead = 12

// MaxMonthsAhead caps the forecast horizon at ten years.
const MaxMonthsAhead = 120

// Generate computes the forecast instances for a rule over the window
// [reference, reference+monthsAhead months]. It is a pure
// transformation: instances come back with fresh ids, status DUE, and
// nothing is persisted. Output is strictly ascending by due date.
func Generate(rule Rule, monthsAhead int, reference time.Time) ([]Instance, error) {
	if monthsAhead < 1 || monthsAhead > MaxMonthsAhead {
		return nil, fmt.Errorf("%w: months ahead %d out of range 1-%d", ErrInvalid, monthsAhead, MaxMonthsAhead)
	}
	reference = truncateDate(reference)
	forecastEnd := addMonths(reference, monthsAhead)

	if rule.Frequency == FrequencyYearly {
		return generateYearly(rule, reference, forecastEnd), nil
	}
	return generateMonthly(rule, reference, forecastEnd), nil
}

func generateMonthly(rule Rule, reference, forecastEnd time.Time) []Instance {
	// Never back-forecast months already behind the reference date, but
	// always honor the rule's own start.
	cursor := firstOfMonth(reference)
	if rule.StartDate.After(cursor) {
		cursor = firstOfMonth(rule.StartDate)
	}
	endMonth := firstOfMonth(forecastEnd)

	var out []Instance
	for !cursor.After(endMonth) {
		if rule.EndDate != nil && cursor.After(*rule.EndDate) {
			break
		}
		due := clampedDueDate(cursor.Year(), cursor.Month(), rule.DueDay)
		if rule.EndDate != nil && due.After(*rule.EndDate) {
			break
		}
		// A start mid-month can land after the clamped due date; skip
		// that month rather than pushing the due date forward.
		if !due.Before(rule.StartDate) {
			out = append(out, newInstance(rule, due, FrequencyMonthly))
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out
}

func generateYearly(rule Rule, reference, forecastEnd time.Time) []Instance {
	// Yearly rules recur in the month they started, for life.
	dueMonth := rule.StartDate.Month()
	year := rule.StartDate.Year()
	if reference.Year() > year {
		year = reference.Year()
	}

	var out []Instance
	for ; year <= forecastEnd.Year(); year++ {
		if rule.EndDate != nil && time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).After(*rule.EndDate) {
			break
		}
		due := clampedDueDate(year, dueMonth, rule.DueDay)
		if rule.EndDate != nil && due.After(*rule.EndDate) {
			break
		}
		// Boundary years can miss the window without ending the rule;
		// only the end-date checks above terminate the loop.
		if due.Before(rule.StartDate) || due.After(forecastEnd) {
			continue
		}
		out = append(out, newInstance(rule, due, FrequencyYearly))
	}
	return out
}

func newInstance(rule Rule, due time.Time, freq Frequency) Instance {
	return Instance{
		ID:             uuid.New(),
		RuleID:         rule.ID,
		Period:         PeriodOf(due, freq).String(),
		DueDate:        due,
		ExpectedAmount: rule.ExpectedAmount,
		Status:         StatusDue,
	}
}

// clampedDueDate resolves the configured day-of-month against months
// that are too short: day 31 in February yields Feb 28, or Feb 29 on
// leap years.
func clampedDueDate(year int, month time.Month, day int) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths advances by whole calendar months, clamping the day the
// same way due days clamp. AddDate would normalize Jan-31 + 1 month to
// Mar-2 and silently widen the forecast window.
func addMonths(d time.Time, months int) time.Time {
	total := int(d.Month()) - 1 + months
	year := d.Year() + total/12
	month := time.Month(total%12 + 1)
	return clampedDueDate(year, month, d.Day())
}

func firstOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncateDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
