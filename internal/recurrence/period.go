package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is the calendar bucket an instance is reported under: a single
// month ("2024-06") for monthly rules, a whole year ("2024") for yearly
// ones. It is never persisted on its own; instances store its string form.
type Period struct {
	Year  int
	Month int // 0 means a yearly period
}

// ParsePeriod accepts "YYYY-MM" or "YYYY". Out-of-range months are
// rejected, not clamped, and every position must be a digit — Atoi
// alone would let a signed year like "+123" through.
func ParsePeriod(s string) (Period, error) {
	switch {
	case len(s) == 4 && allDigits(s):
		year, _ := strconv.Atoi(s)
		if year == 0 {
			return Period{}, fmt.Errorf("%w: invalid period %q (expected YYYY-MM or YYYY)", ErrInvalid, s)
		}
		return Period{Year: year}, nil
	case len(s) == 7 && s[4] == '-' && allDigits(s[:4]) && allDigits(s[5:]):
		year, _ := strconv.Atoi(s[:4])
		if year == 0 {
			return Period{}, fmt.Errorf("%w: invalid period %q (expected YYYY-MM or YYYY)", ErrInvalid, s)
		}
		month, _ := strconv.Atoi(s[5:])
		if month < 1 || month > 12 {
			return Period{}, fmt.Errorf("%w: invalid period %q (month must be 01-12)", ErrInvalid, s)
		}
		return Period{Year: year, Month: month}, nil
	default:
		return Period{}, fmt.Errorf("%w: invalid period %q (expected YYYY-MM or YYYY)", ErrInvalid, s)
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// PeriodOf buckets a date according to the rule frequency.
func PeriodOf(d time.Time, freq Frequency) Period {
	if freq == FrequencyYearly {
		return Period{Year: d.Year()}
	}
	return Period{Year: d.Year(), Month: int(d.Month())}
}

// Monthly reports whether the period covers a single month.
func (p Period) Monthly() bool { return p.Month != 0 }

// String renders the canonical form with a zero-padded month.
func (p Period) String() string {
	if p.Month == 0 {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Contains reports whether the given date falls inside the period.
func (p Period) Contains(d time.Time) bool {
	if d.Year() != p.Year {
		return false
	}
	return p.Month == 0 || int(d.Month()) == p.Month
}

// normalizePeriodInput trims user-supplied period strings before parsing.
func normalizePeriodInput(s string) string {
	return strings.TrimSpace(s)
}
