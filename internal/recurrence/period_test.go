package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePeriodMonthly(t *testing.T) {
	p, err := ParsePeriod("2024-06")
	require.NoError(t, err)
	require.Equal(t, 2024, p.Year)
	require.Equal(t, 6, p.Month)
	require.True(t, p.Monthly())
	require.Equal(t, "2024-06", p.String())
}

func TestParsePeriodYearly(t *testing.T) {
	p, err := ParsePeriod("2024")
	require.NoError(t, err)
	require.Equal(t, 2024, p.Year)
	require.Zero(t, p.Month)
	require.False(t, p.Monthly())
	require.Equal(t, "2024", p.String())
}

func TestParsePeriodRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"", "24", "2024-", "2024-13", "2024-00", "2024-6", "2024/06", "06-2024", "abcd-ef", "2024-06-15",
		"+123", "-123", "+024-06", "2024-+6", "0000", " 024",
	} {
		_, err := ParsePeriod(input)
		require.ErrorIs(t, err, ErrInvalid, "input %q", input)
	}
}

func TestPeriodOf(t *testing.T) {
	d := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	monthly := PeriodOf(d, FrequencyMonthly)
	require.Equal(t, "2024-02", monthly.String())
	require.True(t, monthly.Contains(d))

	yearly := PeriodOf(d, FrequencyYearly)
	require.Equal(t, "2024", yearly.String())
	require.True(t, yearly.Contains(d))
	require.True(t, yearly.Contains(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)))
	require.False(t, yearly.Contains(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodStringZeroPadsMonth(t *testing.T) {
	p := Period{Year: 987, Month: 3}
	require.Equal(t, "0987-03", p.String())
}
