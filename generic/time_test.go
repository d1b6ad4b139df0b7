package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/generic"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    generic.ClockTime
		wantErr bool
	}{
		{in: "09:00", want: generic.Clock(540)},
		{in: "18:30:59", want: generic.Clock(1110)},
		{in: " 00:00 ", want: generic.Clock(0)},
		{in: "", want: generic.ClockTime{}},
		{in: "24:00", wantErr: true},
		{in: "9", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "10:60", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseClockTime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, generic.ErrInvalidClockTime)
				var parseErr *generic.ClockParseError
				assert.ErrorAs(t, err, &parseErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTime_MidnightIsNotAbsent(t *testing.T) {
	midnight := generic.MustParseClockTime("00:00")
	assert.True(t, midnight.Valid)
	assert.Equal(t, "00:00", midnight.String())
	assert.Equal(t, "", generic.ClockTime{}.String())
}

func TestClockTime_WrappedRendersWallClock(t *testing.T) {
	// 02:00 on the following day
	assert.Equal(t, "02:00", generic.Clock(1560).String())
	assert.False(t, generic.ClockTime{}.Add(30).Valid)
}

func TestTimePoint_WeekStartAndKey(t *testing.T) {
	// 2024-01-03 is a Wednesday in ISO week 1
	wed := generic.NewTimePoint(2024, time.January, 3)
	assert.Equal(t, "2024-01-01", wed.WeekStart().String())
	assert.Equal(t, "2024-W01", wed.WeekKey())

	// Sunday belongs to the week that started the previous Monday
	sun := generic.NewTimePoint(2024, time.January, 7)
	assert.Equal(t, "2024-01-01", sun.WeekStart().String())

	// 2021-01-01 belongs to ISO week 53 of 2020
	assert.Equal(t, "2020-W53", generic.NewTimePoint(2021, time.January, 1).WeekKey())
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, generic.NewTimePoint(2024, time.February, 29), d)

	_, err = generic.ParseDate("29/02/2024")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
	assert.True(t, generic.IsClientError(err))
}

func TestPeriod_WorkdaysSkipWeekendsAndHolidays(t *testing.T) {
	// GIVEN: A week with a Wednesday holiday
	period := generic.Period{
		Start: generic.NewTimePoint(2024, time.May, 13),
		End:   generic.NewTimePoint(2024, time.May, 19),
	}
	calendar := generic.NewStaticCalendar(generic.NewTimePoint(2024, time.May, 15))

	// WHEN: Listing working days
	days := period.Workdays(calendar, "acme")

	// THEN: Mon, Tue, Thu, Fri remain
	require.Len(t, days, 4)
	assert.Equal(t, "2024-05-13", days[0].String())
	assert.Equal(t, "2024-05-16", days[2].String())
	assert.Len(t, period.Days(), 7)
}

func TestPeriod_Validate(t *testing.T) {
	ok := generic.MonthPeriod(2024, time.February)
	assert.NoError(t, ok.Validate())
	assert.Equal(t, "2024-02-29", ok.End.String())

	bad := generic.Period{Start: ok.End, End: ok.Start}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)
}
