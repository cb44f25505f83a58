package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

// WeeksPerMonth is fixed: every month is split into four buckets, the last one
// absorbing all trailing days. These are not ISO weeks.
const WeeksPerMonth = 4

// DaysInMonth returns the Gregorian length of month (1..12) in year.
func DaysInMonth(year, month int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// WeekRange returns the first and last day covered by week (1..4) of the month.
// ok is false for week indexes outside 1..4.
func WeekRange(year, month, week int) (first, last int, ok bool) {
	if week < 1 || week > WeeksPerMonth {
		return 0, 0, false
	}
	first = (week-1)*7 + 1
	last = week * 7
	if week == WeeksPerMonth {
		last = DaysInMonth(year, month)
	}
	return first, last, true
}

// DaysInWeek lists the days of month covered by week (1..4), ascending.
func DaysInWeek(year, month, week int) []int {
	first, last, ok := WeekRange(year, month, week)
	if !ok {
		return nil
	}
	days := make([]int, 0, last-first+1)
	for d := first; d <= last; d++ {
		days = append(days, d)
	}
	return days
}

// WeekOfDay returns the week bucket (1..4) that contains day.
func WeekOfDay(day int) int {
	w := (day + 6) / 7
	if w > WeeksPerMonth {
		return WeeksPerMonth
	}
	if w < 1 {
		return 1
	}
	return w
}

// YearsSpan returns birthYear..birthYear+lifeExpectancy inclusive.
// It is empty when the birth year is unknown or the expectancy is not positive.
func YearsSpan(birthYear, lifeExpectancy int) []int {
	if birthYear == 0 || lifeExpectancy <= 0 {
		return nil
	}
	years := make([]int, 0, lifeExpectancy+1)
	for y := birthYear; y <= birthYear+lifeExpectancy; y++ {
		years = append(years, y)
	}
	return years
}

// MonthKey is the memo key for a month: "YYYY-MM".
func MonthKey(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// WeekKey is the memo key for a week bucket: "YYYY-MM-W{n}".
func WeekKey(year, month, week int) string {
	return fmt.Sprintf("%d-%02d-W%d", year, month, week)
}

// DayKey is the memo key for a day: "YYYY-MM-DD".
func DayKey(year, month, day int) string {
	return fmt.Sprintf("%d-%02d-%02d", year, month, day)
}

// Level names the granularity of a memo key.
type Level string

const (
	LevelMonth Level = "month"
	LevelWeek  Level = "week"
	LevelDay   Level = "day"
)

// Key is a parsed memo key. Week is set only for week keys and Day only for day keys.
type Key struct {
	Level Level
	Year  int
	Month int
	Week  int
	Day   int
}

// String formats the key back to its canonical form.
func (k Key) String() string {
	switch k.Level {
	case LevelWeek:
		return WeekKey(k.Year, k.Month, k.Week)
	case LevelDay:
		return DayKey(k.Year, k.Month, k.Day)
	default:
		return MonthKey(k.Year, k.Month)
	}
}

// ParseKey reads "YYYY-MM", "YYYY-MM-Wn" or "YYYY-MM-DD" and checks the
// month, week and day ranges.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) < 2 || len(parts) > 3 {
		return Key{}, fmt.Errorf("key %q: want YYYY-MM, YYYY-MM-Wn or YYYY-MM-DD", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 || year > 9999 {
		return Key{}, fmt.Errorf("key %q: bad year", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Key{}, fmt.Errorf("key %q: bad month", s)
	}
	k := Key{Level: LevelMonth, Year: year, Month: month}
	if len(parts) == 2 {
		return k, nil
	}

	last := parts[2]
	if rest, ok := strings.CutPrefix(strings.ToUpper(last), "W"); ok {
		week, err := strconv.Atoi(rest)
		if err != nil || week < 1 || week > WeeksPerMonth {
			return Key{}, fmt.Errorf("key %q: week must be 1-%d", s, WeeksPerMonth)
		}
		k.Level, k.Week = LevelWeek, week
		return k, nil
	}
	day, err := strconv.Atoi(last)
	if err != nil || day < 1 || day > DaysInMonth(year, month) {
		return Key{}, fmt.Errorf("key %q: day out of range", s)
	}
	k.Level, k.Day = LevelDay, day
	return k, nil
}
