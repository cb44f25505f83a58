package calendar

import (
	"fmt"
	"strings"
	"time"
)

// State classifies a calendar unit relative to now.
type State string

const (
	Past    State = "past"
	Current State = "current"
	Future  State = "future"
)

// CurrentWeek returns the week bucket of now's day of month.
func CurrentWeek(now time.Time) int {
	return WeekOfDay(now.Day())
}

// ClassifyMonth compares (year, month) against now's month.
func ClassifyMonth(now time.Time, year, month int) State {
	cy, cm, _ := now.Date()
	return classify(compareTuple(year, month, cy, int(cm)))
}

// ClassifyWeek compares (year, month, week) against now's week bucket.
func ClassifyWeek(now time.Time, year, month, week int) State {
	cy, cm, _ := now.Date()
	if c := compareTuple(year, month, cy, int(cm)); c != 0 {
		return classify(c)
	}
	return classify(sign(week - CurrentWeek(now)))
}

// ClassifyDay compares (year, month, day) against today.
func ClassifyDay(now time.Time, year, month, day int) State {
	return classify(NewDate(year, month, day).Compare(DateOf(now)))
}

func IsPastMonth(now time.Time, year, month int) bool { return ClassifyMonth(now, year, month) == Past }
func IsCurrentMonth(now time.Time, year, month int) bool {
	return ClassifyMonth(now, year, month) == Current
}
func IsPastWeek(now time.Time, year, month, week int) bool {
	return ClassifyWeek(now, year, month, week) == Past
}
func IsCurrentWeek(now time.Time, year, month, week int) bool {
	return ClassifyWeek(now, year, month, week) == Current
}
func IsPastDay(now time.Time, year, month, day int) bool {
	return ClassifyDay(now, year, month, day) == Past
}
func IsCurrentDay(now time.Time, year, month, day int) bool {
	return ClassifyDay(now, year, month, day) == Current
}

// Age returns completed years between birth and at.
func Age(birth, at Date) int {
	age := at.Year - birth.Year
	if at.Month < birth.Month || (at.Month == birth.Month && at.Day < birth.Day) {
		age--
	}
	return age
}

// AgeForYear is the age on December 31st of year.
func AgeForYear(birth Date, year int) int {
	return Age(birth, NewDate(year, 12, 31))
}

// MonthName returns the English month name for 1..12.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()
}

// WeekName labels a week bucket.
func WeekName(week int) string {
	return fmt.Sprintf("Week %d", week)
}

// DayName returns the three-letter weekday of the date.
func DayName(year, month, day int) string {
	return NewDate(year, month, day).Time(time.UTC).Weekday().String()[:3]
}

// DayDisplayName formats a day with its weekday, e.g. "5 (Mon)".
func DayDisplayName(year, month, day int) string {
	return fmt.Sprintf("%d (%s)", day, DayName(year, month, day))
}

// Stars renders an importance rating as a row of stars.
func Stars(importance int) string {
	if importance <= 0 {
		return ""
	}
	return strings.Repeat("★", importance)
}

func compareTuple(y1, m1, y2, m2 int) int {
	if y1 != y2 {
		return sign(y1 - y2)
	}
	return sign(m1 - m2)
}

func classify(cmp int) State {
	switch {
	case cmp < 0:
		return Past
	case cmp == 0:
		return Current
	default:
		return Future
	}
}
