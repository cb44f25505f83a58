// Package calendar holds the date arithmetic behind the life grid: Gregorian month
// lengths, the fixed four-bucket week partition, memo keys, display names and
// past/current/future classification relative to a clock.
package calendar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day with no time-of-day or zone. The zero value means "unset".
type Date struct {
	Year  int
	Month int
	Day   int
}

// NewDate returns the date for year/month/day without normalisation.
func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// ParseDate parses "YYYY-MM-DD". A longer ISO timestamp is accepted and truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Compare returns -1, 0 or +1 comparing d and other lexicographically by (year, month, day).
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// Within reports whether start <= d <= end.
func (d Date) Within(start, end Date) bool {
	return d.Compare(start) >= 0 && d.Compare(end) <= 0
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalJSON encodes an unset date as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD", an ISO timestamp, or null.
// Unparseable strings decode to the zero date so one bad field never discards a document.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// YearMonth is a month-granularity value stored as "YYYY-MM". The empty value means unset.
type YearMonth string

// NewYearMonth formats year and month as a YearMonth.
func NewYearMonth(year, month int) YearMonth {
	return YearMonth(fmt.Sprintf("%04d-%02d", year, month))
}

// Parse splits the value into year and month. ok is false when unset or malformed.
// A trailing "-DD" component is ignored.
func (ym YearMonth) Parse() (year, month int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(string(ym)), "-", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}

// IsZero reports whether the value is unset.
func (ym YearMonth) IsZero() bool { return strings.TrimSpace(string(ym)) == "" }

// Valid reports whether the value parses.
func (ym YearMonth) Valid() bool {
	_, _, ok := ym.Parse()
	return ok
}

// StartDate expands the month to its first day.
func (ym YearMonth) StartDate() (Date, bool) {
	y, m, ok := ym.Parse()
	if !ok {
		return Date{}, false
	}
	return Date{Year: y, Month: m, Day: 1}, true
}

// EndDate expands the month to its last day.
func (ym YearMonth) EndDate() (Date, bool) {
	y, m, ok := ym.Parse()
	if !ok {
		return Date{}, false
	}
	return Date{Year: y, Month: m, Day: DaysInMonth(y, m)}, true
}

// MarshalJSON encodes an unset value as null.
func (ym YearMonth) MarshalJSON() ([]byte, error) {
	if ym.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(ym))
}

// UnmarshalJSON accepts a string or null; any other JSON type decodes as unset.
func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		*ym = ""
		return nil
	}
	*ym = YearMonth(*s)
	return nil
}

// NextMonth returns the calendar month following d.
func NextMonth(d Date) YearMonth {
	if d.Month >= 12 {
		return NewYearMonth(d.Year+1, 1)
	}
	return NewYearMonth(d.Year, d.Month+1)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
