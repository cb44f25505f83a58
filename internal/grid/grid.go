// Package grid projects the engine's state into the squares shown by the
// web UI, the CLI and the MCP tools.
package grid

import (
	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/period"
)

// Placeholders shown on squares with no memo.
const (
	PlaceholderPast   = "Add a memory"
	PlaceholderFuture = "Make a plan"
)

// Square is the part shared by month, week and day squares.
type Square struct {
	Key          string                `json:"key"`
	Title        string                `json:"title"`
	State        calendar.State        `json:"state"`
	Class        string                `json:"class"`
	Periods      []period.Match        `json:"periods,omitempty"`
	PeriodLabels []string              `json:"periodLabels,omitempty"`
	Memo         string                `json:"memo,omitempty"`
	Preview      string                `json:"preview,omitempty"`
	Digest       []engine.ImportantDay `json:"digest,omitempty"`
	Placeholder  string                `json:"placeholder,omitempty"`
}

// MonthSquare is one month in a year view.
type MonthSquare struct {
	Square
	Year  int `json:"year"`
	Month int `json:"month"`
}

// WeekSquare is one week bucket in a month view.
type WeekSquare struct {
	Square
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Week  int   `json:"week"`
	Days  []int `json:"days"`
}

// DaySquare is one day in a week view.
type DaySquare struct {
	Square
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	Importance int    `json:"importance"`
	Stars      string `json:"stars,omitempty"`
}

// YearView is the twelve months of one year.
type YearView struct {
	Year      int           `json:"year"`
	Age       int           `json:"age"`
	FirstYear int           `json:"firstYear"`
	LastYear  int           `json:"lastYear"`
	HasPrev   bool          `json:"hasPrev"`
	HasNext   bool          `json:"hasNext"`
	Months    []MonthSquare `json:"months"`
}

// MonthView is the four week buckets of one month.
type MonthView struct {
	Year  int          `json:"year"`
	Month int          `json:"month"`
	Name  string       `json:"name"`
	Memo  string       `json:"memo"`
	Weeks []WeekSquare `json:"weeks"`
}

// WeekView is the days of one week bucket.
type WeekView struct {
	Year  int         `json:"year"`
	Month int         `json:"month"`
	Week  int         `json:"week"`
	Name  string      `json:"name"`
	Memo  string      `json:"memo"`
	Days  []DaySquare `json:"days"`
}

// Year builds the year view. Age is the current age for the current year and
// the age reached by year end otherwise.
func Year(e *engine.Engine, year int) YearView {
	v := YearView{Year: year}
	if years := e.Years(); len(years) > 0 {
		v.FirstYear = years[0]
		v.LastYear = years[len(years)-1]
		v.HasPrev = year > v.FirstYear
		v.HasNext = year < v.LastYear
	}
	if year == e.Now().Year() {
		v.Age = e.CurrentAge()
	} else {
		v.Age = e.AgeForYear(year)
	}

	for m := 1; m <= 12; m++ {
		sq := MonthSquare{Year: year, Month: m}
		sq.Key = calendar.MonthKey(year, m)
		sq.Title = calendar.MonthName(m)
		sq.State = e.MonthState(year, m)
		sq.fill(e.Resolve(year, m, 1), e.TopImportantDaysInMonth(year, m), e.MonthMemo(year, m))
		v.Months = append(v.Months, sq)
	}
	return v
}

// Month builds the month view. Week squares resolve periods at their first day.
func Month(e *engine.Engine, year, month int) MonthView {
	v := MonthView{
		Year:  year,
		Month: month,
		Name:  calendar.MonthName(month),
		Memo:  e.MonthMemo(year, month),
	}
	for w := 1; w <= calendar.WeeksPerMonth; w++ {
		first, _, _ := calendar.WeekRange(year, month, w)
		sq := WeekSquare{Year: year, Month: month, Week: w, Days: calendar.DaysInWeek(year, month, w)}
		sq.Key = calendar.WeekKey(year, month, w)
		sq.Title = calendar.WeekName(w)
		sq.State = e.WeekState(year, month, w)
		sq.fill(e.Resolve(year, month, first), e.TopImportantDaysInWeek(year, month, w), e.WeekMemo(year, month, w))
		v.Weeks = append(v.Weeks, sq)
	}
	return v
}

// Week builds the week view.
func Week(e *engine.Engine, year, month, week int) WeekView {
	v := WeekView{
		Year:  year,
		Month: month,
		Week:  week,
		Name:  calendar.WeekName(week),
		Memo:  e.WeekMemo(year, month, week),
		Days:  []DaySquare{},
	}
	for _, d := range calendar.DaysInWeek(year, month, week) {
		memo, importance := e.DayMemo(year, month, d)
		sq := DaySquare{Year: year, Month: month, Day: d, Importance: importance, Stars: calendar.Stars(importance)}
		sq.Key = calendar.DayKey(year, month, d)
		sq.Title = calendar.DayDisplayName(year, month, d)
		sq.State = e.DayState(year, month, d)
		sq.fill(e.Resolve(year, month, d), nil, memo)
		v.Days = append(v.Days, sq)
	}
	return v
}

// fill sets the class, labels and body of a square. The digest wins over the
// square's own memo; the placeholder is used only when both are empty.
func (s *Square) fill(matches []period.Match, digest []engine.ImportantDay, memo string) {
	s.Periods = matches
	s.Class = string(s.State)
	if len(matches) > 0 {
		s.Class = "education-" + string(matches[0].Stage)
		for _, m := range matches {
			s.PeriodLabels = append(s.PeriodLabels, m.Label())
		}
	}

	switch {
	case len(digest) > 0:
		s.Digest = digest
	case memo != "":
		s.Memo = memo
		s.Preview = Preview(memo)
	case s.State == calendar.Past:
		s.Placeholder = PlaceholderPast
	default:
		s.Placeholder = PlaceholderFuture
	}
}
