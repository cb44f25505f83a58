package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/document"
	"github.com/hpungsan/lifegrid/internal/errors"
)

// MaxImportance is the highest importance a day memo can carry.
const MaxImportance = 5

// TopN is how many important days a digest shows.
const TopN = 3

// ImportantDay is one entry of a week or month digest.
type ImportantDay struct {
	Day         int    `json:"day"`
	Memo        string `json:"memo"`
	Importance  int    `json:"importance"`
	DisplayName string `json:"displayName"`
}

// MonthMemo returns the memo for year/month, "" when absent.
func (e *Engine) MonthMemo(year, month int) string {
	var memo string
	e.read(func(d *document.Document) { memo = d.MonthlyData[calendar.MonthKey(year, month)].Memo })
	return memo
}

// WeekMemo returns the memo for the given week bucket, "" when absent.
func (e *Engine) WeekMemo(year, month, week int) string {
	var memo string
	e.read(func(d *document.Document) { memo = d.WeeklyData[calendar.WeekKey(year, month, week)].Memo })
	return memo
}

// DayMemo returns the memo and importance for a day; absent days yield "" and 0.
func (e *Engine) DayMemo(year, month, day int) (string, int) {
	var rec document.Memo
	e.read(func(d *document.Document) { rec = d.DailyData[calendar.DayKey(year, month, day)] })
	return rec.Memo, clampImportance(rec.Importance)
}

// SetMonthMemo stores the memo for a month. An empty memo removes the record.
func (e *Engine) SetMonthMemo(ctx context.Context, year, month int, memo string) error {
	if err := checkMonth(year, month); err != nil {
		return err
	}
	key := calendar.MonthKey(year, month)
	return e.mutate(ctx, "set_month_memo", func(d *document.Document) error {
		put(d.MonthlyData, key, document.Memo{Memo: memo}, e.Now())
		return nil
	})
}

// SetWeekMemo stores the memo for a week bucket. An empty memo removes the record.
func (e *Engine) SetWeekMemo(ctx context.Context, year, month, week int, memo string) error {
	if err := checkMonth(year, month); err != nil {
		return err
	}
	if week < 1 || week > calendar.WeeksPerMonth {
		return errors.NewInvalidRequest(fmt.Sprintf("week must be between 1 and %d", calendar.WeeksPerMonth))
	}
	key := calendar.WeekKey(year, month, week)
	return e.mutate(ctx, "set_week_memo", func(d *document.Document) error {
		put(d.WeeklyData, key, document.Memo{Memo: memo}, e.Now())
		return nil
	})
}

// SetDayMemo stores the memo and importance for a day. Importance must be 0..5.
// An empty memo with importance 0 removes the record.
func (e *Engine) SetDayMemo(ctx context.Context, year, month, day int, memo string, importance int) error {
	if err := checkMonth(year, month); err != nil {
		return err
	}
	if day < 1 || day > calendar.DaysInMonth(year, month) {
		return errors.NewInvalidRequest(fmt.Sprintf("day must be between 1 and %d", calendar.DaysInMonth(year, month)))
	}
	if importance < 0 || importance > MaxImportance {
		return errors.NewInvalidRequest(fmt.Sprintf("importance must be between 0 and %d", MaxImportance))
	}
	key := calendar.DayKey(year, month, day)
	return e.mutate(ctx, "set_day_memo", func(d *document.Document) error {
		put(d.DailyData, key, document.Memo{Memo: memo, Importance: importance}, e.Now())
		return nil
	})
}

// TopImportantDaysInWeek returns up to three memo'd days of the week bucket,
// most important first.
func (e *Engine) TopImportantDaysInWeek(year, month, week int) []ImportantDay {
	return e.topDays(year, month, calendar.DaysInWeek(year, month, week))
}

// TopImportantDaysInMonth returns up to three memo'd days of the month, most important first.
func (e *Engine) TopImportantDaysInMonth(year, month int) []ImportantDay {
	days := make([]int, 0, 31)
	for d := 1; d <= calendar.DaysInMonth(year, month); d++ {
		days = append(days, d)
	}
	return e.topDays(year, month, days)
}

func (e *Engine) topDays(year, month int, days []int) []ImportantDay {
	out := []ImportantDay{}
	e.read(func(d *document.Document) {
		for _, day := range days {
			rec, ok := d.DailyData[calendar.DayKey(year, month, day)]
			importance := clampImportance(rec.Importance)
			if !ok || rec.Memo == "" || importance <= 0 {
				continue
			}
			out = append(out, ImportantDay{
				Day:         day,
				Memo:        rec.Memo,
				Importance:  importance,
				DisplayName: calendar.DayDisplayName(year, month, day),
			})
		}
	})

	// days arrive in ascending order; the stable sort keeps that order on ties
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

func put(m map[string]document.Memo, key string, rec document.Memo, now time.Time) {
	if rec.Empty() {
		delete(m, key)
		return
	}
	rec.LastUpdated = now.UTC().Format(time.RFC3339Nano)
	m[key] = rec
}

func checkMonth(year, month int) error {
	if year < 1 || year > 9999 {
		return errors.NewInvalidRequest("year is out of range")
	}
	if month < 1 || month > 12 {
		return errors.NewInvalidRequest("month must be between 1 and 12")
	}
	return nil
}

func clampImportance(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxImportance {
		return MaxImportance
	}
	return n
}
