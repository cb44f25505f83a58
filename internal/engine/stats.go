package engine

import (
	"math"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/document"
)

// Statistics summarises how much of the expected lifespan has been lived and recorded.
type Statistics struct {
	TotalMonths     int `json:"totalMonths"`
	LivedMonths     int `json:"livedMonths"`
	RemainingMonths int `json:"remainingMonths"`
	MonthlyMemos    int `json:"monthlyMemos"`
	WeeklyMemos     int `json:"weeklyMemos"`
	DailyMemos      int `json:"dailyMemos"`
	CompletionRate  int `json:"completionRate"`
}

// Statistics returns nil until setup has been completed.
func (e *Engine) Statistics() *Statistics {
	today := e.Today()

	var s *Statistics
	e.read(func(d *document.Document) {
		p := d.UserInfo
		if !p.SetupCompleted {
			return
		}
		age := 0
		if !p.BirthDate.IsZero() {
			age = calendar.Age(p.BirthDate, today)
		}

		total := p.LifeExpectancy * 12
		lived := age * 12
		remaining := total - lived
		if remaining < 0 {
			remaining = 0
		}
		rate := 0
		if total > 0 {
			rate = int(math.Round(float64(lived) / float64(total) * 100))
		}

		s = &Statistics{
			TotalMonths:     total,
			LivedMonths:     lived,
			RemainingMonths: remaining,
			MonthlyMemos:    len(d.MonthlyData),
			WeeklyMemos:     len(d.WeeklyData),
			DailyMemos:      len(d.DailyData),
			CompletionRate:  rate,
		}
	})
	return s
}
