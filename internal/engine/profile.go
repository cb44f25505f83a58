package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/document"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/period"
)

// MinLifeExpectancy is the smallest life expectancy accepted at setup.
const MinLifeExpectancy = 50

// MaxLifeExpectancy bounds the grid so a typo cannot create thousands of years.
const MaxLifeExpectancy = 150

// ValidateSetup checks profile input before it reaches the engine.
func ValidateSetup(birth calendar.Date, lifeExpectancy int, now time.Time) error {
	if birth.IsZero() {
		return errors.NewInvalidRequest("birth date is required")
	}
	if birth.After(calendar.DateOf(now)) {
		return errors.NewInvalidRequest("birth date cannot be in the future")
	}
	if lifeExpectancy < MinLifeExpectancy {
		return errors.NewInvalidRequest(fmt.Sprintf("life expectancy must be at least %d", MinLifeExpectancy))
	}
	if lifeExpectancy > MaxLifeExpectancy {
		return errors.NewInvalidRequest(fmt.Sprintf("life expectancy must be at most %d", MaxLifeExpectancy))
	}
	return nil
}

// Profile returns the current profile.
func (e *Engine) Profile() document.Profile {
	var p document.Profile
	e.read(func(d *document.Document) { p = d.UserInfo })
	return p
}

// Summary is the profile plus derived age, grid span and stored revision.
type Summary struct {
	document.Profile
	Age       int    `json:"age"`
	FirstYear int    `json:"firstYear,omitempty"`
	LastYear  int    `json:"lastYear,omitempty"`
	Revision  string `json:"revision,omitempty"`
}

// Summary returns the profile with the current age and first/last grid years.
// Revision is filled when the store keeps one; a failed lookup only logs.
func (e *Engine) Summary(ctx context.Context) Summary {
	s := Summary{Profile: e.Profile(), Age: e.CurrentAge()}
	if years := e.Years(); len(years) > 0 {
		s.FirstYear = years[0]
		s.LastYear = years[len(years)-1]
	}
	if r, ok := e.store.(Reviser); ok {
		rev, err := r.Revision(ctx)
		if err != nil {
			e.log.Warn("failed to read document revision", "error", err)
		}
		s.Revision = rev
	}
	return s
}

// SetupCompleted reports whether the profile has been set up.
func (e *Engine) SetupCompleted() bool {
	return e.Profile().SetupCompleted
}

// SetProfile replaces the profile as given. Input is not validated here.
func (e *Engine) SetProfile(ctx context.Context, p document.Profile) error {
	return e.mutate(ctx, "set_profile", func(d *document.Document) error {
		d.UserInfo = p
		if d.UserInfo.LifeExpectancy <= 0 {
			d.UserInfo.LifeExpectancy = e.defaultLife
		}
		return nil
	})
}

// CompleteSetup validates the input, records the profile and, when periods is
// non-nil, the education periods, in a single save.
func (e *Engine) CompleteSetup(ctx context.Context, birth calendar.Date, lifeExpectancy int, periods *period.EducationPeriods) error {
	if err := ValidateSetup(birth, lifeExpectancy, e.Now()); err != nil {
		return err
	}
	return e.mutate(ctx, "setup", func(d *document.Document) error {
		d.UserInfo = document.Profile{
			BirthDate:      birth,
			LifeExpectancy: lifeExpectancy,
			SetupCompleted: true,
		}
		if periods != nil {
			d.EducationPeriods = periods.Clone()
			d.EducationPeriods.Normalize()
		}
		return nil
	})
}

// Periods returns a copy of the education periods.
func (e *Engine) Periods() period.EducationPeriods {
	var p period.EducationPeriods
	e.read(func(d *document.Document) { p = d.EducationPeriods.Clone() })
	return p
}

// SetPeriods replaces the education periods.
func (e *Engine) SetPeriods(ctx context.Context, p period.EducationPeriods) error {
	return e.mutate(ctx, "set_periods", func(d *document.Document) error {
		d.EducationPeriods = p.Clone()
		d.EducationPeriods.Normalize()
		return nil
	})
}

// Resolve returns every education period covering the date, highest priority first.
func (e *Engine) Resolve(year, month, day int) []period.Match {
	var m []period.Match
	e.read(func(d *document.Document) { m = period.Resolve(&d.EducationPeriods, year, month, day) })
	return m
}

// PrimaryPeriod returns the highest-priority period covering the date, or nil.
func (e *Engine) PrimaryPeriod(year, month, day int) *period.Match {
	var m *period.Match
	e.read(func(d *document.Document) { m = period.Primary(&d.EducationPeriods, year, month, day) })
	return m
}

// SuggestStart proposes the start month for a new entry of stage.
func (e *Engine) SuggestStart(stage period.Stage) (calendar.YearMonth, bool) {
	var (
		ym calendar.YearMonth
		ok bool
	)
	e.read(func(d *document.Document) { ym, ok = period.SuggestStart(&d.EducationPeriods, stage) })
	return ym, ok
}

// CurrentAge returns completed years as of today, or 0 without a birth date.
func (e *Engine) CurrentAge() int {
	return e.AgeAt(e.Today())
}

// AgeAt returns completed years at the given date, or 0 without a birth date.
func (e *Engine) AgeAt(at calendar.Date) int {
	birth := e.Profile().BirthDate
	if birth.IsZero() {
		return 0
	}
	return calendar.Age(birth, at)
}

// AgeForYear returns the age reached by December 31 of year.
func (e *Engine) AgeForYear(year int) int {
	birth := e.Profile().BirthDate
	if birth.IsZero() {
		return 0
	}
	return calendar.AgeForYear(birth, year)
}

// Years returns birth year through birth year + life expectancy.
func (e *Engine) Years() []int {
	p := e.Profile()
	if p.BirthDate.IsZero() {
		return []int{}
	}
	return calendar.YearsSpan(p.BirthDate.Year, p.LifeExpectancy)
}

// State classifiers bound to the engine clock.

func (e *Engine) MonthState(year, month int) calendar.State {
	return calendar.ClassifyMonth(e.Now(), year, month)
}

func (e *Engine) WeekState(year, month, week int) calendar.State {
	return calendar.ClassifyWeek(e.Now(), year, month, week)
}

func (e *Engine) DayState(year, month, day int) calendar.State {
	return calendar.ClassifyDay(e.Now(), year, month, day)
}
