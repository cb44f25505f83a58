package period

import (
	"sort"

	"github.com/hpungsan/lifegrid/internal/calendar"
)

// Match is one education period covering a resolved date.
type Match struct {
	Stage     Stage         `json:"type"`
	Name      string        `json:"name"`
	StartDate calendar.Date `json:"startDate"`
	EndDate   calendar.Date `json:"endDate"`
	Priority  int           `json:"priority"`
}

// Label is the text shown on a grid square: the custom name when it differs
// from the canonical one, otherwise the stage's short name.
func (m Match) Label() string {
	if m.Name != "" && m.Name != m.Stage.DisplayName() {
		return m.Name
	}
	return m.Stage.ShortName()
}

// Resolve returns every period covering year/month/day, ordered by ascending
// priority. Day 0 means the first of the month. Equal priorities keep encounter
// order: known stages in life order, entries in stored order, then unknown stages
// by id.
func Resolve(e *EducationPeriods, year, month, day int) []Match {
	if e == nil {
		return nil
	}
	if day <= 0 {
		day = 1
	}
	target := calendar.NewDate(year, month, day)

	var matches []Match
	for _, stage := range Stages {
		matches = appendMatches(matches, stage, e.Entries(stage), target)
	}
	for _, stage := range e.extraStages() {
		matches = appendMatches(matches, stage, e.Extra[stage], target)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority < matches[j].Priority
	})
	return matches
}

// Primary returns the highest-priority match, or nil when nothing covers the date.
func Primary(e *EducationPeriods, year, month, day int) *Match {
	matches := Resolve(e, year, month, day)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func appendMatches(matches []Match, stage Stage, entries []Period, target calendar.Date) []Match {
	for _, p := range entries {
		start, end, ok := p.Bounds()
		if !ok || !target.Within(start, end) {
			continue
		}
		// Leave periods suspend university entries only.
		if stage == University && p.OnLeave(target) {
			continue
		}
		name := p.Name
		if name == "" {
			name = stage.DisplayName()
		}
		matches = append(matches, Match{
			Stage:     stage,
			Name:      name,
			StartDate: start,
			EndDate:   end,
			Priority:  stage.Priority(),
		})
	}
	return matches
}

// SuggestStart proposes a start month for a new entry of stage: the month after the
// latest end among all earlier stages. ok is false for the first stage, unknown
// stages, or when no earlier stage has an end.
func SuggestStart(e *EducationPeriods, stage Stage) (calendar.YearMonth, bool) {
	idx := stageIndex(stage)
	if idx <= 0 || e == nil {
		return "", false
	}

	var last calendar.Date
	for _, prev := range Stages[:idx] {
		for _, p := range e.Entries(prev) {
			end, ok := p.End.EndDate()
			if ok && (last.IsZero() || end.After(last)) {
				last = end
			}
		}
	}
	if last.IsZero() {
		return "", false
	}
	return calendar.NextMonth(last), true
}
