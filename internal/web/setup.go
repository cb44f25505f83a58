package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/period"
)

// maxFormRows bounds the row counts a setup form may claim.
const maxFormRows = 50

// applySetupForm checks the scalar fields and copies the stage rows into
// periods. A repeatable stage is rebuilt only when the form carries its row
// count; rows with neither start nor end are dropped.
func (h *Handlers) applySetupForm(r *http.Request, birthRaw, lifeRaw string, periods *period.EducationPeriods) error {
	if birthRaw == "" {
		return errors.NewInvalidRequest("birth date is required")
	}
	if _, err := calendar.ParseDate(birthRaw); err != nil {
		return errors.NewInvalidRequest("birth date must be YYYY-MM-DD")
	}
	if _, err := strconv.Atoi(lifeRaw); err != nil {
		return errors.NewInvalidRequest("life expectancy must be a number")
	}

	for _, st := range period.Stages {
		if !st.Repeatable() {
			start, end, err := formMonths(r, string(st), st.DisplayName())
			if err != nil {
				return err
			}
			periods.SetEntries(st, []period.Period{{Start: start, End: end}})
			continue
		}

		n, present, err := formCount(r, string(st)+"_rows")
		if err != nil {
			return err
		}
		if !present {
			continue
		}

		existing := periods.Entries(st)
		entries := []period.Period{}
		for i := 0; i < n; i++ {
			prefix := fmt.Sprintf("%s_%d", st, i)
			start, end, err := formMonths(r, prefix, st.DisplayName())
			if err != nil {
				return err
			}
			if start.IsZero() && end.IsZero() {
				continue
			}
			entry := period.Period{
				Start: start,
				End:   end,
				Name:  strings.TrimSpace(r.PostFormValue(prefix + "_name")),
			}
			if st == period.University {
				leaves, ok, err := formLeaves(r, prefix)
				if err != nil {
					return err
				}
				if !ok && i < len(existing) {
					leaves = existing[i].LeavePeriods
				}
				entry.LeavePeriods = leaves
			}
			entries = append(entries, entry)
		}
		periods.SetEntries(st, entries)
	}
	return nil
}

// formLeaves reads the leave rows of one university entry. ok is false when
// the form carries no leave count for it.
func formLeaves(r *http.Request, prefix string) ([]period.Leave, bool, error) {
	n, present, err := formCount(r, prefix+"_leaves")
	if err != nil || !present {
		return nil, false, err
	}
	var leaves []period.Leave
	for j := 0; j < n; j++ {
		start, end, err := formMonths(r, fmt.Sprintf("%s_leave_%d", prefix, j), "Leave")
		if err != nil {
			return nil, false, err
		}
		if start.IsZero() && end.IsZero() {
			continue
		}
		leaves = append(leaves, period.Leave{Start: start, End: end})
	}
	return leaves, true, nil
}

func formMonths(r *http.Request, prefix, label string) (calendar.YearMonth, calendar.YearMonth, error) {
	start := calendar.YearMonth(strings.TrimSpace(r.PostFormValue(prefix + "_start")))
	end := calendar.YearMonth(strings.TrimSpace(r.PostFormValue(prefix + "_end")))
	if (!start.IsZero() && !start.Valid()) || (!end.IsZero() && !end.Valid()) {
		return "", "", errors.NewInvalidRequest(fmt.Sprintf("%s dates must be YYYY-MM", label))
	}
	return start, end, nil
}

func formCount(r *http.Request, field string) (int, bool, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxFormRows {
		return 0, false, errors.NewInvalidRequest("malformed form")
	}
	return n, true, nil
}

func (h *Handlers) stageFields(periods period.EducationPeriods) []StageField {
	fields := make([]StageField, 0, len(period.Stages))
	for _, st := range period.Stages {
		f := StageField{
			Stage:    st,
			Label:    st.DisplayName(),
			Repeated: st.Repeatable(),
			HasLeave: st == period.University,
		}
		if ym, ok := period.SuggestStart(&periods, st); ok {
			f.Suggested = string(ym)
		}

		entries := periods.Entries(st)
		if !f.Repeated {
			row := EntryRow{Prefix: string(st)}
			if len(entries) > 0 {
				row.Start, row.End = string(entries[0].Start), string(entries[0].End)
			}
			f.Rows = []EntryRow{row}
			fields = append(fields, f)
			continue
		}

		rows := append(append([]period.Period{}, entries...), period.Period{})
		for i, e := range rows {
			row := EntryRow{
				Prefix: fmt.Sprintf("%s_%d", st, i),
				Start:  string(e.Start),
				End:    string(e.End),
				Name:   e.Name,
			}
			if f.HasLeave {
				for j, l := range append(append([]period.Leave{}, e.LeavePeriods...), period.Leave{}) {
					row.Leaves = append(row.Leaves, LeaveRow{
						Prefix: fmt.Sprintf("%s_leave_%d", row.Prefix, j),
						Start:  string(l.Start),
						End:    string(l.End),
					})
				}
			}
			f.Rows = append(f.Rows, row)
		}
		fields = append(fields, f)
	}
	return fields
}
