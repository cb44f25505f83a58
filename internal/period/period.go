// Package period models a profile's education periods and resolves which of
// them cover a given date.
package period

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hpungsan/lifegrid/internal/calendar"
)

// Leave is a sub-interval of a university entry during which the entry does not apply.
type Leave struct {
	Start calendar.YearMonth `json:"start"`
	End   calendar.YearMonth `json:"end"`
}

// Period is one dated interval of a stage. LeavePeriods is only honoured for university entries.
type Period struct {
	Start        calendar.YearMonth `json:"start"`
	End          calendar.YearMonth `json:"end"`
	Name         string             `json:"name,omitempty"`
	LeavePeriods []Leave            `json:"leavePeriods,omitempty"`
}

// Bounds expands the period to inclusive day bounds. ok is false when either bound is missing or malformed.
func (p Period) Bounds() (start, end calendar.Date, ok bool) {
	start, okStart := p.Start.StartDate()
	end, okEnd := p.End.EndDate()
	if !okStart || !okEnd {
		return calendar.Date{}, calendar.Date{}, false
	}
	return start, end, true
}

// Contains reports whether d lies within the period's bounds.
func (p Period) Contains(d calendar.Date) bool {
	start, end, ok := p.Bounds()
	return ok && d.Within(start, end)
}

// OnLeave reports whether d falls inside any of the period's leave intervals.
func (p Period) OnLeave(d calendar.Date) bool {
	for _, l := range p.LeavePeriods {
		if (Period{Start: l.Start, End: l.End}).Contains(d) {
			return true
		}
	}
	return false
}

// EducationPeriods is the full set of a profile's stages.
// Stages not in the known set are kept in Extra and resolve with UnknownPriority.
type EducationPeriods struct {
	Daycare      Period
	Kindergarten Period
	Elementary   Period
	Middle       Period
	High         Period
	University   []Period
	Other        []Period
	Extra        map[Stage][]Period
}

// Empty returns a period set with every singleton unset and empty lists.
func Empty() EducationPeriods {
	return EducationPeriods{
		University: []Period{},
		Other:      []Period{},
	}
}

// Entries returns the entries recorded for stage, in stored order.
// Singleton stages yield one element.
func (e *EducationPeriods) Entries(stage Stage) []Period {
	switch stage {
	case Daycare:
		return []Period{e.Daycare}
	case Kindergarten:
		return []Period{e.Kindergarten}
	case Elementary:
		return []Period{e.Elementary}
	case Middle:
		return []Period{e.Middle}
	case High:
		return []Period{e.High}
	case University:
		return e.University
	case Other:
		return e.Other
	default:
		return e.Extra[stage]
	}
}

// Normalize backfills nil lists and gives every university entry a leave list.
// It is idempotent.
func (e *EducationPeriods) Normalize() {
	if e.University == nil {
		e.University = []Period{}
	}
	if e.Other == nil {
		e.Other = []Period{}
	}
	for i := range e.University {
		if e.University[i].LeavePeriods == nil {
			e.University[i].LeavePeriods = []Leave{}
		}
	}
	if len(e.Extra) == 0 {
		e.Extra = nil
	}
}

// Clone returns a copy that shares no slices or maps with e.
func (e EducationPeriods) Clone() EducationPeriods {
	c := e
	c.University = cloneList(e.University)
	c.Other = cloneList(e.Other)
	if e.Extra != nil {
		c.Extra = make(map[Stage][]Period, len(e.Extra))
		for s, list := range e.Extra {
			c.Extra[s] = cloneList(list)
		}
	}
	return c
}

func cloneList(list []Period) []Period {
	if list == nil {
		return nil
	}
	out := make([]Period, len(list))
	for i, p := range list {
		out[i] = p
		if p.LeavePeriods != nil {
			out[i].LeavePeriods = append([]Leave{}, p.LeavePeriods...)
		}
	}
	return out
}

// extraStages returns the unknown stage ids in a stable order.
func (e *EducationPeriods) extraStages() []Stage {
	stages := make([]Stage, 0, len(e.Extra))
	for s := range e.Extra {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

// MarshalJSON writes the wire shape: singletons as objects, repeatable stages as arrays.
func (e EducationPeriods) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		string(Daycare):      e.Daycare,
		string(Kindergarten): e.Kindergarten,
		string(Elementary):   e.Elementary,
		string(Middle):       e.Middle,
		string(High):         e.High,
		string(University):   universityWire(e.University),
		string(Other):        nonNil(e.Other),
	}
	for stage, entries := range e.Extra {
		if _, clash := out[string(stage)]; !clash {
			out[string(stage)] = nonNil(entries)
		}
	}
	return json.Marshal(out)
}

// universityEntry always writes leavePeriods, even when there are none.
type universityEntry struct {
	Start        calendar.YearMonth `json:"start"`
	End          calendar.YearMonth `json:"end"`
	Name         string             `json:"name,omitempty"`
	LeavePeriods []Leave            `json:"leavePeriods"`
}

func universityWire(list []Period) []universityEntry {
	out := make([]universityEntry, len(list))
	for i, p := range list {
		out[i] = universityEntry{Start: p.Start, End: p.End, Name: p.Name, LeavePeriods: p.LeavePeriods}
		if out[i].LeavePeriods == nil {
			out[i].LeavePeriods = []Leave{}
		}
	}
	return out
}

// UnmarshalJSON reads both the current shape and the legacy one where university
// and other were stored as a single object. A legacy object becomes a one-element
// list only when it carries data; otherwise the list is empty.
func (e *EducationPeriods) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("education periods: %w", err)
	}

	*e = EducationPeriods{}
	for key, value := range raw {
		stage := Stage(key)
		switch stage {
		case Daycare, Kindergarten, Elementary, Middle, High:
			p, err := decodeSingleton(value)
			if err != nil {
				return fmt.Errorf("education periods %s: %w", key, err)
			}
			e.setSingleton(stage, p)
		default:
			list, err := decodeList(stage, value)
			if err != nil {
				return fmt.Errorf("education periods %s: %w", key, err)
			}
			switch stage {
			case University:
				e.University = list
			case Other:
				e.Other = list
			default:
				if e.Extra == nil {
					e.Extra = make(map[Stage][]Period)
				}
				e.Extra[stage] = list
			}
		}
	}
	return nil
}

// Validate rejects malformed YYYY-MM bounds. Unset bounds are allowed.
func (e *EducationPeriods) Validate() error {
	check := func(ym calendar.YearMonth) bool { return ym.IsZero() || ym.Valid() }
	stages := append(append([]Stage{}, Stages...), e.extraStages()...)
	for _, st := range stages {
		for _, p := range e.Entries(st) {
			if !check(p.Start) || !check(p.End) {
				return fmt.Errorf("period bounds must be YYYY-MM: %s", st)
			}
			for _, l := range p.LeavePeriods {
				if !check(l.Start) || !check(l.End) {
					return fmt.Errorf("leave bounds must be YYYY-MM: %s", st)
				}
			}
		}
	}
	return nil
}

// SetEntries replaces the entries for stage. A singleton stage keeps only the
// first entry; an empty list clears it.
func (e *EducationPeriods) SetEntries(stage Stage, entries []Period) {
	switch stage {
	case University:
		e.University = nonNil(cloneList(entries))
		for i := range e.University {
			if e.University[i].LeavePeriods == nil {
				e.University[i].LeavePeriods = []Leave{}
			}
		}
	case Other:
		e.Other = nonNil(cloneList(entries))
	case Daycare, Kindergarten, Elementary, Middle, High:
		var p Period
		if len(entries) > 0 {
			p = entries[0]
		}
		e.setSingleton(stage, p)
	default:
		if len(entries) == 0 {
			delete(e.Extra, stage)
			return
		}
		if e.Extra == nil {
			e.Extra = make(map[Stage][]Period)
		}
		e.Extra[stage] = cloneList(entries)
	}
}

func (e *EducationPeriods) setSingleton(stage Stage, p Period) {
	p.LeavePeriods = nil
	switch stage {
	case Daycare:
		e.Daycare = p
	case Kindergarten:
		e.Kindergarten = p
	case Elementary:
		e.Elementary = p
	case Middle:
		e.Middle = p
	case High:
		e.High = p
	}
}

func decodeSingleton(value json.RawMessage) (Period, error) {
	var p *Period
	if err := json.Unmarshal(value, &p); err != nil {
		return Period{}, err
	}
	if p == nil {
		return Period{}, nil
	}
	return *p, nil
}

func decodeList(stage Stage, value json.RawMessage) ([]Period, error) {
	trimmed := firstNonSpace(value)
	switch trimmed {
	case '[':
		var list []Period
		if err := json.Unmarshal(value, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var p Period
		if err := json.Unmarshal(value, &p); err != nil {
			return nil, err
		}
		if legacyHasData(stage, p) {
			return []Period{p}, nil
		}
		return []Period{}, nil
	case 'n':
		return []Period{}, nil
	default:
		return nil, fmt.Errorf("expected object or array")
	}
}

// legacyHasData decides whether a single-object legacy value is worth keeping.
// "other" entries may be identified by name alone; university needs a bound.
func legacyHasData(stage Stage, p Period) bool {
	hasBound := !p.Start.IsZero() || !p.End.IsZero()
	switch stage {
	case University:
		return hasBound
	case Other:
		return hasBound || p.Name != ""
	default:
		return true
	}
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}

func nonNil(list []Period) []Period {
	if list == nil {
		return []Period{}
	}
	return list
}
