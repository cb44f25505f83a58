// Package document defines the persisted planner document and its schema backfill.
//
// Wire names follow the browser export format so older exports import unchanged.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/period"
)

// SchemaVersion is the document layout written by this build.
const SchemaVersion = 1

// DefaultLifeExpectancy is used when a profile has none recorded.
const DefaultLifeExpectancy = 80

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Profile is the subject's birth date and life expectancy.
type Profile struct {
	BirthDate      calendar.Date `json:"birthDate"`
	LifeExpectancy int           `json:"lifeExpectancy"`
	SetupCompleted bool          `json:"setupCompleted"`
}

// Memo is the record stored under a month, week or day key.
// Importance is only meaningful for days.
type Memo struct {
	Memo        string `json:"memo"`
	Importance  int    `json:"importance,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// Empty reports whether the record carries nothing worth keeping.
func (m Memo) Empty() bool {
	return m.Memo == "" && m.Importance == 0
}

// Settings holds presentation preferences.
type Settings struct {
	Theme string `json:"theme"`
}

// Document is the whole persisted state of one planner.
type Document struct {
	SchemaVersion    int                     `json:"schemaVersion"`
	UserInfo         Profile                 `json:"userInfo"`
	EducationPeriods period.EducationPeriods `json:"educationPeriods"`
	MonthlyData      map[string]Memo         `json:"monthlyData"`
	WeeklyData       map[string]Memo         `json:"weeklyData"`
	DailyData        map[string]Memo         `json:"dailyData"`
	Settings         Settings                `json:"settings"`
}

// New returns an empty, backfilled document.
func New(defaultLife int) *Document {
	d := &Document{}
	d.Normalize(defaultLife)
	return d
}

// Normalize backfills missing parts of the document in place. defaultLife <= 0
// falls back to DefaultLifeExpectancy. Applying it twice is the same as once.
func (d *Document) Normalize(defaultLife int) {
	if defaultLife <= 0 {
		defaultLife = DefaultLifeExpectancy
	}
	if d.UserInfo.LifeExpectancy <= 0 {
		d.UserInfo.LifeExpectancy = defaultLife
	}
	d.EducationPeriods.Normalize()
	if d.MonthlyData == nil {
		d.MonthlyData = map[string]Memo{}
	}
	if d.WeeklyData == nil {
		d.WeeklyData = map[string]Memo{}
	}
	if d.DailyData == nil {
		d.DailyData = map[string]Memo{}
	}
	if d.Settings.Theme != ThemeDark {
		d.Settings.Theme = ThemeLight
	}
	d.SchemaVersion = SchemaVersion
}

// Parse decodes a stored or imported document and backfills it.
func Parse(data []byte, defaultLife int) (*Document, error) {
	if err := requireObject(data); err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	d.Normalize(defaultLife)
	return &d, nil
}

// Encode serialises the document as indented JSON.
func Encode(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	var c Document
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	c.Normalize(d.UserInfo.LifeExpectancy)
	return &c, nil
}

// Merge overlays the top-level keys of incoming onto current and returns the
// backfilled result. Keys absent from incoming keep their current value; present
// keys replace it wholesale. current is not modified.
func Merge(current *Document, incoming []byte, defaultLife int) (*Document, error) {
	if err := requireObject(incoming); err != nil {
		return nil, err
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}

	base, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for k, v := range overlay {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged document: %w", err)
	}
	return Parse(data, defaultLife)
}

func requireObject(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("document must be a JSON object")
	}
	return nil
}
