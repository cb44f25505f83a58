package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/db"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/period"
)

var testNow = time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)

// setupTestDeps creates an engine over a temporary database.
func setupTestDeps(t *testing.T) *deps {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	clk := clock.NewFake()
	clk.Set(testNow)
	store := db.NewDocumentStore(database, "test")
	eng, err := engine.Open(context.Background(), store, engine.Options{
		Clock:                 clk,
		DefaultLifeExpectancy: cfg.DefaultLifeExpectancy,
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	return &deps{eng: eng, store: store, cfg: cfg}
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, d *deps, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(d)
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"lifegrid"}, args...))
	return out.String(), err
}

// mustRun fails the test when the command errors.
func mustRun(t *testing.T, d *deps, args ...string) string {
	t.Helper()
	out, err := run(t, d, "", args...)
	if err != nil {
		t.Fatalf("%v: unexpected error: %v", args, err)
	}
	return out
}

// expectCode runs a command that must fail with the given error code.
func expectCode(t *testing.T, d *deps, code string, args ...string) {
	t.Helper()
	_, err := run(t, d, "", args...)
	if err == nil {
		t.Fatalf("%v: expected [%s] error, got success", args, code)
	}
	if !strings.Contains(err.Error(), "["+code+"]") {
		t.Errorf("%v: expected [%s] error, got %q", args, code, err.Error())
	}
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"lifegrid"}, false},
		{[]string{"lifegrid", "setup"}, true},
		{[]string{"lifegrid", "serve"}, true},
		{[]string{"lifegrid", "snapshots"}, true},
		{[]string{"lifegrid", "--help"}, true},
		{[]string{"lifegrid", "-v"}, true},
		{[]string{"lifegrid", "frobnicate"}, false},
	}
	for _, tt := range tests {
		if got := isCLIMode(tt.args); got != tt.want {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"lifegrid"}, false},
		{[]string{"lifegrid", "help"}, true},
		{[]string{"lifegrid", "-h"}, true},
		{[]string{"lifegrid", "--version"}, true},
		{[]string{"lifegrid", "memo"}, false},
	}
	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.want {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestHelpWithoutDeps(t *testing.T) {
	var out bytes.Buffer
	app := newCLIApp(nil)
	app.Writer = &out
	if err := app.Run([]string{"lifegrid", "--help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cmd := range []string{"setup", "memo", "grid", "serve", "snapshots"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestSetupAndProfile(t *testing.T) {
	d := setupTestDeps(t)

	var got engine.Summary
	decodeJSON(t, mustRun(t, d, "setup", "--birth", "2000-06-15", "--life", "90"), &got)
	if !got.SetupCompleted {
		t.Error("expected setupCompleted")
	}
	if got.Age != 20 {
		t.Errorf("expected age 20, got %d", got.Age)
	}
	if got.FirstYear != 2000 || got.LastYear != 2090 {
		t.Errorf("expected span 2000-2090, got %d-%d", got.FirstYear, got.LastYear)
	}

	if got.Revision == "" {
		t.Error("expected a revision after setup")
	}
	setupRev := got.Revision

	decodeJSON(t, mustRun(t, d, "theme", "dark"), &map[string]any{})
	decodeJSON(t, mustRun(t, d, "profile"), &got)
	if got.LifeExpectancy != 90 {
		t.Errorf("expected life expectancy 90, got %d", got.LifeExpectancy)
	}
	if got.Revision == "" || got.Revision == setupRev {
		t.Errorf("expected a new revision after a save, got %q", got.Revision)
	}
}

func TestSetup_DefaultLife(t *testing.T) {
	d := setupTestDeps(t)
	var got engine.Summary
	decodeJSON(t, mustRun(t, d, "setup", "--birth", "2000-06-15"), &got)
	if got.LifeExpectancy != 80 {
		t.Errorf("expected default life expectancy 80, got %d", got.LifeExpectancy)
	}
}

func TestSetup_Rejections(t *testing.T) {
	d := setupTestDeps(t)
	expectCode(t, d, "INVALID_REQUEST", "setup", "--birth", "15/06/2000")
	expectCode(t, d, "INVALID_REQUEST", "setup", "--birth", "2030-01-01")
	expectCode(t, d, "INVALID_REQUEST", "setup", "--birth", "2000-06-15", "--life", "20")
	expectCode(t, d, "FILE_NOT_FOUND", "setup", "--birth", "2000-06-15", "--periods-file", filepath.Join(t.TempDir(), "nope.json"))

	if d.eng.SetupCompleted() {
		t.Error("failed setup must not complete the profile")
	}
}

func TestSetup_PeriodsFile(t *testing.T) {
	d := setupTestDeps(t)
	path := filepath.Join(t.TempDir(), "periods.json")
	body := `{"elementary":{"start":"2007-03","end":"2013-02"},"university":[{"start":"2019-03","end":"2023-02","name":"KAIST"}]}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	mustRun(t, d, "setup", "--birth", "2000-06-15", "--periods-file", path)

	p := d.eng.Periods()
	if p.Elementary.Start != "2007-03" {
		t.Errorf("expected elementary start 2007-03, got %q", p.Elementary.Start)
	}
	if len(p.University) != 1 || p.University[0].Name != "KAIST" {
		t.Errorf("unexpected university entries: %+v", p.University)
	}
}

func TestPeriodsSet_Stage(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "setup", "--birth", "2000-06-15")

	mustRun(t, d, "periods", "set", "--stage", "elementary", "--start", "2007-03", "--end", "2013-02")
	mustRun(t, d, "periods", "set", "--stage", "elementary", "--start", "2007-04", "--end", "2013-02")
	mustRun(t, d, "periods", "set", "--stage", "university", "--start", "2019-03", "--end", "2021-02")
	mustRun(t, d, "periods", "set", "--stage", "University", "--start", "2021-03", "--end", "2023-02", "--name", "Grad")

	p := d.eng.Periods()
	if p.Elementary.Start != "2007-04" {
		t.Errorf("singleton stage should be replaced, got start %q", p.Elementary.Start)
	}
	if len(p.University) != 2 {
		t.Fatalf("repeatable stage should append, got %d entries", len(p.University))
	}
	if p.University[1].Name != "Grad" {
		t.Errorf("expected second entry named Grad, got %q", p.University[1].Name)
	}

	mustRun(t, d, "periods", "set", "--stage", "university", "--clear")
	if n := len(d.eng.Periods().University); n != 0 {
		t.Errorf("expected university cleared, got %d entries", n)
	}
}

func TestPeriodsSet_Rejections(t *testing.T) {
	d := setupTestDeps(t)
	expectCode(t, d, "INVALID_REQUEST", "periods", "set")
	expectCode(t, d, "INVALID_REQUEST", "periods", "set", "--stage", "middle", "--start", "2013-03")
	expectCode(t, d, "INVALID_REQUEST", "periods", "set", "--stage", "middle", "--start", "2013-13", "--end", "2016-02")
	expectCode(t, d, "INVALID_REQUEST", "periods", "set", "--stage", "middle", "--file", "x.json")
	expectCode(t, d, "INVALID_REQUEST", "periods", "set", "--stage", "univeristy", "--start", "2019-03", "--end", "2023-02")
}

func TestPeriodsSet_CustomStage(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "setup", "--birth", "2000-06-15")

	mustRun(t, d, "periods", "set", "--stage", "graduate", "--custom", "--start", "2023-03", "--end", "2025-02")
	p := d.eng.Periods()
	if got := p.Entries(period.Stage("graduate")); len(got) != 1 || got[0].Start != "2023-03" {
		t.Errorf("expected one custom graduate entry, got %v", got)
	}
}

func TestPeriodsGet(t *testing.T) {
	d := setupTestDeps(t)
	var got map[string]json.RawMessage
	decodeJSON(t, mustRun(t, d, "periods", "get"), &got)
	for _, key := range []string{"daycare", "elementary", "university", "other"} {
		if _, ok := got[key]; !ok {
			t.Errorf("periods output missing %q", key)
		}
	}
}

func TestResolve(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "setup", "--birth", "2000-06-15")
	mustRun(t, d, "periods", "set", "--stage", "elementary", "--start", "2007-03", "--end", "2013-02")
	mustRun(t, d, "periods", "set", "--stage", "other", "--start", "2010-01", "--end", "2010-12", "--name", "Piano")

	var got struct {
		Date    string `json:"date"`
		Periods []struct {
			Type string `json:"type"`
		} `json:"periods"`
		Primary *struct {
			Type string `json:"type"`
		} `json:"primary"`
	}
	decodeJSON(t, mustRun(t, d, "resolve", "2010-05-10"), &got)
	if got.Date != "2010-05-10" {
		t.Errorf("expected date 2010-05-10, got %q", got.Date)
	}
	if len(got.Periods) != 2 {
		t.Fatalf("expected 2 covering periods, got %d", len(got.Periods))
	}
	if got.Primary == nil || got.Primary.Type != "elementary" {
		t.Errorf("expected elementary to win, got %+v", got.Primary)
	}

	decodeJSON(t, mustRun(t, d, "resolve", "2010-05-W3"), &got)
	if got.Date != "2010-05-15" {
		t.Errorf("week key should resolve at its first day, got %q", got.Date)
	}

	got.Primary = nil
	decodeJSON(t, mustRun(t, d, "resolve", "1990-01"), &got)
	if len(got.Periods) != 0 || got.Primary != nil {
		t.Errorf("expected no periods, got %+v", got)
	}

	expectCode(t, d, "INVALID_REQUEST", "resolve")
	expectCode(t, d, "INVALID_REQUEST", "resolve", "2010-02-30")
}

func TestMemo_Day(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "memo", "set", "--text", "Dentist", "--importance", "4", "2020-06-02")

	var got memoOutput
	decodeJSON(t, mustRun(t, d, "memo", "get", "2020-06-02"), &got)
	if got.Memo != "Dentist" || got.Importance == nil || *got.Importance != 4 {
		t.Errorf("unexpected memo: %+v", got)
	}

	// Importance survives a text-only update.
	decodeJSON(t, mustRun(t, d, "memo", "set", "--text", "Dentist at 3pm", "2020-06-02"), &got)
	if *got.Importance != 4 {
		t.Errorf("expected importance kept at 4, got %d", *got.Importance)
	}

	expectCode(t, d, "INVALID_REQUEST", "memo", "set", "--text", "x", "--importance", "6", "2020-06-02")
}

func TestMemo_MonthAndWeekFromStdin(t *testing.T) {
	d := setupTestDeps(t)

	if _, err := run(t, d, "  Move house\n", "memo", "set", "2020-07"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.eng.MonthMemo(2020, 7); got != "Move house" {
		t.Errorf("expected trimmed month memo, got %q", got)
	}

	if _, err := run(t, d, "Sprint", "memo", "set", "2020-07-w2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got memoOutput
	decodeJSON(t, mustRun(t, d, "memo", "get", "2020-07-W2"), &got)
	if got.Key != "2020-07-W2" || got.Memo != "Sprint" || got.Importance != nil {
		t.Errorf("unexpected week memo: %+v", got)
	}

	expectCode(t, d, "INVALID_REQUEST", "memo", "set", "--text", "x", "--importance", "3", "2020-07")
	expectCode(t, d, "INVALID_REQUEST", "memo", "get", "2020-07-W5")
}

func TestTop(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "memo", "set", "--text", "a", "--importance", "2", "2020-06-01")
	mustRun(t, d, "memo", "set", "--text", "b", "--importance", "5", "2020-06-02")
	mustRun(t, d, "memo", "set", "--text", "c", "--importance", "3", "2020-06-20")

	var got struct {
		Days []engine.ImportantDay `json:"days"`
	}
	decodeJSON(t, mustRun(t, d, "top", "2020-06"), &got)
	if len(got.Days) != 3 || got.Days[0].Day != 2 || got.Days[1].Day != 20 {
		t.Errorf("unexpected month digest: %+v", got.Days)
	}

	decodeJSON(t, mustRun(t, d, "top", "2020-06-W1"), &got)
	if len(got.Days) != 2 || got.Days[0].Day != 2 {
		t.Errorf("unexpected week digest: %+v", got.Days)
	}

	expectCode(t, d, "INVALID_REQUEST", "top", "2020-06-02")
}

func TestGrid(t *testing.T) {
	d := setupTestDeps(t)
	expectCode(t, d, "SETUP_REQUIRED", "grid", "year", "2020")

	mustRun(t, d, "setup", "--birth", "2000-06-15")

	var year struct {
		Year   int               `json:"year"`
		Age    int               `json:"age"`
		Months []json.RawMessage `json:"months"`
	}
	decodeJSON(t, mustRun(t, d, "grid", "year", "2020"), &year)
	if year.Year != 2020 || year.Age != 20 || len(year.Months) != 12 {
		t.Errorf("unexpected year view: year=%d age=%d months=%d", year.Year, year.Age, len(year.Months))
	}

	var month map[string]json.RawMessage
	decodeJSON(t, mustRun(t, d, "grid", "month", "2020-02"), &month)
	if _, ok := month["weeks"]; !ok {
		t.Error("month view missing weeks")
	}

	mustRun(t, d, "grid", "week", "2020-02-W4")

	expectCode(t, d, "INVALID_REQUEST", "grid", "year", "abc")
	expectCode(t, d, "INVALID_REQUEST", "grid", "month", "2020-02-W4")
	expectCode(t, d, "INVALID_REQUEST", "grid", "week", "2020-02")
}

func TestStats(t *testing.T) {
	d := setupTestDeps(t)
	expectCode(t, d, "SETUP_REQUIRED", "stats")

	mustRun(t, d, "setup", "--birth", "2000-06-15")
	var got engine.Statistics
	decodeJSON(t, mustRun(t, d, "stats"), &got)
	if got.TotalMonths != 960 || got.LivedMonths != 240 {
		t.Errorf("unexpected stats: %+v", got)
	}
}

func TestTheme(t *testing.T) {
	d := setupTestDeps(t)
	out := mustRun(t, d, "theme", "dark")
	if !strings.Contains(out, `"dark"`) {
		t.Errorf("expected dark theme, got %s", out)
	}
	if d.eng.Theme() != "dark" {
		t.Errorf("theme not persisted")
	}
	expectCode(t, d, "INVALID_REQUEST", "theme", "sepia")
}

func TestExportImport(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "setup", "--birth", "2000-06-15")
	mustRun(t, d, "memo", "set", "--text", "Summer", "2020-06")

	path := filepath.Join(t.TempDir(), "backup.json")
	mustRun(t, d, "export", "--path", path)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	mustRun(t, d, "memo", "set", "--text", "", "2020-06")
	mustRun(t, d, "import", "--path", path)
	if got := d.eng.MonthMemo(2020, 6); got != "Summer" {
		t.Errorf("expected memo restored by import, got %q", got)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}
	expectCode(t, d, "MALFORMED_IMPORT", "import", "--path", bad)
}

func TestResetAndRestore(t *testing.T) {
	d := setupTestDeps(t)
	mustRun(t, d, "setup", "--birth", "2000-06-15")
	mustRun(t, d, "memo", "set", "--text", "Keep me", "--importance", "3", "2020-06-02")

	expectCode(t, d, "INVALID_REQUEST", "reset")
	mustRun(t, d, "reset", "--yes")
	if d.eng.SetupCompleted() {
		t.Fatal("reset should clear setup")
	}

	var list struct {
		Snapshots []db.SnapshotInfo `json:"snapshots"`
	}
	decodeJSON(t, mustRun(t, d, "snapshots", "list"), &list)
	if len(list.Snapshots) != 1 || list.Snapshots[0].Reason != "reset" {
		t.Fatalf("expected one reset snapshot, got %+v", list.Snapshots)
	}

	mustRun(t, d, "snapshots", "restore", list.Snapshots[0].ID)
	if !d.eng.SetupCompleted() {
		t.Error("restore should bring back the profile")
	}
	if memo, importance := d.eng.DayMemo(2020, 6, 2); memo != "Keep me" || importance != 3 {
		t.Errorf("restore should bring back memos, got %q/%d", memo, importance)
	}

	expectCode(t, d, "INVALID_REQUEST", "snapshots", "restore")
	expectCode(t, d, "NOT_FOUND", "snapshots", "restore", "01HZZZZZZZZZZZZZZZZZZZZZZZ")
}

func TestServe_RejectsBadPort(t *testing.T) {
	d := setupTestDeps(t)
	expectCode(t, d, "INVALID_REQUEST", "serve", "--port", "70000")
}

func TestOutputError(t *testing.T) {
	err := outputError(os.ErrPermission)
	if !strings.Contains(err.Error(), "[INTERNAL]") {
		t.Errorf("unknown errors should map to INTERNAL, got %q", err.Error())
	}
}
