package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/db"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/errors"
)

// testSetup opens an engine over a temporary database with the clock fixed
// at 2020-06-15.
func testSetup(t *testing.T) (*Handlers, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	clk := clock.NewFake()
	clk.Set(time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC))
	eng, err := engine.Open(context.Background(), db.NewDocumentStore(database, "test"), engine.Options{
		Clock: clk,
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	return NewHandlers(eng, cfg, nil), cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	return result
}

func setupProfile(t *testing.T, h *Handlers) {
	t.Helper()
	result := call(t, h.HandleProfileSet, map[string]any{
		"birth_date":      "2000-06-15",
		"life_expectancy": 80,
		"periods": map[string]any{
			"elementary": map[string]any{"start": "2007-03", "end": "2013-02"},
			"university": []any{map[string]any{"start": "2019-03", "end": "2023-02"}},
		},
	})
	parseOutput(t, result)
}

func TestHandleProfile(t *testing.T) {
	h, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleProfileGet, nil))
	if out["setupCompleted"] != false {
		t.Errorf("setupCompleted = %v, want false", out["setupCompleted"])
	}
	if out["lifeExpectancy"] != float64(80) {
		t.Errorf("lifeExpectancy = %v, want default 80", out["lifeExpectancy"])
	}

	setupProfile(t, h)

	out = parseOutput(t, call(t, h.HandleProfileGet, nil))
	if out["birthDate"] != "2000-06-15" {
		t.Errorf("birthDate = %v", out["birthDate"])
	}
	if out["age"] != float64(20) {
		t.Errorf("age = %v, want 20", out["age"])
	}
	if out["firstYear"] != float64(2000) || out["lastYear"] != float64(2080) {
		t.Errorf("years = %v..%v, want 2000..2080", out["firstYear"], out["lastYear"])
	}
}

func TestHandleProfileSet_Invalid(t *testing.T) {
	h, _ := testSetup(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing birth date", map[string]any{"life_expectancy": 80}},
		{"bad birth date", map[string]any{"birth_date": "June 2000", "life_expectancy": 80}},
		{"future birth date", map[string]any{"birth_date": "2021-01-01", "life_expectancy": 80}},
		{"life too long", map[string]any{"birth_date": "2000-06-15", "life_expectancy": 151}},
		{"unknown argument", map[string]any{"birth_date": "2000-06-15", "life_expectancy": 80, "lifespan": 90}},
		{"fractional life", map[string]any{"birth_date": "2000-06-15", "life_expectancy": 80.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := call(t, h.HandleProfileSet, tc.args)
			if !result.IsError {
				t.Fatal("expected error")
			}
			assertErrorCode(t, result, "INVALID_REQUEST")
		})
	}

	if h.eng.SetupCompleted() {
		t.Error("failed setup must not complete the profile")
	}
}

func TestHandlePeriods(t *testing.T) {
	h, _ := testSetup(t)
	setupProfile(t, h)

	out := parseOutput(t, call(t, h.HandlePeriodsGet, nil))
	uni, ok := out["university"].([]any)
	if !ok || len(uni) != 1 {
		t.Fatalf("university = %v, want one entry", out["university"])
	}
	if _, ok := uni[0].(map[string]any)["leavePeriods"]; !ok {
		t.Error("university entries always carry leavePeriods")
	}

	// replace one stage
	out = parseOutput(t, call(t, h.HandlePeriodsSet, map[string]any{
		"stage":   "other",
		"entries": []any{map[string]any{"start": "2010-01", "end": "2010-12", "name": "Swim team"}},
	}))
	other := out["other"].([]any)
	if len(other) != 1 || other[0].(map[string]any)["name"] != "Swim team" {
		t.Errorf("other = %v", out["other"])
	}
	if out["elementary"].(map[string]any)["start"] != "2007-03" {
		t.Error("stage update must keep the other stages")
	}

	// replace everything
	out = parseOutput(t, call(t, h.HandlePeriodsSet, map[string]any{
		"periods": map[string]any{"high": map[string]any{"start": "2016-03", "end": "2019-02"}},
	}))
	if out["elementary"].(map[string]any)["start"] != nil {
		t.Errorf("full replace should clear elementary, got %v", out["elementary"])
	}
	if len(out["university"].([]any)) != 0 {
		t.Errorf("full replace should clear university, got %v", out["university"])
	}
}

func TestHandlePeriodsSet_Invalid(t *testing.T) {
	h, _ := testSetup(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"nothing", map[string]any{}},
		{"both", map[string]any{"stage": "high", "periods": map[string]any{}}},
		{"bad month", map[string]any{"stage": "high", "entries": []any{map[string]any{"start": "2016-13"}}}},
		{"bad leave", map[string]any{"stage": "university", "entries": []any{map[string]any{
			"start": "2019-03", "end": "2023-02",
			"leavePeriods": []any{map[string]any{"start": "soon", "end": "2021-12"}},
		}}}},
		{"periods not an object", map[string]any{"periods": "elementary"}},
		{"misspelt stage", map[string]any{"stage": "univeristy", "entries": []any{map[string]any{"start": "2019-03", "end": "2023-02"}}}},
		{"blank custom stage", map[string]any{"stage": " ", "custom": true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := call(t, h.HandlePeriodsSet, tc.args)
			assertErrorCode(t, result, "INVALID_REQUEST")
		})
	}
}

func TestHandlePeriodResolve(t *testing.T) {
	h, _ := testSetup(t)
	setupProfile(t, h)

	out := parseOutput(t, call(t, h.HandlePeriodResolve, map[string]any{"year": 2010, "month": 5, "day": 20}))
	if out["date"] != "2010-05-20" {
		t.Errorf("date = %v", out["date"])
	}
	periods := out["periods"].([]any)
	if len(periods) != 1 || periods[0].(map[string]any)["type"] != "elementary" {
		t.Errorf("periods = %v", periods)
	}
	if out["primary"].(map[string]any)["name"] != "Elementary School" {
		t.Errorf("primary = %v", out["primary"])
	}

	out = parseOutput(t, call(t, h.HandlePeriodResolve, map[string]any{"year": 2030, "month": 1}))
	if len(out["periods"].([]any)) != 0 || out["primary"] != nil {
		t.Errorf("expected no match, got %v", out)
	}

	assertErrorCode(t, call(t, h.HandlePeriodResolve, map[string]any{"year": 2021, "month": 2, "day": 29}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandlePeriodResolve, map[string]any{"year": 2021, "month": 0}), "INVALID_REQUEST")
}

func TestHandleMemo(t *testing.T) {
	h, _ := testSetup(t)

	tests := []struct {
		name    string
		args    map[string]any
		wantKey string
	}{
		{"month", map[string]any{"level": "month", "year": 2020, "month": 6, "memo": "moved"}, "2020-06"},
		{"week", map[string]any{"level": "week", "year": 2020, "month": 6, "week": 2, "memo": "trip"}, "2020-06-W2"},
		{"day", map[string]any{"level": "day", "year": 2020, "month": 6, "day": 9, "memo": "birthday", "importance": 4}, "2020-06-09"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := parseOutput(t, call(t, h.HandleMemoSet, tc.args))
			if out["key"] != tc.wantKey {
				t.Errorf("key = %v, want %v", out["key"], tc.wantKey)
			}

			get := map[string]any{}
			for k, v := range tc.args {
				if k != "memo" && k != "importance" {
					get[k] = v
				}
			}
			out = parseOutput(t, call(t, h.HandleMemoGet, get))
			if out["memo"] != tc.args["memo"] {
				t.Errorf("memo = %v, want %v", out["memo"], tc.args["memo"])
			}
		})
	}

	out := parseOutput(t, call(t, h.HandleMemoGet, map[string]any{"level": "day", "year": 2020, "month": 6, "day": 9}))
	if out["importance"] != float64(4) {
		t.Errorf("importance = %v, want 4", out["importance"])
	}

	out = parseOutput(t, call(t, h.HandleMemoGet, map[string]any{"level": "day", "year": 2020, "month": 6, "day": 10}))
	if out["memo"] != "" || out["importance"] != float64(0) {
		t.Errorf("absent day should read as empty, got %v", out)
	}

	// clearing deletes the record
	parseOutput(t, call(t, h.HandleMemoSet, map[string]any{"level": "month", "year": 2020, "month": 6, "memo": ""}))
	if got := h.eng.MonthMemo(2020, 6); got != "" {
		t.Errorf("month memo = %q after clear", got)
	}
}

func TestHandleMemo_Invalid(t *testing.T) {
	h, _ := testSetup(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"bad level", map[string]any{"level": "year", "year": 2020, "month": 6}},
		{"week out of range", map[string]any{"level": "week", "year": 2020, "month": 6, "week": 5, "memo": "x"}},
		{"day out of range", map[string]any{"level": "day", "year": 2019, "month": 2, "day": 29, "memo": "x"}},
		{"importance too high", map[string]any{"level": "day", "year": 2020, "month": 6, "day": 1, "memo": "x", "importance": 6}},
		{"negative importance", map[string]any{"level": "day", "year": 2020, "month": 6, "day": 1, "importance": -1}},
		{"month out of range", map[string]any{"level": "month", "year": 2020, "month": 13, "memo": "x"}},
		{"importance on month", map[string]any{"level": "month", "year": 2020, "month": 6, "memo": "x", "importance": 5}},
		{"importance on week", map[string]any{"level": "week", "year": 2020, "month": 6, "week": 1, "memo": "x", "importance": 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertErrorCode(t, call(t, h.HandleMemoSet, tc.args), "INVALID_REQUEST")
		})
	}
	assertErrorCode(t, call(t, h.HandleMemoGet, map[string]any{"level": "week", "year": 2020, "month": 6}), "INVALID_REQUEST")
}

func TestHandleMemoSet_KeepsImportance(t *testing.T) {
	h, _ := testSetup(t)
	day := map[string]any{"level": "day", "year": 2020, "month": 6, "day": 9}
	with := func(extra map[string]any) map[string]any {
		args := map[string]any{}
		for k, v := range day {
			args[k] = v
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	parseOutput(t, call(t, h.HandleMemoSet, with(map[string]any{"memo": "birthday", "importance": 4})))

	out := parseOutput(t, call(t, h.HandleMemoSet, with(map[string]any{"memo": "birthday party"})))
	if out["memo"] != "birthday party" || out["importance"] != float64(4) {
		t.Errorf("after text-only edit got %v, want importance 4", out)
	}

	out = parseOutput(t, call(t, h.HandleMemoSet, with(map[string]any{"memo": "birthday party", "importance": 0})))
	if out["importance"] != float64(0) {
		t.Errorf("explicit importance 0 = %v, want 0", out["importance"])
	}

	if _, importance := h.eng.DayMemo(2020, 6, 9); importance != 0 {
		t.Errorf("stored importance = %d, want 0", importance)
	}
}

func TestHandleTopDays(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	for day, importance := range map[int]int{1: 3, 2: 5, 3: 4, 9: 5, 20: 1} {
		if err := h.eng.SetDayMemo(ctx, 2020, 6, day, fmt.Sprintf("day %d", day), importance); err != nil {
			t.Fatal(err)
		}
	}

	out := parseOutput(t, call(t, h.HandleTopDays, map[string]any{"year": 2020, "month": 6}))
	days := out["days"].([]any)
	if len(days) != 3 {
		t.Fatalf("got %d days, want 3", len(days))
	}
	var got []float64
	for _, d := range days {
		got = append(got, d.(map[string]any)["importance"].(float64))
	}
	if got[0] != 5 || got[1] != 5 || got[2] != 4 {
		t.Errorf("importances = %v, want [5 5 4]", got)
	}

	out = parseOutput(t, call(t, h.HandleTopDays, map[string]any{"year": 2020, "month": 6, "week": 1}))
	days = out["days"].([]any)
	if len(days) != 3 || days[0].(map[string]any)["displayName"] != "2 (Tue)" {
		t.Errorf("week 1 days = %v", days)
	}

	out = parseOutput(t, call(t, h.HandleTopDays, map[string]any{"year": 2020, "month": 7}))
	if days, ok := out["days"].([]any); !ok || len(days) != 0 {
		t.Errorf("empty month should return an empty list, got %v", out["days"])
	}

	assertErrorCode(t, call(t, h.HandleTopDays, map[string]any{"year": 2020, "month": 6, "week": 7}), "INVALID_REQUEST")
}

func TestHandleGrid(t *testing.T) {
	h, _ := testSetup(t)

	assertErrorCode(t, call(t, h.HandleGrid, map[string]any{"year": 2020}), "SETUP_REQUIRED")

	setupProfile(t, h)

	out := parseOutput(t, call(t, h.HandleGrid, map[string]any{"year": 2020}))
	months := out["months"].([]any)
	if len(months) != 12 {
		t.Fatalf("got %d months, want 12", len(months))
	}
	june := months[5].(map[string]any)
	if june["class"] != "education-university" || june["state"] != "current" {
		t.Errorf("june = %v", june)
	}

	out = parseOutput(t, call(t, h.HandleGrid, map[string]any{"year": 2020, "month": 6}))
	if len(out["weeks"].([]any)) != 4 {
		t.Errorf("weeks = %v", out["weeks"])
	}

	out = parseOutput(t, call(t, h.HandleGrid, map[string]any{"year": 2020, "month": 6, "week": 4}))
	if len(out["days"].([]any)) != 9 {
		t.Errorf("week 4 of June has days 22-30, got %v", out["days"])
	}

	assertErrorCode(t, call(t, h.HandleGrid, map[string]any{"year": 2020, "week": 2}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleGrid, map[string]any{"year": 2020, "month": 6, "week": 5}), "INVALID_REQUEST")
}

func TestHandleStats(t *testing.T) {
	h, _ := testSetup(t)
	assertErrorCode(t, call(t, h.HandleStats, nil), "SETUP_REQUIRED")

	setupProfile(t, h)
	out := parseOutput(t, call(t, h.HandleStats, nil))
	if out["totalMonths"] != float64(960) || out["livedMonths"] != float64(240) {
		t.Errorf("stats = %v", out)
	}
}

func TestHandleExportImport(t *testing.T) {
	h, cfg := testSetup(t)
	setupProfile(t, h)
	if err := h.eng.SetMonthMemo(context.Background(), 2020, 6, "exported"); err != nil {
		t.Fatal(err)
	}

	exportPath := filepath.Join(t.TempDir(), "backup.json")
	out := parseOutput(t, call(t, h.HandleExport, map[string]any{"path": exportPath}))
	if out["path"] != exportPath {
		t.Errorf("path = %v", out["path"])
	}
	if _, err := os.Stat(exportPath); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	// import into a fresh engine
	h2, _ := testSetup(t)
	h2.cfg = cfg
	out = parseOutput(t, call(t, h2.HandleImport, map[string]any{"path": exportPath}))
	if out["bytes"] == float64(0) {
		t.Error("expected bytes > 0")
	}
	if got := h2.eng.MonthMemo(2020, 6); got != "exported" {
		t.Errorf("imported memo = %q", got)
	}
	if !h2.eng.SetupCompleted() {
		t.Error("import should carry the profile")
	}

	assertErrorCode(t, call(t, h2.HandleImport, map[string]any{}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h2.HandleImport, map[string]any{"path": filepath.Join(t.TempDir(), "missing.json")}), "FILE_NOT_FOUND")
	assertErrorCode(t, call(t, h2.HandleExport, map[string]any{"path": filepath.Join(t.TempDir(), "backup.txt")}), "INVALID_REQUEST")

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`"just a string"`), 0600); err != nil {
		t.Fatal(err)
	}
	assertErrorCode(t, call(t, h2.HandleImport, map[string]any{"path": bad}), "MALFORMED_IMPORT")
}

func TestServerRegistration(t *testing.T) {
	h, cfg := testSetup(t)

	s := NewServer(h.eng, cfg, nil, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"profile_get", "profile_set",
		"periods_get", "periods_set", "period_resolve",
		"memo_get", "memo_set", "top_days",
		"grid_year", "stats",
		"data_export", "data_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, cfg := testSetup(t)
	cfg.DisabledTools = []string{"data_import", "profile_set", "data_import"}

	tools := NewServer(h.eng, cfg, nil, "test").ListTools()
	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"data_import", "profile_set"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %s is registered", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"stats", "memo_delete", "memo_set", "nope"})
	if len(unknown) != 2 || unknown[0] != "memo_delete" || unknown[1] != "nope" {
		t.Errorf("unknown = %v", unknown)
	}
	if got := ValidateDisabledTools(nil); len(got) != 0 {
		t.Errorf("unknown = %v, want empty", got)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != len(toolRegistry) {
		t.Errorf("got %d names, want %d", len(names), len(toolRegistry))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("names not sorted: %v", names)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["status"] != float64(500) {
		t.Errorf("error = %v", errObj)
	}
}

func TestErrorResult_WrappedErrorKeepsCode(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("import: %w", errors.NewFileTooLarge(10, 20))))
	if errObj["code"] != string(errors.ErrFileTooLarge) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrFileTooLarge)
	}
	if _, ok := errObj["details"]; !ok {
		t.Error("expected details for FILE_TOO_LARGE")
	}
}

// Helper functions

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success: %s", expectedCode, extractErrorMessage(result))
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
