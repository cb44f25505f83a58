package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/grid"
	"github.com/hpungsan/lifegrid/internal/logger"
	"github.com/hpungsan/lifegrid/internal/ops"
	"github.com/hpungsan/lifegrid/internal/period"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	eng *engine.Engine
	cfg *config.Config
	log *logger.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, cfg *config.Config, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	return &Handlers{eng: eng, cfg: cfg, log: log}
}

// Request types for each tool

// ProfileSetRequest represents the arguments for profile_set.
type ProfileSetRequest struct {
	BirthDate      string                   `json:"birth_date"`
	LifeExpectancy int                      `json:"life_expectancy"`
	Periods        *period.EducationPeriods `json:"periods,omitempty"`
}

// PeriodsSetRequest represents the arguments for periods_set.
type PeriodsSetRequest struct {
	Periods *period.EducationPeriods `json:"periods,omitempty"`
	Stage   string                   `json:"stage,omitempty"`
	Entries []period.Period          `json:"entries,omitempty"`
	Custom  bool                     `json:"custom,omitempty"`
}

// DateRequest addresses a month, week or day.
type DateRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Week  int `json:"week,omitempty"`
	Day   int `json:"day,omitempty"`
}

// MemoRequest represents the arguments for memo_get and memo_set.
type MemoRequest struct {
	Level      string `json:"level"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Week       int    `json:"week,omitempty"`
	Day        int    `json:"day,omitempty"`
	Memo       string `json:"memo,omitempty"`
	Importance *int   `json:"importance,omitempty"`
}

// ExportRequest represents the arguments for data_export.
type ExportRequest struct {
	Path  string `json:"path,omitempty"`
	Label string `json:"label,omitempty"`
}

// ImportRequest represents the arguments for data_import.
type ImportRequest struct {
	Path string `json:"path"`
}

// Result types

// ResolveResult is returned by period_resolve.
type ResolveResult struct {
	Date    calendar.Date  `json:"date"`
	Periods []period.Match `json:"periods"`
	Primary *period.Match  `json:"primary"`
}

// MemoResult is returned by memo_get and memo_set.
type MemoResult struct {
	Level      string `json:"level"`
	Key        string `json:"key"`
	Memo       string `json:"memo"`
	Importance *int   `json:"importance,omitempty"`
}

// TopDaysResult is returned by top_days.
type TopDaysResult struct {
	Days []engine.ImportantDay `json:"days"`
}

// Handler implementations

// HandleProfileGet handles the profile_get tool call.
func (h *Handlers) HandleProfileGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.eng.Summary(ctx))
}

// HandleProfileSet handles the profile_set tool call.
func (h *Handlers) HandleProfileSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileSetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	birth, err := calendar.ParseDate(input.BirthDate)
	if err != nil {
		return errorResult(errors.NewInvalidRequest("birth_date must be YYYY-MM-DD")), nil
	}
	if err := h.eng.CompleteSetup(ctx, birth, input.LifeExpectancy, input.Periods); err != nil {
		return errorResult(err), nil
	}

	return successResult(h.eng.Summary(ctx))
}

// HandlePeriodsGet handles the periods_get tool call.
func (h *Handlers) HandlePeriodsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.eng.Periods())
}

// HandlePeriodsSet handles the periods_set tool call.
func (h *Handlers) HandlePeriodsSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PeriodsSetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	var next period.EducationPeriods
	switch {
	case input.Periods != nil && input.Stage != "":
		return errorResult(errors.NewInvalidRequest("pass either periods or stage, not both")), nil
	case input.Periods != nil:
		next = *input.Periods
	case input.Stage != "":
		stage, err := period.ParseInputStage(input.Stage, input.Custom)
		if err != nil {
			return errorResult(errors.NewInvalidRequest(err.Error())), nil
		}
		next = h.eng.Periods()
		next.SetEntries(stage, input.Entries)
	default:
		return errorResult(errors.NewInvalidRequest("periods or stage is required")), nil
	}

	if err := next.Validate(); err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.eng.SetPeriods(ctx, next); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.eng.Periods())
}

// HandlePeriodResolve handles the period_resolve tool call.
func (h *Handlers) HandlePeriodResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := checkMonth(input.Year, input.Month); err != nil {
		return errorResult(err), nil
	}
	day := input.Day
	if day == 0 {
		day = 1
	}
	if day < 1 || day > calendar.DaysInMonth(input.Year, input.Month) {
		return errorResult(errors.NewInvalidRequest("day is out of range")), nil
	}

	matches := h.eng.Resolve(input.Year, input.Month, day)
	out := ResolveResult{Date: calendar.NewDate(input.Year, input.Month, day), Periods: []period.Match{}}
	if len(matches) > 0 {
		out.Periods = matches
		out.Primary = &matches[0]
	}
	return successResult(out)
}

// HandleMemoGet handles the memo_get tool call.
func (h *Handlers) HandleMemoGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := h.readMemo(input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleMemoSet handles the memo_set tool call.
func (h *Handlers) HandleMemoSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if input.Importance != nil && input.Level != "day" {
		return errorResult(errors.NewInvalidRequest("importance applies to day memos only")), nil
	}

	switch input.Level {
	case "month":
		err = h.eng.SetMonthMemo(ctx, input.Year, input.Month, input.Memo)
	case "week":
		err = h.eng.SetWeekMemo(ctx, input.Year, input.Month, input.Week, input.Memo)
	case "day":
		// An omitted importance keeps the stored one.
		_, importance := h.eng.DayMemo(input.Year, input.Month, input.Day)
		if input.Importance != nil {
			importance = *input.Importance
		}
		err = h.eng.SetDayMemo(ctx, input.Year, input.Month, input.Day, input.Memo, importance)
	default:
		err = errors.NewInvalidRequest("level must be month, week or day")
	}
	if err != nil {
		return errorResult(err), nil
	}

	out, err := h.readMemo(input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

func (h *Handlers) readMemo(input MemoRequest) (*MemoResult, error) {
	if err := checkMonth(input.Year, input.Month); err != nil {
		return nil, err
	}
	out := &MemoResult{Level: input.Level}
	switch input.Level {
	case "month":
		out.Key = calendar.MonthKey(input.Year, input.Month)
		out.Memo = h.eng.MonthMemo(input.Year, input.Month)
	case "week":
		if input.Week < 1 || input.Week > calendar.WeeksPerMonth {
			return nil, errors.NewInvalidRequest("week must be between 1 and 4")
		}
		out.Key = calendar.WeekKey(input.Year, input.Month, input.Week)
		out.Memo = h.eng.WeekMemo(input.Year, input.Month, input.Week)
	case "day":
		if input.Day < 1 || input.Day > calendar.DaysInMonth(input.Year, input.Month) {
			return nil, errors.NewInvalidRequest("day is out of range")
		}
		memo, importance := h.eng.DayMemo(input.Year, input.Month, input.Day)
		out.Key = calendar.DayKey(input.Year, input.Month, input.Day)
		out.Memo = memo
		out.Importance = &importance
	default:
		return nil, errors.NewInvalidRequest("level must be month, week or day")
	}
	return out, nil
}

// HandleTopDays handles the top_days tool call.
func (h *Handlers) HandleTopDays(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := checkMonth(input.Year, input.Month); err != nil {
		return errorResult(err), nil
	}

	if input.Week == 0 {
		return successResult(TopDaysResult{Days: h.eng.TopImportantDaysInMonth(input.Year, input.Month)})
	}
	if input.Week < 1 || input.Week > calendar.WeeksPerMonth {
		return errorResult(errors.NewInvalidRequest("week must be between 1 and 4")), nil
	}
	return successResult(TopDaysResult{Days: h.eng.TopImportantDaysInWeek(input.Year, input.Month, input.Week)})
}

// HandleGrid handles the grid_year tool call. month and week narrow the view.
func (h *Handlers) HandleGrid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if !h.eng.SetupCompleted() {
		return errorResult(errors.NewSetupRequired()), nil
	}
	if input.Year < 1 || input.Year > 9999 {
		return errorResult(errors.NewInvalidRequest("year must be between 1 and 9999")), nil
	}

	switch {
	case input.Month == 0 && input.Week == 0:
		return successResult(grid.Year(h.eng, input.Year))
	case input.Month == 0:
		return errorResult(errors.NewInvalidRequest("week requires month")), nil
	}
	if err := checkMonth(input.Year, input.Month); err != nil {
		return errorResult(err), nil
	}
	if input.Week == 0 {
		return successResult(grid.Month(h.eng, input.Year, input.Month))
	}
	if input.Week < 1 || input.Week > calendar.WeeksPerMonth {
		return errorResult(errors.NewInvalidRequest("week must be between 1 and 4")), nil
	}
	return successResult(grid.Week(h.eng, input.Year, input.Month, input.Week))
}

// HandleStats handles the stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := h.eng.Statistics()
	if stats == nil {
		return errorResult(errors.NewSetupRequired()), nil
	}
	return successResult(stats)
}

// HandleExport handles the data_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ExportFile(ctx, h.eng, h.cfg, ops.ExportInput{
		Path:  input.Path,
		Label: input.Label,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the data_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ImportFile(ctx, h.eng, h.cfg, ops.ImportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	h.log.Info("document imported", "path", result.Path, "bytes", result.Bytes)
	return successResult(result)
}

func checkMonth(year, month int) error {
	if year < 1 || year > 9999 {
		return errors.NewInvalidRequest("year must be between 1 and 9999")
	}
	if month < 1 || month > 12 {
		return errors.NewInvalidRequest("month must be between 1 and 12")
	}
	return nil
}

// errorResult creates an MCP error result. INTERNAL errors never carry details,
// which may hold file paths or SQL text.
func errorResult(err error) *mcp.CallToolResult {
	gErr := errors.As(err)
	errorObj := map[string]any{
		"code":    gErr.Code,
		"message": gErr.Message,
		"status":  gErr.Status,
	}
	if gErr.Code != errors.ErrInternal && gErr.Details != nil {
		errorObj["details"] = gErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
